// Package history stores conversation turns per branch and contact.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/attendhq/attend/internal/db"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one persisted message of a conversation.
type Turn struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Service persists and reads conversation turns.
type Service struct {
	conn   db.DBTX
	logger *slog.Logger
}

// NewService creates a history service.
func NewService(log *slog.Logger, conn db.DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		conn:   conn,
		logger: log.With(slog.String("service", "history")),
	}
}

// Append stores one turn.
func (s *Service) Append(ctx context.Context, branchID, userID, role, text string) (Turn, error) {
	pgID, err := db.ParseUUID(branchID)
	if err != nil {
		return Turn{}, fmt.Errorf("append turn: %w", err)
	}
	if role != RoleUser && role != RoleAssistant {
		return Turn{}, fmt.Errorf("append turn: invalid role %q", role)
	}
	row := s.conn.QueryRow(ctx, `
		INSERT INTO chat_turns (branch_id, user_id, role, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, branch_id, user_id, role, text, created_at`,
		pgID, userID, role, text,
	)
	turn, err := scanTurn(row)
	if err != nil {
		return Turn{}, fmt.Errorf("append turn: %w", err)
	}
	return turn, nil
}

// List returns the full conversation in ascending order. The seq sequence
// reflects true insertion order, so created_at ties replay correctly.
func (s *Service) List(ctx context.Context, branchID, userID string) ([]Turn, error) {
	pgID, err := db.ParseUUID(branchID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, branch_id, user_id, role, text, created_at
		FROM chat_turns
		WHERE branch_id = $1 AND user_id = $2
		ORDER BY seq ASC`,
		pgID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0)
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("list turns: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// CountUserTurns reports how many user turns the contact already has.
// Zero means this inbound message starts the conversation.
func (s *Service) CountUserTurns(ctx context.Context, branchID, userID string) (int, error) {
	pgID, err := db.ParseUUID(branchID)
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	var count int
	err = s.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_turns
		WHERE branch_id = $1 AND user_id = $2 AND role = $3`,
		pgID, userID, RoleUser,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return count, nil
}

// DeleteByBranch drops all turns of a branch.
func (s *Service) DeleteByBranch(ctx context.Context, branchID string) error {
	pgID, err := db.ParseUUID(branchID)
	if err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	if _, err := s.conn.Exec(ctx, `DELETE FROM chat_turns WHERE branch_id = $1`, pgID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

func scanTurn(row pgx.Row) (Turn, error) {
	var (
		id, branchID pgtype.UUID
		created      pgtype.Timestamptz
		turn         Turn
	)
	if err := row.Scan(&id, &branchID, &turn.UserID, &turn.Role, &turn.Text, &created); err != nil {
		return Turn{}, err
	}
	turn.ID = db.UUIDToString(id)
	turn.BranchID = db.UUIDToString(branchID)
	turn.CreatedAt = db.TimeFromPg(created)
	return turn, nil
}
