// Package branch manages tenant records and their knowledge entries.
package branch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/attendhq/attend/internal/db"
)

var (
	ErrBranchNotFound = errors.New("branch not found")
	ErrInfoNotFound   = errors.New("info not found")
)

// Service provides branch and info CRUD backed by PostgreSQL.
type Service struct {
	conn     db.DBTX
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService creates a branch service.
func NewService(log *slog.Logger, conn db.DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		conn:     conn,
		logger:   log.With(slog.String("service", "branch")),
		validate: validator.New(),
	}
}

const branchColumns = `id, name, phone, city, state, address, responsible,
	working_hours, bot_instructions, active, created_at, updated_at`

// Create inserts a new branch. New branches are active unless the request
// says otherwise.
func (s *Service) Create(ctx context.Context, req CreateBranchRequest) (Branch, error) {
	if err := s.validate.Struct(req); err != nil {
		return Branch{}, fmt.Errorf("validate branch: %w", err)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	row := s.conn.QueryRow(ctx, `
		INSERT INTO branches (name, phone, city, state, address, responsible,
			working_hours, bot_instructions, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+branchColumns,
		strings.TrimSpace(req.Name), req.Phone, req.City, req.State,
		req.Address, req.Responsible, req.WorkingHours, req.BotInstructions,
		active,
	)
	b, err := scanBranch(row)
	if err != nil {
		return Branch{}, fmt.Errorf("create branch: %w", err)
	}
	s.logger.Info("branch created", slog.String("branch_id", b.ID), slog.String("name", b.Name))
	return b, nil
}

// Get returns a branch with its infos loaded.
func (s *Service) Get(ctx context.Context, id string) (Branch, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Branch{}, ErrBranchNotFound
	}
	row := s.conn.QueryRow(ctx, `SELECT `+branchColumns+` FROM branches WHERE id = $1`, pgID)
	b, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, ErrBranchNotFound
		}
		return Branch{}, fmt.Errorf("get branch: %w", err)
	}
	infos, err := s.ListInfos(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	b.Infos = infos
	return b, nil
}

// List returns all branches ordered by creation time, without infos.
func (s *Service) List(ctx context.Context) ([]Branch, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+branchColumns+` FROM branches ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	items := make([]Branch, 0)
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// Update applies the non-nil fields of req to the branch.
func (s *Service) Update(ctx context.Context, id string, req UpdateBranchRequest) (Branch, error) {
	if err := s.validate.Struct(req); err != nil {
		return Branch{}, fmt.Errorf("validate branch: %w", err)
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&current.Name, req.Name)
	apply(&current.Phone, req.Phone)
	apply(&current.City, req.City)
	apply(&current.State, req.State)
	apply(&current.Address, req.Address)
	apply(&current.Responsible, req.Responsible)
	apply(&current.WorkingHours, req.WorkingHours)
	apply(&current.BotInstructions, req.BotInstructions)
	if req.Active != nil {
		current.Active = *req.Active
	}

	pgID, _ := db.ParseUUID(id)
	row := s.conn.QueryRow(ctx, `
		UPDATE branches SET name = $2, phone = $3, city = $4, state = $5,
			address = $6, responsible = $7, working_hours = $8,
			bot_instructions = $9, active = $10, updated_at = $11
		WHERE id = $1
		RETURNING `+branchColumns,
		pgID, current.Name, current.Phone, current.City, current.State,
		current.Address, current.Responsible, current.WorkingHours,
		current.BotInstructions, current.Active,
		pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
	)
	b, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, ErrBranchNotFound
		}
		return Branch{}, fmt.Errorf("update branch: %w", err)
	}
	b.Infos = current.Infos
	return b, nil
}

// Delete removes a branch; infos, turns, and reservations cascade.
func (s *Service) Delete(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return ErrBranchNotFound
	}
	tag, err := s.conn.Exec(ctx, `DELETE FROM branches WHERE id = $1`, pgID)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBranchNotFound
	}
	s.logger.Info("branch deleted", slog.String("branch_id", id))
	return nil
}

// AddInfo attaches a knowledge entry to a branch.
func (s *Service) AddInfo(ctx context.Context, branchID string, req CreateInfoRequest) (Info, error) {
	if err := s.validate.Struct(req); err != nil {
		return Info{}, fmt.Errorf("validate info: %w", err)
	}
	pgID, err := db.ParseUUID(branchID)
	if err != nil {
		return Info{}, ErrBranchNotFound
	}
	row := s.conn.QueryRow(ctx, `
		INSERT INTO branch_infos (branch_id, title, content, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, title, content, category`,
		pgID, strings.TrimSpace(req.Title), req.Content, req.Category,
	)
	info, err := scanInfo(row)
	if err != nil {
		return Info{}, fmt.Errorf("add info: %w", err)
	}
	return info, nil
}

// UpdateInfo applies the non-nil fields of req to an info entry.
func (s *Service) UpdateInfo(ctx context.Context, branchID, infoID string, req UpdateInfoRequest) (Info, error) {
	if err := s.validate.Struct(req); err != nil {
		return Info{}, fmt.Errorf("validate info: %w", err)
	}
	branchUUID, err := db.ParseUUID(branchID)
	if err != nil {
		return Info{}, ErrBranchNotFound
	}
	infoUUID, err := db.ParseUUID(infoID)
	if err != nil {
		return Info{}, ErrInfoNotFound
	}
	row := s.conn.QueryRow(ctx, `
		SELECT id, title, content, category FROM branch_infos
		WHERE id = $1 AND branch_id = $2`, infoUUID, branchUUID)
	current, err := scanInfo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Info{}, ErrInfoNotFound
		}
		return Info{}, fmt.Errorf("get info: %w", err)
	}
	if req.Title != nil {
		current.Title = *req.Title
	}
	if req.Content != nil {
		current.Content = *req.Content
	}
	if req.Category != nil {
		current.Category = *req.Category
	}
	row = s.conn.QueryRow(ctx, `
		UPDATE branch_infos SET title = $3, content = $4, category = $5
		WHERE id = $1 AND branch_id = $2
		RETURNING id, title, content, category`,
		infoUUID, branchUUID, current.Title, current.Content, current.Category,
	)
	info, err := scanInfo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Info{}, ErrInfoNotFound
		}
		return Info{}, fmt.Errorf("update info: %w", err)
	}
	return info, nil
}

// DeleteInfo removes a knowledge entry.
func (s *Service) DeleteInfo(ctx context.Context, branchID, infoID string) error {
	branchUUID, err := db.ParseUUID(branchID)
	if err != nil {
		return ErrBranchNotFound
	}
	infoUUID, err := db.ParseUUID(infoID)
	if err != nil {
		return ErrInfoNotFound
	}
	tag, err := s.conn.Exec(ctx,
		`DELETE FROM branch_infos WHERE id = $1 AND branch_id = $2`,
		infoUUID, branchUUID,
	)
	if err != nil {
		return fmt.Errorf("delete info: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInfoNotFound
	}
	return nil
}

// ListInfos returns a branch's knowledge entries ordered by creation time.
func (s *Service) ListInfos(ctx context.Context, branchID string) ([]Info, error) {
	pgID, err := db.ParseUUID(branchID)
	if err != nil {
		return nil, ErrBranchNotFound
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, title, content, category FROM branch_infos
		WHERE branch_id = $1 ORDER BY created_at`, pgID)
	if err != nil {
		return nil, fmt.Errorf("list infos: %w", err)
	}
	defer rows.Close()

	items := make([]Info, 0)
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("list infos: %w", err)
		}
		items = append(items, info)
	}
	return items, rows.Err()
}

func scanBranch(row pgx.Row) (Branch, error) {
	var (
		id               pgtype.UUID
		created, updated pgtype.Timestamptz
		b                Branch
	)
	err := row.Scan(&id, &b.Name, &b.Phone, &b.City, &b.State, &b.Address,
		&b.Responsible, &b.WorkingHours, &b.BotInstructions, &b.Active,
		&created, &updated)
	if err != nil {
		return Branch{}, err
	}
	b.ID = db.UUIDToString(id)
	b.CreatedAt = db.TimeFromPg(created)
	b.UpdatedAt = db.TimeFromPg(updated)
	return b, nil
}

func scanInfo(row pgx.Row) (Info, error) {
	var (
		id   pgtype.UUID
		info Info
	)
	if err := row.Scan(&id, &info.Title, &info.Content, &info.Category); err != nil {
		return Info{}, err
	}
	info.ID = db.UUIDToString(id)
	return info, nil
}
