package reservation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/attendhq/attend/internal/db"
)

// PGStore persists committed reservations in PostgreSQL.
type PGStore struct {
	conn   db.DBTX
	logger *slog.Logger
}

// NewPGStore creates a reservation store.
func NewPGStore(log *slog.Logger, conn db.DBTX) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{
		conn:   conn,
		logger: log.With(slog.String("service", "reservation-store")),
	}
}

// Save inserts a committed reservation.
func (s *PGStore) Save(ctx context.Context, r Reservation) (Reservation, error) {
	branchUUID, err := db.ParseUUID(r.BranchID)
	if err != nil {
		return Reservation{}, fmt.Errorf("save reservation: %w", err)
	}
	var (
		id      pgtype.UUID
		created pgtype.Timestamptz
	)
	err = s.conn.QueryRow(ctx, `
		INSERT INTO reservations (branch_id, user_id, restaurant, customer_name, party_size, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		branchUUID, r.UserID, r.Restaurant, r.Name, r.Party, r.Date,
	).Scan(&id, &created)
	if err != nil {
		return Reservation{}, fmt.Errorf("save reservation: %w", err)
	}
	r.ID = db.UUIDToString(id)
	r.CreatedAt = db.TimeFromPg(created)
	s.logger.Info("reservation committed",
		slog.String("branch_id", r.BranchID), slog.String("reservation_id", r.ID))
	return r, nil
}
