package branch

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/attendhq/attend/internal/logger"
)

// fakeRow implements pgx.Row with a custom scan function.
type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

// fakeConn implements db.DBTX for unit testing.
type fakeConn struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.execFunc != nil {
		return c.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if c.queryRowFunc != nil {
		return c.queryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func TestCreateRejectsEmptyName(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.L, &fakeConn{})
	_, err := svc.Create(context.Background(), CreateBranchRequest{Name: ""})
	require.Error(t, err)
}

func TestGetRejectsMalformedID(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.L, &fakeConn{})
	_, err := svc.Get(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrBranchNotFound)
}

func TestGetMapsNoRowsToNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.L, &fakeConn{})
	_, err := svc.Get(context.Background(), "0b4f7a9e-9a1c-4f39-8f5e-1c2d3e4f5a6b")
	require.ErrorIs(t, err, ErrBranchNotFound)
}

func TestDeleteNotFoundWhenNoRowsAffected(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{
		execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}
	svc := NewService(logger.L, conn)
	err := svc.Delete(context.Background(), "0b4f7a9e-9a1c-4f39-8f5e-1c2d3e4f5a6b")
	require.ErrorIs(t, err, ErrBranchNotFound)
}

func TestAddInfoRequiresTitleAndContent(t *testing.T) {
	t.Parallel()

	svc := NewService(logger.L, &fakeConn{})
	_, err := svc.AddInfo(context.Background(), "0b4f7a9e-9a1c-4f39-8f5e-1c2d3e4f5a6b", CreateInfoRequest{Title: "Wi-Fi"})
	require.Error(t, err)
}
