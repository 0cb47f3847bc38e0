package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore returns a Store backed by sqlmock.
func setupTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return New(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(sql.ErrNoRows), ErrNotFound)

	err := mapErr(&pq.Error{Code: uniqueViolation, Constraint: "bills_bill_number_key"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "bills_bill_number_key")

	other := errors.New("connection reset")
	assert.Equal(t, other, mapErr(other))
}

func TestGetSession_NotFound(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetSession(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSessionPayment_NoRow(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectExec("UPDATE sessions").
		WithArgs(sqlmock.AnyArg(), "PAID", "s-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateSessionPayment(context.Background(), "s-1", decimal.NewFromInt(100), "PAID")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSessionTotal(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery("UPDATE sessions SET total_amount = total_amount \\+ \\$1").
		WithArgs(sqlmock.AnyArg(), "s-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount"}).AddRow("1080.00"))

	total, err := s.AddSessionTotal(context.Background(), "s-1", decimal.NewFromInt(500))

	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(1080)), total.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedEvents(t *testing.T) {
	s, mock := setupTestStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("evt-2", "GATEWAY_CALLBACK").
		WillReturnResult(sqlmock.NewResult(0, 1))

	seen, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-2", "GATEWAY_CALLBACK"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrders_BuildsFilter(t *testing.T) {
	s, mock := setupTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM orders WHERE restaurant_id = $1 AND status = $2 ORDER BY placed_at DESC LIMIT $3")).
		WithArgs("r-1", "PLACED", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id"}).
			AddRow("o-2", "s-1").
			AddRow("o-1", "s-1"))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM order_items WHERE order_id IN ($1, $2) ORDER BY order_id, line_no")).
		WithArgs("o-2", "o-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "line_no", "name"}).
			AddRow("i-1", "o-1", 1, "Dal").
			AddRow("i-2", "o-2", 1, "Naan").
			AddRow("i-3", "o-2", 2, "Lassi"))

	orders, err := s.ListOrders(context.Background(), OrderFilter{RestaurantID: "r-1", Status: "PLACED", Limit: 5})

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-2", orders[0].ID)
	require.Len(t, orders[0].Items, 2)
	assert.Equal(t, "Lassi", orders[0].Items[1].Name)
	require.Len(t, orders[1].Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrders_DefaultLimitAndEmpty(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders ORDER BY placed_at DESC LIMIT $1")).
		WithArgs(defaultOrderListLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	orders, err := s.ListOrders(context.Background(), OrderFilter{})

	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_Commit(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE session_id = $1")).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	var cleared int64
	err := s.RunInTx(context.Background(), func(repo Repository) error {
		var err error
		cleared, err = repo.ClearCart(context.Background(), "s-1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.RunInTx(context.Background(), func(Repository) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_CommitConflict(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "sessions_one_active_per_table"})

	err := s.RunInTx(context.Background(), func(Repository) error { return nil })

	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS restaurants").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumOpenPayments(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE session_id = $1 AND status IN ($2, $3)")).
		WithArgs("s-1", "PENDING", "PAID").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("1400.00"))

	sum, err := s.SumOpenPayments(context.Background(), "s-1")

	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(1400)), sum.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementCouponUsage_RespectsLimit(t *testing.T) {
	s, mock := setupTestStore(t)
	ctx := context.Background()
	guarded := regexp.QuoteMeta("WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)")

	mock.ExpectExec(guarded).WithArgs("c-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(guarded).WithArgs("c-1").WillReturnResult(sqlmock.NewResult(0, 0))

	consumed, err := s.IncrementCouponUsage(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = s.IncrementCouponUsage(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, consumed, "limit reached")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByIdempotencyKey_ScopedToSession(t *testing.T) {
	s, mock := setupTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders WHERE session_id = $1 AND idempotency_key = $2")).
		WithArgs("s-2", "device-1").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetOrderByIdempotencyKey(context.Background(), "s-2", "device-1")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
