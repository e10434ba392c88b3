package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func TestTranslateCreateError(t *testing.T) {
	order := &models.Order{OrderNumber: "LUM-20261018-ABC123", TransactionID: "pay_1"}

	err := translateCreateError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_orders_transaction_id"}, order)
	assert.ErrorIs(t, err, ErrDuplicatePayment)

	err = translateCreateError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "idx_orders_order_number"}), order)
	assert.ErrorIs(t, err, ErrDuplicateOrderNumber)

	other := &pgconn.PgError{Code: "23502", ConstraintName: "idx_orders_transaction_id"}
	err = translateCreateError(other, order)
	assert.False(t, errors.Is(err, ErrDuplicatePayment))

	assert.NoError(t, translateCreateError(nil, order))
}

func TestFindByOrderNumber_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	o, err := repo.FindByOrderNumber(context.Background(), "LUM-404")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Nil(t, o)
}

func TestApplyPaymentSuccess_Applied(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.ApplyPaymentSuccess(context.Background(), "order_1", time.Now(),
		models.StatusChange{Status: models.OrderStatusConfirmed, Note: "webhook"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPaymentSuccess_AlreadyCompletedIsNoop(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	changed, err := repo.ApplyPaymentSuccess(context.Background(), "order_1", time.Now(), models.StatusChange{})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApplyPaymentFailure_OnlyFromPendingOrAuthorized(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET .*payment_status IN \(\$\d+,\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.ApplyPaymentFailure(context.Background(), "order_1", models.StatusChange{Note: "declined"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_Conflict(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), "LUM-1", models.OrderStatusConfirmed, models.OrderStatusShipped, models.StatusChange{})
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestFlagReconciliation_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.FlagReconciliation(context.Background(), "LUM-404", "capture_failed", models.StatusChange{})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAppendHistory_BuildsJSONBConcat(t *testing.T) {
	expr, err := appendHistory(models.StatusChange{Status: models.OrderStatusConfirmed, Note: "captured"})
	require.NoError(t, err)

	e, ok := expr.(clause.Expr)
	require.True(t, ok)
	assert.Contains(t, e.SQL, "|| ?::jsonb")
	require.Len(t, e.Vars, 1)
	assert.Contains(t, e.Vars[0], `"note":"captured"`)
}

func TestNormalizePage(t *testing.T) {
	p, l := normalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, 20, l)

	p, l = normalizePage(3, 500)
	assert.Equal(t, 3, p)
	assert.Equal(t, 20, l)
}
