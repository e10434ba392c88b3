package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicatePayment means an order already exists for the gateway
	// payment id, i.e. the checkout was submitted twice.
	ErrDuplicatePayment = errors.New("an order already exists for this payment")
	// ErrDuplicateOrderNumber means the generated order number collided.
	ErrDuplicateOrderNumber = errors.New("order number already in use")
	// ErrStatusConflict means the order was not in the expected status.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// OrderRepository persists orders. Payment and status changes are
// conditional updates so that concurrent writers (checkout, webhooks, admins,
// the reconciliation worker) converge instead of overwriting each other.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	FindByMerchantTransactionID(ctx context.Context, merchantTxnID string) (*models.Order, error)

	// ApplyPaymentSuccess marks the payment completed and the order confirmed
	// unless it is already completed, refunded, shipped or cancelled.
	ApplyPaymentSuccess(ctx context.Context, merchantTxnID string, paidAt time.Time, change models.StatusChange) (bool, error)
	// ApplyPaymentFailure marks a pending or authorized payment failed.
	ApplyPaymentFailure(ctx context.Context, merchantTxnID string, change models.StatusChange) (bool, error)
	// MarkCaptured moves an authorized payment to completed.
	MarkCaptured(ctx context.Context, orderNumber string, paidAt time.Time, change models.StatusChange) (bool, error)
	FlagReconciliation(ctx context.Context, orderNumber, reason string, change models.StatusChange) error
	UpdateStatus(ctx context.Context, orderNumber string, from, to models.OrderStatus, change models.StatusChange) error
	AppendHistory(ctx context.Context, orderNumber string, change models.StatusChange) error
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction. Unique
// violations are reported as ErrDuplicatePayment or ErrDuplicateOrderNumber.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return translateCreateError(r.db.WithContext(ctx).Create(order).Error, order)
}

func translateCreateError(err error, order *models.Order) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "transaction_id"):
			return fmt.Errorf("%w: %s", ErrDuplicatePayment, order.TransactionID)
		case strings.Contains(pgErr.ConstraintName, "order_number"):
			return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, order.OrderNumber)
		}
	}
	return err
}

func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *GormOrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	return r.findOne(ctx, "transaction_id = ?", transactionID)
}

func (r *GormOrderRepository) FindByMerchantTransactionID(ctx context.Context, merchantTxnID string) (*models.Order, error) {
	return r.findOne(ctx, "merchant_transaction_id = ?", merchantTxnID)
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where(query, arg).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) ApplyPaymentSuccess(ctx context.Context, merchantTxnID string, paidAt time.Time, change models.StatusChange) (bool, error) {
	history, err := appendHistory(change)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("merchant_transaction_id = ?", merchantTxnID).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusPending, models.OrderStatusConfirmed}).
		Where("payment_status NOT IN ?", []models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusRefunded}).
		Updates(map[string]any{
			"payment_status":        models.PaymentStatusCompleted,
			"paid_at":               paidAt,
			"status":                models.OrderStatusConfirmed,
			"needs_reconciliation":  false,
			"reconciliation_reason": "",
			"status_history":        history,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *GormOrderRepository) ApplyPaymentFailure(ctx context.Context, merchantTxnID string, change models.StatusChange) (bool, error) {
	history, err := appendHistory(change)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("merchant_transaction_id = ?", merchantTxnID).
		Where("payment_status IN ?", []models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusAuthorized}).
		Updates(map[string]any{
			"payment_status": models.PaymentStatusFailed,
			"status_history": history,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *GormOrderRepository) MarkCaptured(ctx context.Context, orderNumber string, paidAt time.Time, change models.StatusChange) (bool, error) {
	history, err := appendHistory(change)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ? AND payment_status = ?", orderNumber, models.PaymentStatusAuthorized).
		Updates(map[string]any{
			"payment_status":        models.PaymentStatusCompleted,
			"paid_at":               paidAt,
			"needs_reconciliation":  false,
			"reconciliation_reason": "",
			"status_history":        history,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *GormOrderRepository) FlagReconciliation(ctx context.Context, orderNumber, reason string, change models.StatusChange) error {
	history, err := appendHistory(change)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Updates(map[string]any{
			"needs_reconciliation":  true,
			"reconciliation_reason": reason,
			"status_history":        history,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderNumber string, from, to models.OrderStatus, change models.StatusChange) error {
	history, err := appendHistory(change)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, from).
		Updates(map[string]any{
			"status":         to,
			"status_history": history,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *GormOrderRepository) AppendHistory(ctx context.Context, orderNumber string, change models.StatusChange) error {
	history, err := appendHistory(change)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Update("status_history", history)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *GormOrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.NeedsReconciliation != nil {
		query = query.Where("needs_reconciliation = ?", *filter.NeedsReconciliation)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	if err := query.
		Preload("Items").
		Offset((page - 1) * limit).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// appendHistory builds a jsonb concatenation that adds change to the
// existing status_history in the same UPDATE.
func appendHistory(change models.StatusChange) (any, error) {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	entry, err := json.Marshal([]models.StatusChange{change})
	if err != nil {
		return nil, fmt.Errorf("marshal status change: %w", err)
	}
	return gorm.Expr("COALESCE(status_history, '[]'::jsonb) || ?::jsonb", string(entry)), nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
