package services

import (
	"context"
	"errors"

	"github.com/anisha-singhal/Lumera-sub000/events"
	"github.com/anisha-singhal/Lumera-sub000/gateway"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

// allowedTransitions lists the fulfilment moves an admin may make.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:   {models.OrderStatusDelivered},
}

// CanTransition reports whether an admin may move an order from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AdminOrderService is the reconciliation surface for operators. Capture here
// is the only way a deferred capture is ever retried.
type AdminOrderService interface {
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, *ServiceError)
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, *ServiceError)
	CapturePayment(ctx context.Context, orderNumber, actor string) (*models.Order, *ServiceError)
	UpdateStatus(ctx context.Context, orderNumber string, req *models.UpdateOrderStatusRequest, actor string) (*models.Order, *ServiceError)
}

type adminOrderServiceImpl struct {
	orders    repository.OrderRepository
	gateway   gateway.Gateway
	publisher events.Publisher
	clock     clock.Clock
	logger    *zap.Logger
}

func NewAdminOrderService(
	orders repository.OrderRepository,
	gw gateway.Gateway,
	publisher events.Publisher,
	clk clock.Clock,
	logger *zap.Logger,
) AdminOrderService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &adminOrderServiceImpl{orders: orders, gateway: gw, publisher: publisher, clock: clk, logger: logger}
}

func (s *adminOrderServiceImpl) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, *ServiceError) {
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to list orders"}
	}
	return orders, total, nil
}

func (s *adminOrderServiceImpl) GetOrder(ctx context.Context, orderNumber string) (*models.Order, *ServiceError) {
	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
	}
	if err != nil {
		s.logger.Error("Failed to load order", zap.String("order_number", orderNumber), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load order"}
	}
	return order, nil
}

// CapturePayment captures an authorized payment after checking the gateway's
// current view of it. If the gateway already captured (e.g. a late capture
// from checkout went through) only the order is updated.
func (s *adminOrderServiceImpl) CapturePayment(ctx context.Context, orderNumber, actor string) (*models.Order, *ServiceError) {
	order, serr := s.GetOrder(ctx, orderNumber)
	if serr != nil {
		return nil, serr
	}
	if order.PaymentStatus == models.PaymentStatusCompleted {
		return order, nil
	}
	if order.PaymentStatus != models.PaymentStatusAuthorized {
		return nil, &ServiceError{StatusCode: 409, Message: "Payment is " + string(order.PaymentStatus) + ", nothing to capture"}
	}

	log := s.logger.With(zap.String("order_number", orderNumber), zap.String("payment_id", order.TransactionID), zap.String("actor", actor))

	tx, err := s.gateway.FetchPayment(ctx, order.TransactionID)
	if err != nil {
		log.Error("Failed to fetch payment before capture", zap.Error(err))
		return nil, gatewayServiceError(err)
	}
	if tx.AmountPaise != order.Total {
		log.Warn("Gateway amount differs from order total, refusing capture",
			zap.Int64("gateway_amount", tx.AmountPaise), zap.Int64("order_total", order.Total))
		return nil, &ServiceError{StatusCode: 409, Message: "Gateway amount does not match the order total"}
	}

	switch tx.Status {
	case models.GatewayStatusCaptured:
		log.Info("Payment already captured on gateway")
	case models.GatewayStatusAuthorized:
		if _, err := s.gateway.Capture(ctx, order.TransactionID, order.Total, order.Currency); err != nil {
			log.Error("Manual capture failed", zap.Error(err))
			return nil, gatewayServiceError(err)
		}
		log.Info("Payment captured manually")
	default:
		return nil, &ServiceError{StatusCode: 409, Message: "Gateway reports payment as " + string(tx.Status)}
	}

	now := s.clock.Now().UTC()
	if _, err := s.orders.MarkCaptured(ctx, orderNumber, now, models.StatusChange{
		Status:        order.Status,
		PaymentStatus: models.PaymentStatusCompleted,
		Note:          "payment captured by admin",
		Actor:         actor,
		At:            now,
	}); err != nil {
		log.Error("Payment captured but order update failed", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Payment captured but the order could not be updated"}
	}
	return s.GetOrder(ctx, orderNumber)
}

func (s *adminOrderServiceImpl) UpdateStatus(ctx context.Context, orderNumber string, req *models.UpdateOrderStatusRequest, actor string) (*models.Order, *ServiceError) {
	order, serr := s.GetOrder(ctx, orderNumber)
	if serr != nil {
		return nil, serr
	}
	if !CanTransition(order.Status, req.Status) {
		return nil, &ServiceError{StatusCode: 409, Message: "Cannot move order from " + string(order.Status) + " to " + string(req.Status)}
	}
	if req.Status == models.OrderStatusShipped && order.PaymentStatus != models.PaymentStatusCompleted {
		return nil, &ServiceError{StatusCode: 409, Message: "Payment has not been captured"}
	}

	now := s.clock.Now().UTC()
	err := s.orders.UpdateStatus(ctx, orderNumber, order.Status, req.Status, models.StatusChange{
		Status: req.Status,
		Note:   req.Note,
		Actor:  actor,
		At:     now,
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, &ServiceError{StatusCode: 409, Message: "Order was updated concurrently, reload and retry"}
	}
	if err != nil {
		s.logger.Error("Failed to update order status", zap.String("order_number", orderNumber), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order status"}
	}

	s.logger.Info("Order status updated",
		zap.String("order_number", orderNumber),
		zap.String("from", string(order.Status)),
		zap.String("to", string(req.Status)),
		zap.String("actor", actor),
	)

	order.Status = req.Status
	if req.Status == models.OrderStatusCancelled && s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewOrderEvent(models.EventOrderCancelled, order, now)); err != nil {
			s.logger.Warn("Failed to publish order.cancelled", zap.String("order_number", orderNumber), zap.Error(err))
		}
	}
	return s.GetOrder(ctx, orderNumber)
}

func gatewayServiceError(err error) *ServiceError {
	if errors.Is(err, gateway.ErrOutcomeUnknown) {
		return &ServiceError{StatusCode: 504, Message: "Gateway did not answer in time; check the payment before retrying"}
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{StatusCode: 502, Message: "Gateway rejected the request: " + apiErr.Message}
	}
	return &ServiceError{StatusCode: 502, Message: "Gateway request failed"}
}
