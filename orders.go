package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderManager owns the order lifecycle. The acting user is always passed in
// by the caller; nothing is read from ambient request state.
type OrderManager struct {
	orders   Orders
	logger   Logger
	activity activityRecorder
	now      func() time.Time
	newID    func() string
}

// NewOrderManager returns an OrderManager backed by the given store.
func NewOrderManager(orders Orders) *OrderManager {
	logger := NewNopLogger()
	return &OrderManager{
		orders:   orders,
		logger:   logger,
		activity: newActivityRecorder(logger),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (m *OrderManager) WithLogger(logger Logger) *OrderManager {
	m.logger = normalizeLogger(logger)
	m.activity.logger = m.logger
	return m
}

// WithActivitySink configures an ActivitySink for emitting order events.
func (m *OrderManager) WithActivitySink(sink ActivitySink) *OrderManager {
	m.activity.sink = normalizeActivitySink(sink)
	return m
}

// WithClock injects a custom clock (useful for tests).
func (m *OrderManager) WithClock(now func() time.Time) *OrderManager {
	if now != nil {
		m.now = now
		m.activity.now = now
	}
	return m
}

// Create validates the draft and persists a NEW order owned by actor.
// Identity, status and fill fields supplied by the caller are ignored.
func (m *OrderManager) Create(ctx context.Context, draft *Order, actor *User) (*Order, error) {
	if actor == nil {
		return nil, ErrNotAuthorized.Clone()
	}
	if draft == nil {
		return nil, withDetail(ErrMissingRequiredField, map[string]any{"field": "order"})
	}

	if !draft.Quantity.IsPositive() {
		return nil, withDetail(ErrInvalidQuantity, map[string]any{"quantity": draft.Quantity.String()})
	}

	symbol := strings.TrimSpace(draft.Symbol)
	if symbol == "" {
		return nil, withDetail(ErrMissingRequiredField, map[string]any{"field": "symbol"})
	}

	now := m.now()
	order := &Order{
		OrderID:        m.newID(),
		TraderID:       actor.ID,
		Symbol:         symbol,
		Side:           draft.Side,
		Type:           draft.Type,
		Quantity:       draft.Quantity,
		Price:          draft.Price,
		FilledQuantity: decimal.Zero,
		AveragePrice:   decimal.Zero,
		Status:         OrderStatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := m.orders.Create(ctx, order)
	if err != nil {
		m.logger.Error("create order failed", "trader", actor.Email, "symbol", symbol, "error", err)
		return nil, withCause(ErrInternal, err, nil)
	}

	m.logger.Info("order created",
		"order_id", created.OrderID,
		"trader", actor.Email,
		"symbol", created.Symbol,
		"side", string(created.Side),
		"quantity", created.Quantity.String(),
	)
	m.activity.record(ctx, ActivityEventOrderCreated, actorFromUser(actor), created.OrderID, map[string]any{
		"id":     created.ID,
		"symbol": created.Symbol,
	})

	return created, nil
}

// ListForTrader returns the actor's orders in the order they were created.
func (m *OrderManager) ListForTrader(ctx context.Context, actor *User, filter ...OrderFilter) ([]*Order, error) {
	if actor == nil {
		return nil, ErrNotAuthorized.Clone()
	}

	var f OrderFilter
	if len(filter) > 0 {
		f = filter[0]
	}

	out, err := m.orders.ListByTrader(ctx, actor.ID, f)
	if err != nil {
		return nil, withCause(ErrInternal, err, nil)
	}
	return out, nil
}

// GetByID returns the order with the given surrogate id.
func (m *OrderManager) GetByID(ctx context.Context, id int64) (*Order, error) {
	order, err := m.orders.GetByID(ctx, id)
	if err != nil {
		return nil, m.lookupError(err, map[string]any{"id": id})
	}
	return order, nil
}

// GetByOrderID returns the order with the given client facing id.
func (m *OrderManager) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	order, err := m.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, m.lookupError(err, map[string]any{"order_id": orderID})
	}
	return order, nil
}

// Cancel moves an order owned by actor to CANCELLED. Ownership is checked
// before status, so a non-owner is refused whatever state the order is in.
// The store update is a compare-and-set on the status, so of two racing
// cancels exactly one wins.
func (m *OrderManager) Cancel(ctx context.Context, id int64, actor *User) (*Order, error) {
	if actor == nil {
		return nil, ErrNotAuthorized.Clone()
	}

	order, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.IsOwnedBy(actor) {
		m.logger.Warn("cancel refused for non owner", "id", id, "actor", actor.Email)
		return nil, withDetail(ErrNotAuthorized, map[string]any{"id": id})
	}

	if !order.Status.IsCancellable() {
		return nil, withDetail(ErrInvalidOrderStatus, map[string]any{
			"id":     id,
			"status": string(order.Status),
		})
	}

	updated, swapped, err := m.orders.CompareAndSetStatus(ctx, id, actor.ID, CancellableStatuses(), OrderStatusCancelled)
	if err != nil {
		m.logger.Error("cancel order failed", "id", id, "error", err)
		return nil, withCause(ErrInternal, err, nil)
	}
	if !swapped {
		return nil, withDetail(ErrInvalidOrderStatus, map[string]any{
			"id":     id,
			"reason": "status changed concurrently",
		})
	}

	m.logger.Info("order cancelled", "order_id", updated.OrderID, "trader", actor.Email, "from", string(order.Status))
	m.activity.record(ctx, ActivityEventOrderCancelled, actorFromUser(actor), updated.OrderID, map[string]any{
		"id":   updated.ID,
		"from": string(order.Status),
	})

	return updated, nil
}

func (m *OrderManager) lookupError(err error, metadata map[string]any) error {
	if isNotFound(err) {
		return withDetail(ErrOrderNotFound, metadata)
	}
	return withCause(ErrInternal, err, nil)
}
