package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// OrderFilter narrows a trader's order listing.
type OrderFilter struct {
	Symbol string
}

// Orders is the order store.
type Orders interface {
	Create(ctx context.Context, order *Order) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	ListByTrader(ctx context.Context, traderID int64, filter OrderFilter) ([]*Order, error)
	// CompareAndSetStatus moves the order owned by traderID to status "to" only
	// if its current status is one of "from". It reports false, without error,
	// when no row matched.
	CompareAndSetStatus(ctx context.Context, id, traderID int64, from []OrderStatus, to OrderStatus) (*Order, bool, error)
}

type orders struct {
	db  *bun.DB
	now func() time.Time
}

var _ Orders = (*orders)(nil)

// NewOrdersRepository returns a bun backed Orders store.
func NewOrdersRepository(db *bun.DB) Orders {
	return &orders{db: db, now: time.Now}
}

func (o *orders) Create(ctx context.Context, order *Order) (*Order, error) {
	if order == nil {
		return nil, ErrMissingRequiredField.Clone()
	}
	if _, err := o.db.NewInsert().Model(order).Exec(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func (o *orders) GetByID(ctx context.Context, id int64) (*Order, error) {
	return o.getOne(ctx, o.db, "id", id)
}

func (o *orders) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	return o.getOne(ctx, o.db, "order_id", strings.TrimSpace(orderID))
}

// ListByTrader returns the trader's orders in insertion order.
func (o *orders) ListByTrader(ctx context.Context, traderID int64, filter OrderFilter) ([]*Order, error) {
	records := []*Order{}
	q := o.db.NewSelect().
		Model(&records).
		Where("?TableAlias.trader_id = ?", traderID)

	if symbol := strings.TrimSpace(filter.Symbol); symbol != "" {
		q = q.Where("?TableAlias.symbol = ?", symbol)
	}

	if err := q.OrderExpr("?TableAlias.id ASC").Scan(ctx); err != nil {
		if isNotFound(err) {
			return []*Order{}, nil
		}
		return nil, err
	}
	return records, nil
}

func (o *orders) CompareAndSetStatus(ctx context.Context, id, traderID int64, from []OrderStatus, to OrderStatus) (*Order, bool, error) {
	var (
		updated *Order
		swapped bool
	)

	err := o.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*Order)(nil)).
			Set("status = ?", to).
			Set("updated_at = ?", o.now()).
			Where("id = ?", id).
			Where("trader_id = ?", traderID).
			Where("status IN (?)", bun.In(from)).
			Exec(ctx)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		swapped = true
		updated, err = o.getOne(ctx, tx, "id", id)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	return updated, swapped, nil
}

func (o *orders) getOne(ctx context.Context, tx bun.IDB, column string, value any) (*Order, error) {
	record := &Order{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				column: value,
			})
		}
		return nil, err
	}
	return record, nil
}
