package gateway

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Role is the user's role
type Role string

const (
	// RoleTrader may submit, list and cancel its own orders
	RoleTrader Role = "TRADER"
	// RoleAdmin manages accounts
	RoleAdmin Role = "ADMIN"
	// RoleObserver is read only
	RoleObserver Role = "OBSERVER"
)

// User is the local mirror of an identity.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name"`
	LastName      string     `bun:"last_name,notnull" json:"last_name"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          Role       `bun:"user_role,notnull" json:"role"`
	Enabled       bool       `bun:"enabled,notnull" json:"enabled"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// OrderSide is the direction of an order
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// IsValid reports whether the side is BUY or SELL.
func (s OrderSide) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType is the pricing model of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// IsValid reports whether the type is MARKET or LIMIT.
func (t OrderType) IsValid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// Order is a trader's instruction to buy or sell.
type Order struct {
	bun.BaseModel  `bun:"table:orders,alias:ord"`
	ID             int64           `bun:"id,pk,autoincrement" json:"id"`
	OrderID        string          `bun:"order_id,notnull,unique" json:"orderId"`
	TraderID       int64           `bun:"trader_id,notnull" json:"traderId"`
	Symbol         string          `bun:"symbol,notnull" json:"symbol"`
	Side           OrderSide       `bun:"side,notnull" json:"side"`
	Type           OrderType       `bun:"order_type,notnull" json:"orderType"`
	Quantity       decimal.Decimal `bun:"quantity,type:decimal(24,8),notnull" json:"quantity"`
	Price          decimal.Decimal `bun:"price,type:decimal(24,8),notnull" json:"price"`
	FilledQuantity decimal.Decimal `bun:"filled_quantity,type:decimal(24,8),notnull" json:"filledQuantity"`
	AveragePrice   decimal.Decimal `bun:"average_price,type:decimal(24,8),notnull" json:"averagePrice"`
	Status         OrderStatus     `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull" json:"updatedAt"`
}

// IsOwnedBy reports whether the order belongs to the given user.
func (o *Order) IsOwnedBy(user *User) bool {
	return o != nil && user != nil && o.TraderID == user.ID
}
