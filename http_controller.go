package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-router"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-trade-gateway/middleware/jwtware"
)

// Controller adapts HTTP requests to the core components.
type Controller struct {
	mirror *IdentityMirror
	auth   *Authenticator
	orders *OrderManager
	logger Logger
	health func(ctx context.Context) error
}

// NewController returns a Controller
func NewController(mirror *IdentityMirror, auth *Authenticator, orders *OrderManager) *Controller {
	return &Controller{
		mirror: mirror,
		auth:   auth,
		orders: orders,
		logger: NewNopLogger(),
	}
}

func (a *Controller) WithLogger(logger Logger) *Controller {
	a.logger = normalizeLogger(logger)
	return a
}

func (a *Controller) WithHealth(health func(ctx context.Context) error) *Controller {
	a.health = health
	return a
}

// RegisterRequest payload
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Role, validation.In(string(RoleTrader), string(RoleAdmin), string(RoleObserver))),
	)
}

// RegisterResponse acknowledges a registration.
type RegisterResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// AuthenticationRequest payload
type AuthenticationRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r AuthenticationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// AuthenticationResponse carries the issued token.
type AuthenticationResponse struct {
	Token string `json:"token"`
}

// AccountStatusResponse reports the outcome of enable/disable.
type AccountStatusResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
	Enabled bool   `json:"enabled"`
}

// AssignRoleRequest payload
type AssignRoleRequest struct {
	Role string `json:"role"`
}

// Validate will run validation rules
func (r AssignRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(string(RoleTrader), string(RoleAdmin), string(RoleObserver))),
	)
}

// CreateOrderRequest payload. Quantity and symbol are checked by the order
// manager so their failures keep their own codes.
type CreateOrderRequest struct {
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	OrderType string          `json:"orderType"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Validate will run validation rules
func (r CreateOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Side, validation.Required, validation.In(string(SideBuy), string(SideSell))),
		validation.Field(&r.OrderType, validation.Required, validation.In(string(OrderTypeMarket), string(OrderTypeLimit))),
		validation.Field(&r.Price, validation.By(func(value any) error {
			price, _ := value.(decimal.Decimal)
			if OrderType(r.OrderType) == OrderTypeLimit && !price.IsPositive() {
				return validation.NewError("validation_limit_price", "must be greater than zero for LIMIT orders")
			}
			if price.IsNegative() {
				return validation.NewError("validation_price_negative", "must not be negative")
			}
			return nil
		})),
	)
}

func (r CreateOrderRequest) toOrder() *Order {
	price := r.Price
	if OrderType(r.OrderType) == OrderTypeMarket {
		price = decimal.Zero
	}
	return &Order{
		Symbol:   r.Symbol,
		Side:     OrderSide(r.Side),
		Type:     OrderType(r.OrderType),
		Quantity: r.Quantity,
		Price:    price,
	}
}

type validatable interface {
	Validate() error
}

func bindAndValidate(ctx router.Context, payload validatable) error {
	if err := ctx.Bind(payload); err != nil {
		return withCause(ErrInvalidInput, err, map[string]any{"body": "unparseable"})
	}
	if err := payload.Validate(); err != nil {
		return withCause(ErrInvalidInput, err, formatValidationErrorToMap(err))
	}
	return nil
}

func formatValidationErrorToMap(err error) map[string]any {
	out := map[string]any{}
	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			out[field] = fieldErr.Error()
		}
		return out
	}
	out["validation"] = err.Error()
	return out
}

func (a *Controller) Health(ctx router.Context) error {
	if a.health != nil {
		if err := a.health(ctx.Context()); err != nil {
			a.logger.Error("health check failed", "error", err)
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return ctx.JSON(router.StatusOK, map[string]string{"status": "ok"})
}

func (a *Controller) Register(ctx router.Context) error {
	return a.register(ctx, "")
}

// SetupAdmin registers a user forcing the ADMIN role.
func (a *Controller) SetupAdmin(ctx router.Context) error {
	return a.register(ctx, RoleAdmin)
}

func (a *Controller) register(ctx router.Context, forceRole Role) error {
	payload := new(RegisterRequest)
	if err := bindAndValidate(ctx, payload); err != nil {
		return err
	}

	role := Role(payload.Role)
	if forceRole != "" {
		role = forceRole
	}

	user, err := a.mirror.Register(ctx.Context(), Registration{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		Role:      role,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, RegisterResponse{
		Message: "User registered successfully",
		Email:   user.Email,
	})
}

func (a *Controller) Authenticate(ctx router.Context) error {
	payload := new(AuthenticationRequest)
	if err := bindAndValidate(ctx, payload); err != nil {
		return err
	}

	token, err := a.auth.Authenticate(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, AuthenticationResponse{Token: token})
}

func (a *Controller) Enable(ctx router.Context) error {
	return a.setEnabled(ctx, true)
}

func (a *Controller) Disable(ctx router.Context) error {
	return a.setEnabled(ctx, false)
}

func (a *Controller) setEnabled(ctx router.Context, enabled bool) error {
	email, err := emailParam(ctx)
	if err != nil {
		return err
	}

	got, err := a.mirror.SetEnabled(ctx.Context(), email, enabled)
	if err != nil {
		return err
	}

	message := "User account disabled successfully"
	if got {
		message = "User account enabled successfully"
	}

	return ctx.JSON(router.StatusOK, AccountStatusResponse{
		Message: message,
		Email:   email,
		Enabled: got,
	})
}

func (a *Controller) AssignRole(ctx router.Context) error {
	payload := new(AssignRoleRequest)
	if err := bindAndValidate(ctx, payload); err != nil {
		return err
	}

	email, err := emailParam(ctx)
	if err != nil {
		return err
	}

	user, err := a.mirror.AssignRole(ctx.Context(), email, Role(payload.Role))
	if err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, user)
}

func (a *Controller) CreateOrder(ctx router.Context) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	payload := new(CreateOrderRequest)
	if err := bindAndValidate(ctx, payload); err != nil {
		return err
	}

	order, err := a.orders.Create(ctx.Context(), payload.toOrder(), actor)
	if err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, order)
}

func (a *Controller) ListOrders(ctx router.Context) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	list, err := a.orders.ListForTrader(ctx.Context(), actor, OrderFilter{Symbol: ctx.Query("symbol", "")})
	if err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, list)
}

func (a *Controller) GetOrder(ctx router.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	order, err := a.orders.GetByID(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, order)
}

func (a *Controller) CancelOrder(ctx router.Context) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}

	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	order, err := a.orders.Cancel(ctx.Context(), id, actor)
	if err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, order)
}

// ResolveActor loads the local user named by the token and refuses disabled
// accounts, so a token issued before a disable stops working.
func (a *Controller) ResolveActor(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		claims, ok := jwtware.ClaimsFromContext(ctx, claimsLocalsKey)
		if !ok {
			return ErrTokenInvalid.Clone()
		}

		user, err := a.mirror.FindByEmail(ctx.Context(), claims.Email())
		if err != nil {
			return err
		}
		if user == nil {
			return withDetail(ErrTokenInvalid, map[string]any{"reason": "unknown subject"})
		}
		if !user.Enabled {
			return withDetail(ErrAccountDisabled, map[string]any{"email": user.Email})
		}

		ctx.Locals(actorLocalsKey, user)
		ctx.SetContext(WithContext(ctx.Context(), user))
		return next(ctx)
	}
}

func requireActor(ctx router.Context) (*User, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrTokenInvalid.Clone()
	}
	return actor, nil
}

func idParam(ctx router.Context) (int64, error) {
	raw := ctx.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, withDetail(ErrInvalidInput, map[string]any{"id": raw})
	}
	return id, nil
}

// emailParam returns the decoded :email segment, so a%2Bb%40example.com
// addresses a+b@example.com.
func emailParam(ctx router.Context) (string, error) {
	raw := ctx.Param("email")
	email, err := url.PathUnescape(raw)
	if err != nil {
		return "", withCause(ErrInvalidInput, err, map[string]any{"email": raw})
	}
	return strings.TrimSpace(email), nil
}
