package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-trade-gateway/middleware/jwtware"
)

const (
	claimsLocalsKey = "user"
	actorLocalsKey  = "actor"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	ErrorCode string    `json:"errorCode"`
	Message   string    `json:"message"`
}

// HTTPOptions configures the transport.
type HTTPOptions struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	AllowAdminSetup bool
	Logger          Logger
	// Health is called by GET /healthz; nil always reports healthy.
	Health func(ctx context.Context) error
}

// NewHTTPApp builds the fiber application and mounts every route through the
// router adapter.
func NewHTTPApp(mirror *IdentityMirror, auth *Authenticator, orders *OrderManager, tokens TokenService, opts HTTPOptions) *fiber.App {
	logger := normalizeLogger(opts.Logger)

	var app *fiber.App
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app = fiber.New(fiber.Config{
			AppName:               "trade-gateway",
			ReadTimeout:           opts.ReadTimeout,
			WriteTimeout:          opts.WriteTimeout,
			IdleTimeout:           opts.IdleTimeout,
			DisableStartupMessage: true,
			ErrorHandler:          NewErrorHandler(logger),
		})
		return app
	})

	controller := NewController(mirror, auth, orders).
		WithLogger(logger).
		WithHealth(opts.Health)

	RegisterRoutes(srv.Router(), controller, tokens, opts.AllowAdminSetup)

	return app
}

// Router is the subset of router.Router the gateway mounts on.
type Router interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RegisterRoutes mounts the gateway endpoints on r. Guards are composed with
// chain so their order does not depend on the adapter.
func RegisterRoutes(r Router, controller *Controller, tokens TokenService, allowAdminSetup bool) {
	r.Get("/healthz", controller.Health)

	r.Post("/api/v1/auth/register", controller.Register)
	if allowAdminSetup {
		r.Post("/api/v1/auth/setup-admin", controller.SetupAdmin)
	}
	r.Post("/api/v1/auth/authenticate", controller.Authenticate)

	admin := []router.MiddlewareFunc{
		Protected(tokens, RoleAdmin, Role.CanManageAccounts),
		controller.ResolveActor,
	}
	r.Post("/api/v1/auth/enable/:email", chain(controller.Enable, admin...))
	r.Post("/api/v1/auth/disable/:email", chain(controller.Disable, admin...))
	r.Post("/api/v1/auth/role/:email", chain(controller.AssignRole, admin...))

	trader := []router.MiddlewareFunc{
		Protected(tokens, RoleTrader, Role.CanTrade),
		controller.ResolveActor,
	}
	r.Post("/api/v1/orders", chain(controller.CreateOrder, trader...))
	r.Get("/api/v1/orders", chain(controller.ListOrders, trader...))
	r.Get("/api/v1/orders/:id", chain(controller.GetOrder, trader...))
	r.Delete("/api/v1/orders/:id", chain(controller.CancelOrder, trader...))
}

// chain wraps h so that mws[0] runs first.
func chain(h router.HandlerFunc, mws ...router.MiddlewareFunc) router.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Protected returns the JWT middleware admitting tokens whose role passes
// allow. Middleware failures are translated into the gateway taxonomy and
// rendered by the app's error handler.
func Protected(tokens TokenService, role Role, allow func(Role) bool) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ContextKey:   claimsLocalsKey,
		RequiredRole: string(role),
		RoleChecker: func(claims jwtware.AuthClaims, _ string) bool {
			return allow(Role(claims.Role()))
		},
		TokenValidator: jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
			return tokens.Validate(raw)
		}),
		ErrorHandler: func(_ router.Context, err error) error {
			switch {
			case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
				return withCause(ErrTokenInvalid, err, nil)
			case errors.Is(err, jwtware.ErrRoleRequired):
				return withCause(ErrAccessDenied, err, map[string]any{"required_role": string(role)})
			}
			return err
		},
	})
}

// NewErrorHandler renders any error as an ErrorBody. Server side failures are
// logged with their cause; client failures at debug level.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx, err error) error {
		var resp ErrorResponse

		if fe, ok := err.(*fiber.Error); ok {
			resp = ResponseFor(fromFiberError(fe))
		} else {
			resp = ResponseFor(err)
		}

		if resp.Severity == SeverityServer {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"code", resp.Code,
				"error", err,
			)
		} else {
			logger.Debug("request rejected",
				"method", c.Method(),
				"path", c.Path(),
				"code", resp.Code,
			)
		}

		return c.Status(resp.Status).JSON(ErrorBody{
			Timestamp: time.Now().UTC(),
			Status:    resp.Status,
			Error:     http.StatusText(resp.Status),
			ErrorCode: resp.Code,
			Message:   resp.Message,
		})
	}
}

// fromFiberError maps errors raised by fiber itself, such as an unmatched
// route or method, into the taxonomy.
func fromFiberError(fe *fiber.Error) error {
	switch {
	case fe.Code == fiber.StatusNotFound:
		return withCause(ErrRouteNotFound, fe, nil)
	case fe.Code >= fiber.StatusInternalServerError:
		return withCause(ErrInternal, fe, nil)
	}
	return withCause(ErrInvalidInput, fe, map[string]any{"status": fe.Code})
}

// ActorFromContext returns the acting user resolved for this request.
func ActorFromContext(ctx router.Context) (*User, bool) {
	user, ok := ctx.Locals(actorLocalsKey).(*User)
	return user, ok && user != nil
}
