package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/services/metrics"
)

const (
	contextSessionKey = "session"
	bearerPrefix      = "Bearer "

	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// sessionMiddleware resolves the caller of every request into a SessionContext.
// The context lives for the request only.
func sessionMiddleware(provider *auth.Provider, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := requestToken(ctx, cookieName)
			ctx.Set(contextSessionKey, provider.Authenticate(ctx.Request().Context(), token))
			return next(ctx)
		}
	}
}

// guardMiddleware runs the route access state machine against the route table.
// Unauthenticated callers are sent to the login page; forbidden ones get a fixed notice
// and the handler never runs.
func guardMiddleware(collector *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			route, ok := access.RouteFor(ctx.Request().URL.Path)
			if !ok {
				return errHttpNotFound
			}

			state, err := access.NewGate().Resolve(getSessionContext(ctx).Principal(), route.AnyOf...)
			if err != nil {
				return errors.Wrap(err, "resolving route access")
			}
			if collector != nil {
				collector.RouteAccess(route.Path, state.String())
			}

			switch state {
			case access.StateAuthorized:
				return next(ctx)
			case access.StateUnauthenticated:
				return ctx.Redirect(http.StatusSeeOther, loginPath)
			default:
				return errForbidden
			}
		}
	}
}

// requireCaps narrows a guarded route to callers holding any of caps.
func requireCaps(caps ...access.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !getSessionContext(ctx).Can(caps...) {
				return errForbidden
			}
			return next(ctx)
		}
	}
}

// requestToken reads the access token from the Authorization header, then the session cookie.
func requestToken(ctx echo.Context, cookieName string) string {
	if header := ctx.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	if cookie, err := ctx.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// getSessionContext never returns nil: requests that skipped sessionMiddleware are unauthenticated.
func getSessionContext(ctx echo.Context) *auth.SessionContext {
	if sc, ok := ctx.Get(contextSessionKey).(*auth.SessionContext); ok && sc != nil {
		return sc
	}
	return &auth.SessionContext{}
}

// contextProfile is the caller's profile for logging, nil when unauthenticated.
func contextProfile(ctx echo.Context) interface{} {
	if sc := getSessionContext(ctx); sc.Authenticated() {
		return *sc.Profile
	}
	return nil
}
