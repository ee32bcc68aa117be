package echoapi

import (
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/services/metrics"
)

type authApi struct {
	conf       *core.Config
	logger     core.Logger
	provider   *auth.Provider
	metrics    *metrics.Collector
	validate   *validator.Validate
	translator ut.Translator
}

func registerAuthAPI(app *echo.Echo, session echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		conf:       deps.Conf,
		logger:     deps.Logger,
		provider:   deps.Provider,
		metrics:    deps.Metrics,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// un-authed endpoints
	app.GET(loginPath, api.loginPage)
	app.POST(loginPath, api.login)
	app.POST("/session/refresh", api.refresh)
	app.POST("/password-reset", api.resetPassword)
	app.POST("/password-reset-confirm", api.confirmPasswordReset)

	// session endpoints
	app.GET("/session", api.session, session)
	app.POST("/logout", api.logout, session)
}

// Handlers

func (api *authApi) loginPage(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, LoginPage{
		AppName:    api.conf.AppName,
		SiakadURL:  api.conf.Links.SiakadURL,
		WebsiteURL: api.conf.Links.WebsiteURL,
	})
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, prof, err := api.provider.SignIn(ctx.Request().Context(), data.IdentityNumber, data.Password)
	if err != nil {
		api.countSignIn(err)
		return errors.Wrap(err, "signing in")
	}
	api.countSignIn(nil)

	setSessionCookie(ctx, api.conf, sess.AccessToken, sess.ExpiresAt)
	return ctx.JSON(http.StatusOK, LoginResponse{
		Session:  sess,
		Profile:  prof,
		Menu:     access.MenuFor(prof.Role),
		Redirect: dashboardPath,
	})
}

// logout always ends the local session and redirects to the login page.
// A backend failure is only logged.
func (api *authApi) logout(ctx echo.Context) error {
	sc := getSessionContext(ctx)
	prof := contextProfile(ctx)

	result := "success"
	if err := api.provider.SignOut(ctx.Request().Context(), sc); err != nil {
		result = "backend_error"
		api.logger.Warn("signing out", err, prof)
	}
	if api.metrics != nil {
		api.metrics.SignOut(result)
	}

	clearSessionCookie(ctx, api.conf)
	return ctx.Redirect(http.StatusSeeOther, loginPath)
}

func (api *authApi) session(ctx echo.Context) error {
	sc := getSessionContext(ctx)
	if !sc.Authenticated() {
		return errUnauthorized
	}
	return ctx.JSON(http.StatusOK, SessionResponse{
		Profile:      *sc.Profile,
		Capabilities: sc.Caps.List(),
		Menu:         access.MenuFor(sc.Profile.Role),
	})
}

func (api *authApi) refresh(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.provider.Refresh(ctx.Request().Context(), data.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}
	setSessionCookie(ctx, api.conf, sess.AccessToken, sess.ExpiresAt)
	return ctx.JSON(http.StatusOK, sess)
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.provider.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data PasswordResetConfirmRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetConfirmRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.provider.ConfirmPasswordReset(ctx.Request().Context(), data.UID, data.Token, data.Password); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authApi) countSignIn(err error) {
	if api.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
		if ae, ok := core.AsAuthError(err); ok {
			result = string(ae.Reason)
		}
	}
	api.metrics.SignIn(result)
}

func setSessionCookie(ctx echo.Context, conf *core.Config, token string, expires time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !(conf.Debug || conf.TestMode),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(ctx echo.Context, conf *core.Config) {
	ctx.SetCookie(&http.Cookie{
		Name:     conf.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   !(conf.Debug || conf.TestMode),
		SameSite: http.SameSiteLaxMode,
	})
}
