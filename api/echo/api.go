package echo

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/keeperfind/keeper-auth/domain"
	apierrors "github.com/keeperfind/keeper-auth/errors"
	"github.com/keeperfind/keeper-auth/services"
)

// URLConfig holds the externally visible URLs embedded into delivered codes.
type URLConfig struct {
	ConfirmationURLBase string
	ResetURLBase        string
}

// AuthCodeAPI struct to hold dependencies.
type AuthCodeAPI struct {
	service  *services.AuthCodeService
	identity domain.IdentityUpdater
	sender   domain.Sender
	urls     URLConfig
}

// NewAuthCodeAPI initializes the authentication code API.
func NewAuthCodeAPI(service *services.AuthCodeService, identity domain.IdentityUpdater, sender domain.Sender, urls URLConfig) *AuthCodeAPI {
	return &AuthCodeAPI{
		service:  service,
		identity: identity,
		sender:   sender,
		urls:     urls,
	}
}

// RegisterRoutes registers the API routes.
func (a *AuthCodeAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/request-confirmation", a.RequestConfirmationHandler)
	e.POST("/api/v1/request-password-reset", a.RequestPasswordResetHandler)
	e.POST("/api/v1/validate-code", a.ValidateCodeHandler)
	e.POST("/api/v1/confirm-email", a.ConfirmEmailHandler)
	e.POST("/api/v1/reset-password", a.ResetPasswordHandler)

	e.GET("/health", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

type issueRequest struct {
	UserID string `json:"user_id"`
}

type validateRequest struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

type confirmEmailRequest struct {
	Code string `json:"code"`
}

type resetPasswordRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// RequestConfirmationHandler issues an email confirmation code and hands it
// to the delivery sender. The plaintext leaves the service only inside the
// action URL.
func (a *AuthCodeAPI) RequestConfirmationHandler(c echo.Context) error {
	return a.issue(c, domain.PurposeEmailConfirmation, a.urls.ConfirmationURLBase)
}

// RequestPasswordResetHandler issues a password reset code and hands it to
// the delivery sender.
func (a *AuthCodeAPI) RequestPasswordResetHandler(c echo.Context) error {
	return a.issue(c, domain.PurposePasswordReset, a.urls.ResetURLBase)
}

func (a *AuthCodeAPI) issue(c echo.Context, purpose domain.Purpose, urlBase string) error {
	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Malformed request body"))
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("user_id is required"))
	}

	ctx := c.Request().Context()
	code, err := a.service.Issue(ctx, req.UserID, purpose)
	if err != nil {
		log.Error().Err(err).Str("purpose", string(purpose)).Msg("Code issuance failed")
		return c.JSON(http.StatusServiceUnavailable, apierrors.NewServerError())
	}

	actionURL := urlBase + "?code=" + url.QueryEscape(code)
	if err := a.sender.Send(ctx, req.UserID, purpose, actionURL); err != nil {
		log.Error().Err(err).Str("purpose", string(purpose)).Msg("Code delivery failed")
		return c.JSON(http.StatusServiceUnavailable, apierrors.NewServerError())
	}

	return c.JSON(http.StatusAccepted, echo.Map{
		"success": true,
		"message": "If the account exists, an email is on its way.",
	})
}

// ValidateCodeHandler redeems a presented code and returns the owner it
// authorizes. Every failure maps to the same generic payload.
func (a *AuthCodeAPI) ValidateCodeHandler(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Malformed request body"))
	}
	purpose, ok := domain.ParsePurpose(req.Type)
	if !ok {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Unknown code type"))
	}

	ownerID, err := a.service.Validate(c.Request().Context(), req.Code, purpose)
	if err != nil {
		return a.redemptionFailure(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"valid":   true,
		"user_id": ownerID,
	})
}

// ConfirmEmailHandler redeems a confirmation code and marks the owner's
// email verified through the identity updater.
func (a *AuthCodeAPI) ConfirmEmailHandler(c echo.Context) error {
	var req confirmEmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Malformed request body"))
	}

	ctx := c.Request().Context()
	ownerID, err := a.service.Validate(ctx, req.Code, domain.PurposeEmailConfirmation)
	if err != nil {
		return a.redemptionFailure(c, err)
	}

	if err := a.identity.ConfirmEmail(ctx, ownerID); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Email confirmation failed after redemption")
		return c.JSON(http.StatusServiceUnavailable, apierrors.NewServerError())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Email address confirmed.",
	})
}

// ResetPasswordHandler redeems a reset code and sets the owner's new
// password through the identity updater.
func (a *AuthCodeAPI) ResetPasswordHandler(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("Malformed request body"))
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("new_password must be at least 8 characters"))
	}

	ctx := c.Request().Context()
	ownerID, err := a.service.Validate(ctx, req.Code, domain.PurposePasswordReset)
	if err != nil {
		return a.redemptionFailure(c, err)
	}

	if err := a.identity.SetPassword(ctx, ownerID, req.NewPassword); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Password update failed after redemption")
		return c.JSON(http.StatusServiceUnavailable, apierrors.NewServerError())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Password updated.",
	})
}

// HealthHandler reports service liveness.
func (a *AuthCodeAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "healthy"})
}

// redemptionFailure collapses every validation outcome into one response.
// The service already logged and counted the real outcome.
func (a *AuthCodeAPI) redemptionFailure(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrStorage) {
		return c.JSON(http.StatusServiceUnavailable, apierrors.NewServerError())
	}
	return c.JSON(http.StatusBadRequest, apierrors.NewInvalidCode())
}
