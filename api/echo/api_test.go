package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeperfind/keeper-auth/cache"
	"github.com/keeperfind/keeper-auth/domain"
	"github.com/keeperfind/keeper-auth/internal/codehash"
	"github.com/keeperfind/keeper-auth/services"
)

// --- Test doubles ---

type captureSender struct {
	urls []string
}

func (s *captureSender) Send(_ context.Context, _ string, _ domain.Purpose, actionURL string) error {
	s.urls = append(s.urls, actionURL)
	return nil
}

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.urls, "no code was delivered")
	u, err := url.Parse(s.urls[len(s.urls)-1])
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code, "delivered URL carries no code")
	return code
}

type fakeIdentity struct {
	confirmed []string
	passwords map[string]string
}

func (f *fakeIdentity) ConfirmEmail(_ context.Context, ownerID string) error {
	f.confirmed = append(f.confirmed, ownerID)
	return nil
}

func (f *fakeIdentity) SetPassword(_ context.Context, ownerID, newPassword string) error {
	if f.passwords == nil {
		f.passwords = map[string]string{}
	}
	f.passwords[ownerID] = newPassword
	return nil
}

type testEnv struct {
	router   *echo.Echo
	sender   *captureSender
	identity *fakeIdentity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := cache.NewMemoryCodeStore(time.Minute)
	t.Cleanup(store.Stop)

	service := services.NewAuthCodeService(store, codehash.New("test-secret"), time.Minute)
	sender := &captureSender{}
	ident := &fakeIdentity{}

	api := NewAuthCodeAPI(service, ident, sender, URLConfig{
		ConfirmationURLBase: "https://app.example.com/auth/confirm",
		ResetURLBase:        "https://app.example.com/auth/reset",
	})

	e := echo.New()
	api.RegisterRoutes(e)

	return &testEnv{router: e, sender: sender, identity: ident}
}

func (env *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestConfirmationFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/request-confirmation", map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	code := env.sender.lastCode(t)

	rec = env.post(t, "/api/v1/validate-code", map[string]string{
		"code": code,
		"type": "email_confirmation",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "user-1", resp.UserID)

	// Replay: the code was consumed by the successful validation.
	rec = env.post(t, "/api/v1/validate-code", map[string]string{
		"code": code,
		"type": "email_confirmation",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedemptionFailuresShareOnePayload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/request-confirmation", map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	code := env.sender.lastCode(t)

	// Wrong purpose.
	mismatch := env.post(t, "/api/v1/validate-code", map[string]string{
		"code": code,
		"type": "password_reset",
	})
	// Unknown code.
	unknown := env.post(t, "/api/v1/validate-code", map[string]string{
		"code": "definitely-not-a-code",
		"type": "email_confirmation",
	})
	// Consume, then replay.
	require.Equal(t, http.StatusOK, env.post(t, "/api/v1/validate-code", map[string]string{
		"code": code,
		"type": "email_confirmation",
	}).Code)
	replay := env.post(t, "/api/v1/validate-code", map[string]string{
		"code": code,
		"type": "email_confirmation",
	})

	// Whatever went wrong, the response is indistinguishable.
	assert.Equal(t, http.StatusBadRequest, mismatch.Code)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, http.StatusBadRequest, replay.Code)
	assert.JSONEq(t, unknown.Body.String(), mismatch.Body.String())
	assert.JSONEq(t, unknown.Body.String(), replay.Body.String())
}

func TestPurposeMismatchLeavesCodeRedeemable(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusAccepted,
		env.post(t, "/api/v1/request-confirmation", map[string]string{"user_id": "user-2"}).Code)
	code := env.sender.lastCode(t)

	rec := env.post(t, "/api/v1/validate-code", map[string]string{
		"code": code,
		"type": "password_reset",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Still redeemable for its real purpose.
	rec = env.post(t, "/api/v1/confirm-email", map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"user-2"}, env.identity.confirmed)
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusAccepted,
		env.post(t, "/api/v1/request-password-reset", map[string]string{"user_id": "user-9"}).Code)
	code := env.sender.lastCode(t)

	rec := env.post(t, "/api/v1/reset-password", map[string]string{
		"code":         code,
		"new_password": "brand-new-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "brand-new-password", env.identity.passwords["user-9"])

	// The code died with the successful reset.
	rec = env.post(t, "/api/v1/reset-password", map[string]string{
		"code":         code,
		"new_password": "another-password",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssuingSupersedesOutstandingCode(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusAccepted,
		env.post(t, "/api/v1/request-confirmation", map[string]string{"user_id": "user-3"}).Code)
	oldCode := env.sender.lastCode(t)

	require.Equal(t, http.StatusAccepted,
		env.post(t, "/api/v1/request-confirmation", map[string]string{"user_id": "user-3"}).Code)
	newCode := env.sender.lastCode(t)
	require.NotEqual(t, oldCode, newCode)

	rec := env.post(t, "/api/v1/validate-code", map[string]string{
		"code": oldCode,
		"type": "email_confirmation",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "superseded code must be rejected")

	rec = env.post(t, "/api/v1/validate-code", map[string]string{
		"code": newCode,
		"type": "email_confirmation",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/v1/request-confirmation", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")

	rec = env.post(t, "/api/v1/validate-code", map[string]string{
		"code": "whatever",
		"type": "session_refresh",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")

	rec = env.post(t, "/api/v1/reset-password", map[string]string{
		"code":         "whatever",
		"new_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
