package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"launchpad-backend/internal/config"
)

func newOperatorLogin(t *testing.T) (*gin.Engine, string, *TokenIssuer) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "ops"})
	require.NoError(t, err)

	issuer := NewTokenIssuer("test-secret", time.Hour)
	h := NewAdminAuthHandler(config.AuthConfig{
		OperatorUsername:     "ops",
		OperatorPasswordHash: string(hash),
		TOTPSecret:           key.Secret(),
	}, issuer)

	r := gin.New()
	r.POST("/api/admin/login", h.LoginHandler)
	r.POST("/api/admin/totp/generate", h.GenerateTOTPSecretHandler)
	return r, key.Secret(), issuer
}

func TestOperatorLogin(t *testing.T) {
	r, secret, issuer := newOperatorLogin(t)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	w, body := perform(r, http.MethodPost, "/api/admin/login", AdminLoginRequest{
		Username: "ops", Password: "s3cret", TOTPCode: code,
	})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, operatorRole, claims.Role)
}

func TestOperatorLoginRejections(t *testing.T) {
	r, secret, _ := newOperatorLogin(t)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	w, body := perform(r, http.MethodPost, "/api/admin/login", AdminLoginRequest{
		Username: "ops", Password: "wrong", TOTPCode: code,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", body["message"])

	w, body = perform(r, http.MethodPost, "/api/admin/login", AdminLoginRequest{
		Username: "root", Password: "s3cret", TOTPCode: code,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", body["message"])

	w, body = perform(r, http.MethodPost, "/api/admin/login", AdminLoginRequest{
		Username: "ops", Password: "s3cret", TOTPCode: "000000x",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid TOTP code", body["message"])

	w, _ = perform(r, http.MethodPost, "/api/admin/login", map[string]string{"username": "ops"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = perform(r, http.MethodPost, "/api/admin/totp/generate", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "TOTP_CONFIGURED", body["code"])
}

func TestLoginWithoutCredentialsConfigured(t *testing.T) {
	h := NewAdminAuthHandler(config.AuthConfig{OperatorUsername: "ops"}, NewTokenIssuer("x", 0))
	r := gin.New()
	r.POST("/api/admin/login", h.LoginHandler)
	r.POST("/api/admin/totp/generate", h.GenerateTOTPSecretHandler)

	w, _ := perform(r, http.MethodPost, "/api/admin/login", AdminLoginRequest{
		Username: "ops", Password: "a", TOTPCode: "123456",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w, body := perform(r, http.MethodPost, "/api/admin/totp/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["secret"])
	assert.Contains(t, body["url"], "otpauth://totp/")
}

func TestTokenIssuerRejectsExpiredAndForeignTokens(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := issuer.Issue("ops")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Validate(stale)
	assert.Error(t, err)

	other := NewTokenIssuer("other-secret", time.Hour)
	foreign, _, err := other.Issue("ops")
	require.NoError(t, err)
	_, err = issuer.Validate(foreign)
	assert.Error(t, err)

	fresh, expiresAt, err := issuer.Issue("ops")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)
	_, err = issuer.Validate(fresh)
	assert.NoError(t, err)
}
