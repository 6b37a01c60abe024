package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"launchpad-backend/internal/config"
)

const (
	operatorRole   = "operator"
	operatorIssuer = "launchpad-backend"
)

// OperatorClaims operator JWT claims
type OperatorClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates operator tokens with an HMAC secret
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for username and its expiry
func (i *TokenIssuer) Issue(username string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := OperatorClaims{
		Username: username,
		Role:     operatorRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    operatorIssuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses tokenString and checks signature, expiry and role
func (i *TokenIssuer) Validate(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(operatorIssuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != operatorRole {
		return nil, fmt.Errorf("role %q is not allowed", claims.Role)
	}
	return claims, nil
}

// AdminLoginRequest operator login body
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// AdminLoginResponse operator login result
type AdminLoginResponse struct {
	Success   bool       `json:"success"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message"`
}

// AdminAuthHandler operator login: bcrypt password + TOTP, answered with a JWT
type AdminAuthHandler struct {
	username     string
	passwordHash string
	totpSecret   string
	issuer       *TokenIssuer
}

func NewAdminAuthHandler(cfg config.AuthConfig, issuer *TokenIssuer) *AdminAuthHandler {
	return &AdminAuthHandler{
		username:     cfg.OperatorUsername,
		passwordHash: cfg.OperatorPasswordHash,
		totpSecret:   cfg.TOTPSecret,
		issuer:       issuer,
	}
}

// LoginHandler operator login
// POST /api/admin/login
func (h *AdminAuthHandler) LoginHandler(c *gin.Context) {
	if h.passwordHash == "" || h.totpSecret == "" {
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{
			Success: false,
			Message: "Server misconfiguration: operator password hash or TOTP secret not set",
		})
		return
	}

	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AdminLoginResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	// same message for unknown user and bad password
	if req.Username != h.username ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		logrus.WithFields(logrus.Fields{
			"username":  req.Username,
			"client_ip": c.ClientIP(),
		}).Warn("⚠️ [Auth] Operator login rejected: bad credentials")
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	if !totp.Validate(req.TOTPCode, h.totpSecret) {
		logrus.WithFields(logrus.Fields{
			"username":  req.Username,
			"client_ip": c.ClientIP(),
		}).Warn("⚠️ [Auth] Operator login rejected: bad TOTP code")
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	token, expiresAt, err := h.issuer.Issue(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	logrus.Infof("✅ [Auth] Operator %s logged in", req.Username)
	c.JSON(http.StatusOK, AdminLoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: &expiresAt,
		Message:   "Login successful",
	})
}

// GenerateTOTPSecretHandler creates a TOTP secret for first-time setup.
// Refused once a secret is configured.
// POST /api/admin/totp/generate
func (h *AdminAuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if h.totpSecret != "" {
		respondWithError(c, http.StatusForbidden, "TOTP_CONFIGURED", "TOTP secret already configured")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Launchpad Operator",
		AccountName: h.username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, "TOTP_GENERATION_FAILED", "Failed to generate TOTP secret")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret to OPERATOR_TOTP_SECRET and restart the server.",
	})
}
