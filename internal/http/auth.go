package http

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"go.ngs.io/postcodes-api/internal/config"
)

const tokenIssuer = "postcodes-api"

// ErrBadCredentials is returned for an unknown user or wrong password.
var ErrBadCredentials = errors.New("incorrect username or password")

// Authenticator checks credentials and issues and verifies HS256 tokens.
type Authenticator struct {
	secret       []byte
	ttl          time.Duration
	username     string
	passwordHash []byte
	now          func() time.Time
}

// NewAuthenticator hashes the configured password so it is not kept in memory.
func NewAuthenticator(cfg config.AuthConfig) (*Authenticator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Authenticator{
		secret:       []byte(cfg.JWTSecret),
		ttl:          cfg.TokenTTL,
		username:     cfg.Username,
		passwordHash: hash,
		now:          time.Now,
	}, nil
}

// Login returns a signed token for valid credentials.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrBadCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expires, nil
}

// Verify parses a token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Authentication required: Missing Authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Authentication required: Invalid Authorization header format")
			return
		}
		subject, err := a.Verify(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Authentication failed: Invalid or expired token")
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, wrapBindError(err))
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.Password)
	if errors.Is(err, ErrBadCredentials) {
		h.logger.Warn("login rejected", "username", req.Username, "request_id", requestID(c))
		abortWithError(c, http.StatusUnauthorized, "Unauthorized", "Incorrect username or password")
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expires.UTC(),
	})
}
