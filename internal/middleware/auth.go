// Package middleware provides HTTP middleware for the diamond API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

// CallerHeader names the caller when no JWT secret is configured.
const CallerHeader = "X-Diamond-Caller"

// Claims are the JWT claims accepted by the API.
type Claims struct {
	NeoAddress string `json:"neo_address"`
	jwt.RegisteredClaims
}

type callerKey struct{}

// WithCaller returns ctx carrying the authenticated caller.
func WithCaller(ctx context.Context, caller util.Uint160) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored in ctx. Anonymous requests get the
// zero address.
func CallerFrom(ctx context.Context) (util.Uint160, bool) {
	caller, ok := ctx.Value(callerKey{}).(util.Uint160)
	return caller, ok
}

// AuthMiddleware resolves the caller of each request.
//
// With a secret, requests outside skipPaths must carry an HMAC-signed
// bearer token whose neo_address claim is the caller. Without one, the
// CallerHeader is trusted as is.
type AuthMiddleware struct {
	secret    []byte
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(secret string, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{
		secret:    []byte(secret),
		logger:    log,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := m.resolve(r)
		if err != nil {
			m.logger.WithError(err).WithFields(map[string]interface{}{
				"path":       r.URL.Path,
				"method":     r.Method,
				"request_id": RequestIDFrom(r.Context()),
			}).Warn("Authentication failed")
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m *AuthMiddleware) resolve(r *http.Request) (util.Uint160, error) {
	if len(m.secret) == 0 {
		h := r.Header.Get(CallerHeader)
		if h == "" {
			return util.Uint160{}, nil
		}
		return diamond.ParseAddress(h)
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return util.Uint160{}, errors.New("missing Authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return util.Uint160{}, errors.New("invalid Authorization header format")
	}

	claims, err := m.validateToken(parts[1])
	if err != nil {
		return util.Uint160{}, err
	}
	caller, err := diamond.ParseAddress(claims.NeoAddress)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("neo_address claim: %w", err)
	}
	return caller, nil
}

func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Token signs a token for caller. Used by operators and tests.
func Token(secret string, caller util.Uint160, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		NeoAddress:       diamond.FormatAddress(caller),
		RegisteredClaims: claims,
	})
	return token.SignedString([]byte(secret))
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
