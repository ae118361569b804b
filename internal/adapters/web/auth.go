package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type cashierKey struct{}

// Cashier is the authenticated till operator extracted from the JWT.
type Cashier struct {
	CashierID string `json:"cashier_id"`
	Name      string `json:"name"`
}

// cashierFromContext returns the cashier stored in ctx, or nil.
func cashierFromContext(ctx context.Context) *Cashier {
	v, _ := ctx.Value(cashierKey{}).(*Cashier)
	return v
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	CashierID string `json:"cashier_id"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token identifying a cashier.
func IssueToken(secret, issuer, cashierID, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if strings.TrimSpace(cashierID) == "" {
		return "", errors.New("cashier id is required")
	}
	now := time.Now()
	claims := &jwtClaims{
		CashierID: cashierID,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cashierID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseToken validates raw and returns the cashier it identifies.
func (h *Handler) parseToken(raw string) (*Cashier, error) {
	claims := &jwtClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.CashierID == "" {
		return nil, errors.New("token has no cashier id")
	}
	return &Cashier{CashierID: claims.CashierID, Name: claims.Name}, nil
}

// RequireAuth is chi middleware that validates a bearer token (or the auth_token
// cookie) and injects the Cashier into the request context. Returns 401 otherwise.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		cashier, err := h.parseToken(raw)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), cashierKey{}, cashier)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if v := r.Header.Get("Authorization"); v != "" {
		if token, ok := strings.CutPrefix(v, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie("auth_token"); err == nil {
		return c.Value
	}
	return ""
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, cashierFromContext(r.Context()))
}
