package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type ctxKey struct{}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified caller attached to the request context.
type Identity struct {
	UserID string
	Role   string
}

func normalizeRole(role string) string {
	switch role {
	case "customer", "user":
		return "customer"
	case "worker", "admin":
		return role
	}
	return ""
}

// ParseToken validates an HS256 session token.
func ParseToken(secret, tokenString string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}
	role := normalizeRole(claims.Role)
	if claims.UserID == "" || role == "" {
		return Identity{}, fmt.Errorf("token is missing user_id or role")
	}
	return Identity{UserID: claims.UserID, Role: role}, nil
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

// JWTAuth rejects requests without a valid session token.
func JWTAuth(secret, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cookieName)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "session token required")
				return
			}
			id, err := ParseToken(secret, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid session token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		})
	}
}

// RequireRole must run after JWTAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := r.Context().Value(ctxKey{}).(Identity)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "role not found")
				return
			}
			if id.Role != role {
				writeError(w, http.StatusForbidden, "forbidden", "insufficient privileges")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
