package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"handyman-app/job-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 session token and returns its caller.
func ParseToken(secret, tokenString string) (models.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}
	role := models.ToRole(claims.Role)
	if claims.UserID == "" || !role.IsValid() {
		return models.Actor{}, fmt.Errorf("%w: token is missing user_id or role", models.ErrUnauthenticated)
	}
	return models.Actor{UserID: claims.UserID, Role: role}, nil
}

func tokenFromRequest(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil {
			return v
		}
	}
	return ""
}

// AuthMiddleware resolves the session token into userId and role on the context.
func AuthMiddleware(secret, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "session token required"})
			return
		}
		actor, err := ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "invalid session token"})
			return
		}
		c.Set(ctxUserID, actor.UserID)
		c.Set(ctxRole, string(actor.Role))
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not in allowedRoles.
func RequireRoles(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.Role(c.GetString(ctxRole))
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "role not found"})
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "access denied"})
	}
}

var errNoActor = errors.New("no authenticated caller on request")

func ActorFromContext(c *gin.Context) (models.Actor, error) {
	userID := c.GetString(ctxUserID)
	role := models.Role(c.GetString(ctxRole))
	if userID == "" || !role.IsValid() {
		return models.Actor{}, fmt.Errorf("%w: %v", models.ErrUnauthenticated, errNoActor)
	}
	return models.Actor{UserID: userID, Role: role}, nil
}
