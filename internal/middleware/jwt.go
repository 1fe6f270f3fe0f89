package middleware

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"freight_link/internal/identity"
)

var secret = []byte(getJWTSecret())

func getJWTSecret() string {
	if val := os.Getenv("JWT_SECRET"); val != "" {
		return val
	}
	return "supersecret" // fallback
}

// GenerateToken mints a token for the given identity. Token issuance
// normally belongs to the external auth service (which shares JWT_SECRET);
// this exists for tooling and local development.
func GenerateToken(userID uint, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses a bearer token into a resolved Actor.
func ValidateToken(tokenStr string) (identity.Actor, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return identity.Actor{}, errors.New("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return identity.Actor{}, errors.New("unexpected token claims")
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return identity.Actor{}, errors.New("token missing user_id")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return identity.Actor{}, errors.New("token missing role")
	}
	return identity.Actor{UserID: uint(userID), Role: role}, nil
}

const actorKey = "actor"

// RequireAuth ensures a valid JWT is present and stores the resolved Actor
// in the request context.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		actor, err := ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom retrieves the authenticated Actor placed by RequireAuth.
func ActorFrom(c *gin.Context) identity.Actor {
	return c.MustGet(actorKey).(identity.Actor)
}
