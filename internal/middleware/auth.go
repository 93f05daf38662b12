package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/models"
)

const (
	ContextUserID = "userId"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// AuthGuard validates an HS256 bearer token and stores the caller's id and
// role on the context. With allowedRoles set, other roles get 403.
func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	log := logging.Named("auth")

	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			log.Debug("token rejected", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		subject, _ := claims["sub"].(string)
		userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(subject))
		if err != nil {
			log.Debug("token subject invalid", zap.String("sub", subject))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		role, _ := claims["role"].(string)
		if role == "" {
			role = models.RoleUser
		}
		if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, role) {
			log.Info("role not allowed",
				zap.String("userId", userID.Hex()),
				zap.String("role", role),
				zap.String("path", c.FullPath()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// UserAuth admits any signed-in account, admins included.
func UserAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret)
}

func AdminAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, models.RoleAdmin)
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(ContextUserID)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok
}

func Role(c *gin.Context) string {
	return c.GetString(ContextRole)
}
