package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/orders"
)

const defaultRequestTimeout = 5 * time.Second

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		logging.Named("http").Error("panic recovered", zap.String("route", route), zap.Any("panic", r))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": apperr.CodeInternal})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	logging.Named("http").Warn("returning error",
		zap.String("route", route),
		zap.Int("status", status),
		zap.String("message", message),
	)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// requestContext bounds a handler's storage work by the configured timeout.
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := config.AppEnv.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// objectIDParam parses a hex path parameter, answering 400 on failure.
func objectIDParam(c *gin.Context, route, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(name)))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUser returns the authenticated caller or answers 401.
func currentUser(c *gin.Context, route string) (primitive.ObjectID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
		return primitive.NilObjectID, false
	}
	return userID, true
}

func currentActor(c *gin.Context, route string) (orders.Actor, bool) {
	userID, ok := currentUser(c, route)
	if !ok {
		return orders.Actor{}, false
	}
	return orders.Actor{UserID: userID, Role: middleware.Role(c)}, true
}

func isAdmin(c *gin.Context) bool {
	return middleware.Role(c) == models.RoleAdmin
}
