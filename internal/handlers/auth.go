package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/repository/mongodb"
)

// TokenConfig carries the signing secret and token lifetimes.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Phone    string `json:"phone" binding:"max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type AuthTokens struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	ExpiresIn    int64              `json:"expiresIn"`
	User         models.UserSummary `json:"user"`
}

var errTokenGeneration = errors.New("could not generate refresh token")

func Register(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)
		logger := logging.Named("auth")

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("password hash failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		user := models.User{
			ID:           primitive.NewObjectID(),
			Email:        email,
			PasswordHash: string(hash),
			Name:         name,
			Phone:        strings.TrimSpace(req.Phone),
			Role:         models.RoleUser,
			IsActive:     true,
			Wishlist:     []primitive.ObjectID{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if _, err := db.Collection(mongodb.CollectionUsers).InsertOne(ctx, user); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusConflict, route, "email already registered")
				return
			}
			logger.Error("register insert failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			logger.Error("register token generation failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		logger.Info("user registered", zap.String("userId", user.ID.Hex()))
		c.JSON(http.StatusCreated, issued)
	}
}

// Login authenticates any role. AdminLogin restricts the same flow to admins.
func Login(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return login(db, tokens, "POST /auth/login", "")
}

func AdminLogin(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return login(db, tokens, "POST /admin/login", models.RoleAdmin)
}

func login(db *mongo.Database, tokens TokenConfig, route, requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)
		logger := logging.Named("auth")

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		filter := bson.M{"email": email}
		if requiredRole != "" {
			filter["role"] = requiredRole
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		var user models.User
		if err := db.Collection(mongodb.CollectionUsers).FindOne(ctx, filter).Decode(&user); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
				return
			}
			logger.Error("login lookup failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			logger.Warn("login invalid credentials", zap.String("userId", user.ID.Hex()))
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}
		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, "user is inactive")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			logger.Error("login token generation failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		logger.Info("login succeeded", zap.String("userId", user.ID.Hex()), zap.String("role", user.Role))
		c.JSON(http.StatusOK, issued)
	}
}

// Refresh rotates a refresh token: the presented token is revoked and points
// at its replacement.
func Refresh(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)
		logger := logging.Named("auth")

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		refreshTokens := db.Collection(mongodb.CollectionRefreshTokens)
		var token models.RefreshToken
		if err := refreshTokens.FindOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}).Decode(&token); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		now := time.Now().UTC()
		if now.After(token.ExpiresAt) {
			_, _ = refreshTokens.UpdateByID(ctx, token.ID, bson.M{"$set": bson.M{"revoked": true, "revokedAt": now}})
			respondWithError(c, http.StatusUnauthorized, route, "refresh token expired")
			return
		}

		var user models.User
		if err := db.Collection(mongodb.CollectionUsers).FindOne(ctx, bson.M{"_id": token.UserID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "user not found")
			return
		}
		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, "user is inactive")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			logger.Error("refresh token generation failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		if _, err := refreshTokens.UpdateByID(ctx, token.ID, bson.M{
			"$set": bson.M{
				"revoked":         true,
				"revokedAt":       now,
				"replacedByToken": issued.refreshID,
			},
		}); err != nil {
			logger.Warn("revoking rotated refresh token failed", zap.Error(err), zap.String("tokenId", token.ID.Hex()))
		}

		c.JSON(http.StatusOK, issued.AuthTokens)
	}
}

func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := db.Collection(mongodb.CollectionRefreshTokens).UpdateOne(ctx, bson.M{
			"tokenHash": hashToken(strings.TrimSpace(req.RefreshToken)),
			"revoked":   false,
		}, bson.M{"$set": bson.M{"revoked": true, "revokedAt": time.Now().UTC()}})
		if err != nil {
			logging.Named("auth").Error("logout failed", zap.Error(err))
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func GetMe(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := users.FindByID(ctx, userID)
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

// signAccessToken issues the HS256 bearer token read back by middleware.AuthGuard.
func signAccessToken(user models.User, secret string, ttl time.Duration, now time.Time) (string, error) {
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}
	claims := jwt.MapClaims{
		"sub":   user.ID.Hex(),
		"role":  role,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type issuedTokens struct {
	AuthTokens
	refreshID primitive.ObjectID
}

func issueTokens(ctx context.Context, db *mongo.Database, user models.User, cfg TokenConfig) (*issuedTokens, error) {
	now := time.Now().UTC()
	accessToken, err := signAccessToken(user, cfg.Secret, cfg.AccessTTL, now)
	if err != nil {
		return nil, err
	}

	plainRefresh := generateRefreshString()
	if plainRefresh == "" {
		return nil, errTokenGeneration
	}

	refresh := models.RefreshToken{
		ID:        primitive.NewObjectID(),
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(cfg.RefreshTTL),
		CreatedAt: now,
	}
	if _, err := db.Collection(mongodb.CollectionRefreshTokens).InsertOne(ctx, refresh); err != nil {
		return nil, err
	}

	return &issuedTokens{
		AuthTokens: AuthTokens{
			AccessToken:  accessToken,
			RefreshToken: plainRefresh,
			ExpiresIn:    int64(cfg.AccessTTL.Seconds()),
			User:         user.Summary(),
		},
		refreshID: refresh.ID,
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
