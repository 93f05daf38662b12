package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

const testSecret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func guardedRouter(guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", guard, func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": id.Hex(), "role": Role(c)})
	})
	return r
}

func call(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthGuard(t *testing.T) {
	userID := primitive.NewObjectID()
	valid := jwt.MapClaims{"sub": userID.Hex(), "role": models.RoleUser, "exp": time.Now().Add(time.Minute).Unix()}
	admin := jwt.MapClaims{"sub": userID.Hex(), "role": models.RoleAdmin, "exp": time.Now().Add(time.Minute).Unix()}
	expired := jwt.MapClaims{"sub": userID.Hex(), "role": models.RoleUser, "exp": time.Now().Add(-time.Minute).Unix()}
	badSubject := jwt.MapClaims{"sub": "not-an-id", "exp": time.Now().Add(time.Minute).Unix()}

	tests := []struct {
		name   string
		guard  gin.HandlerFunc
		header string
		status int
	}{
		{"missing header", UserAuth(testSecret), "", http.StatusUnauthorized},
		{"wrong scheme", UserAuth(testSecret), "Basic abc", http.StatusUnauthorized},
		{"garbage token", UserAuth(testSecret), "Bearer nope", http.StatusUnauthorized},
		{"wrong secret", UserAuth(testSecret), "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), valid), http.StatusUnauthorized},
		{"wrong algorithm", UserAuth(testSecret), "Bearer " + signed(t, jwt.SigningMethodHS512, []byte(testSecret), valid), http.StatusUnauthorized},
		{"expired", UserAuth(testSecret), "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), expired), http.StatusUnauthorized},
		{"bad subject", UserAuth(testSecret), "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), badSubject), http.StatusUnauthorized},
		{"user ok", UserAuth(testSecret), "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid), http.StatusOK},
		{"admin on user route", UserAuth(testSecret), "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), admin), http.StatusOK},
		{"user on admin route", AdminAuth(testSecret), "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid), http.StatusForbidden},
		{"admin ok", AdminAuth(testSecret), "bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), admin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(guardedRouter(tt.guard), tt.header)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.Contains(t, rec.Body.String(), userID.Hex())
			}
		})
	}
}

func TestRoleDefaultsToUser(t *testing.T) {
	userID := primitive.NewObjectID()
	token := signed(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": userID.Hex(),
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	rec := call(guardedRouter(UserAuth(testSecret)), "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
}
