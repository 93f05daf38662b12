package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/config"
	"storefront/internal/logging"
)

// statusFor maps an error kind onto its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict, apperr.KindAvailability:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError renders any service error as {error, code, details}.
// Unclassified errors are treated as internal.
func respondAppError(c *gin.Context, route string, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal(err, "internal server error")
	}

	status := statusFor(appErr.Kind)
	logger := logging.Named("http").With(zap.String("route", route), zap.String("code", appErr.Code))

	message := appErr.Message
	if appErr.Kind == apperr.KindInternal {
		logger.Error("request failed", zap.Error(err))
		if config.AppEnv.IsProduction() {
			message = "internal server error"
		} else {
			message = err.Error()
		}
	} else {
		logger.Warn("request rejected", zap.Int("status", status), zap.String("message", appErr.Message))
	}

	body := gin.H{"error": message, "code": appErr.Code}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}

// validationDetails renders validator errors as "<field> is required" or
// "<field> is invalid". Other errors yield nil.
func validationDetails(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := lowerCamel(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("%s is required", field))
		default:
			details = append(details, fmt.Sprintf("%s is invalid", field))
		}
	}
	return details
}

func respondValidationError(c *gin.Context, err error) {
	if details := validationDetails(err); details != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"code":    apperr.CodeValidation,
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "invalid body",
		"code":    apperr.CodeValidation,
		"details": err.Error(),
	})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
