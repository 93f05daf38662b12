package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/repository"
)

type AddressRequest struct {
	FullName   string `json:"fullName" binding:"required,max=120"`
	Phone      string `json:"phone" binding:"required,max=20"`
	Line1      string `json:"line1" binding:"required,max=200"`
	Line2      string `json:"line2" binding:"max=200"`
	Landmark   string `json:"landmark" binding:"max=120"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country"`
	Type       string `json:"type"`
	IsDefault  bool   `json:"isDefault"`
}

func (req AddressRequest) apply(address *models.Address) error {
	addressType := models.AddressType(strings.ToLower(strings.TrimSpace(req.Type)))
	if addressType == "" {
		addressType = models.AddressBoth
	}
	if !addressType.Valid() {
		return apperr.Validation("type must be one of shipping, billing, both")
	}
	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = "India"
	}

	address.FullName = strings.TrimSpace(req.FullName)
	address.Phone = strings.TrimSpace(req.Phone)
	address.Line1 = strings.TrimSpace(req.Line1)
	address.Line2 = strings.TrimSpace(req.Line2)
	address.Landmark = strings.TrimSpace(req.Landmark)
	address.City = strings.TrimSpace(req.City)
	address.State = strings.TrimSpace(req.State)
	address.PostalCode = strings.TrimSpace(req.PostalCode)
	address.Country = country
	address.Type = addressType
	address.IsDefault = req.IsDefault
	return nil
}

// addressError turns repository sentinels into client errors.
func addressError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("", "address not found")
	case errors.Is(err, repository.ErrDuplicateKey):
		return apperr.Conflict(apperr.CodeDuplicate, "another default address was set concurrently, retry")
	default:
		return apperr.Internal(err, "address storage failed")
	}
}

func ListAddresses(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /addresses"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := addresses.ListByUser(ctx, userID)
		if err != nil {
			respondAppError(c, route, addressError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func CreateAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /addresses"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req AddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		now := time.Now().UTC()
		address := models.Address{UserID: userID, CreatedAt: now, UpdatedAt: now}
		if err := req.apply(&address); err != nil {
			respondAppError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := addresses.Insert(ctx, &address); err != nil {
			respondAppError(c, route, addressError(err))
			return
		}

		logging.Named("address").Info("address created",
			zap.String("userId", userID.Hex()),
			zap.String("addressId", address.ID.Hex()),
			zap.Bool("default", address.IsDefault),
		)
		c.JSON(http.StatusCreated, gin.H{"message": "address created", "data": address})
	}
}

// ownAddress loads an address and hides other users' addresses as missing.
func ownAddress(ctx context.Context, addresses repository.AddressRepository, userID, addressID primitive.ObjectID) (models.Address, error) {
	address, err := addresses.FindByID(ctx, addressID)
	if err != nil {
		return models.Address{}, addressError(err)
	}
	if address.UserID != userID {
		return models.Address{}, apperr.NotFound("", "address not found")
	}
	return address, nil
}

func UpdateAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		addressID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req AddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		address, err := ownAddress(ctx, addresses, userID, addressID)
		if err != nil {
			respondAppError(c, route, err)
			return
		}
		if err := req.apply(&address); err != nil {
			respondAppError(c, route, err)
			return
		}
		address.UpdatedAt = time.Now().UTC()

		if err := addresses.Update(ctx, address); err != nil {
			respondAppError(c, route, addressError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "address updated", "data": address})
	}
}

// DeleteAddress never promotes another address to default.
func DeleteAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		addressID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := addresses.Delete(ctx, userID, addressID); err != nil {
			respondAppError(c, route, addressError(err))
			return
		}

		logging.Named("address").Info("address deleted", zap.String("addressId", addressID.Hex()))
		c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
	}
}

func SetDefaultAddress(addresses repository.AddressRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /addresses/:id/default"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}
		addressID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := addresses.SetDefault(ctx, userID, addressID); err != nil {
			respondAppError(c, route, addressError(err))
			return
		}

		list, err := addresses.ListByUser(ctx, userID)
		if err != nil {
			respondAppError(c, route, addressError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "default address updated", "data": list})
	}
}
