package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/repository/mongodb"
)

const maxBulkItems = 500

type BulkItemsRequest struct {
	Items []ItemRequest `json:"items" binding:"required,min=1"`
}

// BulkLineResult reports the outcome of one line of a bulk import.
type BulkLineResult struct {
	Index   int                 `json:"index"`
	Name    string              `json:"name"`
	Success bool                `json:"success"`
	ItemID  *primitive.ObjectID `json:"itemId,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type BulkReport struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkLineResult `json:"results"`
}

func (r *BulkReport) add(line BulkLineResult) {
	r.Results = append(r.Results, line)
	if line.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// validationMessage flattens binding errors into the same wording the
// single-item endpoints use.
func validationMessage(err error) string {
	fields := validationDetails(err)
	if len(fields) == 0 {
		return err.Error()
	}
	return strings.Join(fields, "; ")
}

/*
POST /admin/api/items/bulk
- Each line is validated and inserted on its own
- A failed line never blocks the others
*/
func BulkCreateItems(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/items/bulk"
		defer handlePanic(c, route)
		logger := logging.Named("catalog")

		var req BulkItemsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if len(req.Items) > maxBulkItems {
			respondWithError(c, http.StatusBadRequest, route, "too many items in one import")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		report := BulkReport{Total: len(req.Items), Results: make([]BulkLineResult, 0, len(req.Items))}
		coll := db.Collection(mongodb.CollectionItems)
		now := time.Now().UTC()

		for i, line := range req.Items {
			result := BulkLineResult{Index: i, Name: strings.TrimSpace(line.Name)}

			if err := binding.Validator.ValidateStruct(line); err != nil {
				result.Error = validationMessage(err)
				report.add(result)
				continue
			}

			item, err := buildItem(ctx, db, line, now)
			if err != nil {
				result.Error = err.Error()
				report.add(result)
				continue
			}

			if _, err := coll.InsertOne(ctx, item); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					result.Error = "sku already exists"
				} else {
					logger.Error("bulk item insert failed", zap.Error(err), zap.Int("index", i))
					result.Error = "db error"
				}
				report.add(result)
				continue
			}

			id := item.ID
			result.Success = true
			result.ItemID = &id
			report.add(result)
		}

		logger.Info("bulk import finished",
			zap.Int("total", report.Total),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
		)

		status := http.StatusOK
		if report.Succeeded > 0 && report.Failed == 0 {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"data": report})
	}
}
