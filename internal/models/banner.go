package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Banner struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Subtitle  string             `bson:"subtitle,omitempty" json:"subtitle,omitempty"`
	ImageURL  string             `bson:"imageUrl" json:"imageUrl"`
	LinkURL   string             `bson:"linkUrl,omitempty" json:"linkUrl,omitempty"`
	Position  int                `bson:"position" json:"position"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	StartsAt  *time.Time         `bson:"startsAt,omitempty" json:"startsAt,omitempty"`
	EndsAt    *time.Time         `bson:"endsAt,omitempty" json:"endsAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// LiveAt reports whether the banner should be shown at t.
func (b Banner) LiveAt(t time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.StartsAt != nil && t.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && t.After(*b.EndsAt) {
		return false
	}
	return true
}
