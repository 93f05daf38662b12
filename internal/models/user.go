package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents the application account for both customers and admins.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Email        string               `bson:"email" json:"email"`
	PasswordHash string               `bson:"passwordHash" json:"-"`
	Name         string               `bson:"name" json:"name"`
	Phone        string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Role         string               `bson:"role" json:"role"`
	IsActive     bool                 `bson:"isActive" json:"isActive"`
	Wishlist     []primitive.ObjectID `bson:"wishlist" json:"wishlist"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the public slice of a user embedded in other responses.
type UserSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Phone string             `json:"phone,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
