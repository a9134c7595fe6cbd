package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the internal identity bound to an external principal.
type User struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ExternalID string    `json:"-" gorm:"size:128;uniqueIndex;not null"`
	Handle     string    `json:"handle" gorm:"size:32;uniqueIndex;not null"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Bio        string    `json:"bio"`
	AvatarURL  string    `json:"avatar_url"`
	Location   string    `json:"location"`
	Website    string    `json:"website"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ToSummary projects the user to its public card.
func (u *User) ToSummary() UserSummary {
	return UserSummary{ID: u.ID, Handle: u.Handle, Name: u.Name, AvatarURL: u.AvatarURL}
}

// ExternalPrincipal is what the identity provider tells us about the caller.
type ExternalPrincipal struct {
	ExternalID string
	Email      string
	Name       string
	Picture    string
}

// ProfileUpdate carries the editable profile fields. The handle is not editable.
type ProfileUpdate struct {
	Name     string
	Bio      string
	Location string
	Website  string
}

type UpdateProfileRequest struct {
	Name     string `json:"name" validate:"max=50"`
	Bio      string `json:"bio" validate:"max=160"`
	Location string `json:"location" validate:"max=60"`
	Website  string `json:"website" validate:"omitempty,max=200"`
}

type UpdateAvatarRequest struct {
	ImageURL string `json:"image_url" validate:"required"`
}

// SessionRequest exchanges a provider ID token for a local session token.
type SessionRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// JwtCustomClaims are the claims of a local session token.
type JwtCustomClaims struct {
	UserID     uint   `json:"user_id"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
