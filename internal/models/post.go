package models

import "time"

// Post is owned by its author; deleting it removes its comments and likes.
type Post struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AuthorID  uint      `json:"author_id" gorm:"index;not null"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Body     string `json:"body" validate:"required"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,http_url"`
}
