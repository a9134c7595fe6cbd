package models

import "time"

type NotificationKind string

const (
	NotificationLike    NotificationKind = "LIKE"
	NotificationComment NotificationKind = "COMMENT"
	NotificationFollow  NotificationKind = "FOLLOW"
)

// Notification is append-only; it outlives the post or comment it points at.
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	RecipientID uint             `json:"recipient_id" gorm:"index;not null"`
	ActorID     uint             `json:"actor_id" gorm:"not null"`
	Kind        NotificationKind `json:"kind" gorm:"size:16;not null"`
	PostID      *uint            `json:"post_id,omitempty"`
	CommentID   *uint            `json:"comment_id,omitempty"`
	IsRead      bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time        `json:"created_at" gorm:"index"`
}

// NotificationRefs points a notification at the content that triggered it.
type NotificationRefs struct {
	PostID    *uint
	CommentID *uint
}

type MarkReadRequest struct {
	IDs []uint `json:"ids" validate:"max=200"`
}
