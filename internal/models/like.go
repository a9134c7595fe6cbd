package models

import "time"

// Like is an engagement edge between a user and a post. At most one per pair.
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"index;uniqueIndex:idx_likes_post_user"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_likes_post_user"`
	CreatedAt time.Time `json:"created_at"`
}
