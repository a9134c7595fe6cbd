package models

import "time"

// UserSummary is the compact author/actor card embedded in other views.
type UserSummary struct {
	ID        uint   `json:"id"`
	Handle    string `json:"handle"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// ProfileCounts are live aggregates over the edge and post tables.
type ProfileCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Posts     int64 `json:"posts"`
}

type PublicProfileView struct {
	UserSummary
	Bio         string        `json:"bio"`
	Location    string        `json:"location"`
	Website     string        `json:"website"`
	CreatedAt   time.Time     `json:"created_at"`
	Counts      ProfileCounts `json:"counts"`
	IsFollowing bool          `json:"is_following"`
	IsSelf      bool          `json:"is_self"`
}

type SuggestedUserView struct {
	UserSummary
	Followers int64 `json:"followers"`
}

type PostCardView struct {
	ID           uint        `json:"id"`
	Author       UserSummary `json:"author"`
	Body         string      `json:"body"`
	ImageURL     string      `json:"image_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	LikeCount    int64       `json:"like_count"`
	CommentCount int64       `json:"comment_count"`
	HasLiked     bool        `json:"has_liked"`
}

type CommentView struct {
	ID        uint        `json:"id"`
	PostID    uint        `json:"post_id"`
	Author    UserSummary `json:"author"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

type PostDetailView struct {
	PostCardView
	Comments []CommentView `json:"comments"`
}

type LikeStatusView struct {
	PostID   uint  `json:"post_id"`
	Count    int64 `json:"likes_count"`
	HasLiked bool  `json:"has_liked"`
}

// PostPreview is what a notification shows of its post. Deleted posts render
// as a tombstone.
type PostPreview struct {
	ID       uint   `json:"id"`
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Deleted  bool   `json:"deleted"`
}

type CommentPreview struct {
	ID      uint   `json:"id"`
	Body    string `json:"body,omitempty"`
	Deleted bool   `json:"deleted"`
}

type NotificationView struct {
	ID        uint             `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Actor     UserSummary      `json:"actor"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
	Post      *PostPreview     `json:"post,omitempty"`
	Comment   *CommentPreview  `json:"comment,omitempty"`
}
