package repositories

import (
	"context"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	// LockPost reads a post and row-locks it for the rest of the transaction:
	// FOR UPDATE when forUpdate is set, FOR SHARE otherwise.
	LockPost(ctx context.Context, id uint, forUpdate bool) (*models.Post, error)
	DeletePost(ctx context.Context, id uint) error
	ListPosts(ctx context.Context, offset, limit int) ([]models.Post, int64, error)
	ListPostsByAuthor(ctx context.Context, authorID uint) ([]models.Post, error)
	ListPostsLikedBy(ctx context.Context, userID uint) ([]models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []uint) (map[uint]models.Post, error)
	CountPostsByAuthor(ctx context.Context, authorID uint) (int64, error)
}

// PostgresPostRepository implements PostRepository for PostgreSQL
type PostgresPostRepository struct {
	db *gorm.DB
}

// NewPostgresPostRepository creates a new PostgresPostRepository
func NewPostgresPostRepository(db *gorm.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

func (r *PostgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return translate(r.db.WithContext(ctx).Create(post).Error)
}

func (r *PostgresPostRepository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *PostgresPostRepository) LockPost(ctx context.Context, id uint, forUpdate bool) (*models.Post, error) {
	strength := clause.LockingStrengthShare
	if forUpdate {
		strength = clause.LockingStrengthUpdate
	}
	var post models.Post
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: strength}).First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *PostgresPostRepository) DeletePost(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPosts returns one page of posts, newest first, and the total count.
func (r *PostgresPostRepository) ListPosts(ctx context.Context, offset, limit int) ([]models.Post, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return posts, total, nil
}

func (r *PostgresPostRepository) ListPostsByAuthor(ctx context.Context, authorID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	return posts, translate(err)
}

func (r *PostgresPostRepository) ListPostsLikedBy(ctx context.Context, userID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Table("likes").Select("post_id").Where("user_id = ?", userID)).
		Order("created_at DESC, id DESC").
		Find(&posts).Error
	return posts, translate(err)
}

func (r *PostgresPostRepository) GetPostsByIDs(ctx context.Context, ids []uint) (map[uint]models.Post, error) {
	out := make(map[uint]models.Post, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var posts []models.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, translate(err)
	}
	for _, p := range posts {
		out[p.ID] = p
	}
	return out, nil
}

func (r *PostgresPostRepository) CountPostsByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, translate(err)
}
