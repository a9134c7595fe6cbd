package repositories

import (
	"context"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository stores push registrations.
type DeviceTokenRepository interface {
	// Upsert registers token for the user, moving it over if another user held it.
	Upsert(ctx context.Context, token *models.DeviceToken) error
	Delete(ctx context.Context, userID uint, token string) error
	ListTokens(ctx context.Context, userID uint) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

type PostgresDeviceTokenRepository struct {
	db *gorm.DB
}

func NewPostgresDeviceTokenRepository(db *gorm.DB) *PostgresDeviceTokenRepository {
	return &PostgresDeviceTokenRepository{db: db}
}

func (r *PostgresDeviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform"}),
	}).Create(token).Error
	return translate(err)
}

func (r *PostgresDeviceTokenRepository) Delete(ctx context.Context, userID uint, token string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, token).Delete(&models.DeviceToken{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDeviceTokenRepository) ListTokens(ctx context.Context, userID uint) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&models.DeviceToken{}).Where("user_id = ?", userID).Pluck("token", &tokens).Error
	return tokens, translate(err)
}

func (r *PostgresDeviceTokenRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&models.DeviceToken{}).Error)
}
