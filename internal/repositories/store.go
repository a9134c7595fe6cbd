package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenceMissing is returned when an insert references a row that no longer exists.
	ErrReferenceMissing = errors.New("referenced record missing")
)

// Store groups the repositories over one database handle. Repositories
// obtained from the Store passed to a Transaction callback share that
// transaction.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	Comments() CommentRepository
	Likes() LikeRepository
	Follows() FollowRepository
	Notifications() NotificationRepository
	DeviceTokens() DeviceTokenRepository

	// Transaction runs fn atomically. Any error returned by fn rolls back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// PostgresStore implements Store with gorm over PostgreSQL.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a new PostgresStore. db should be opened with
// TranslateError enabled so constraint violations map to the sentinels above.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Users() UserRepository { return NewPostgresUserRepository(s.db) }

func (s *PostgresStore) Posts() PostRepository { return NewPostgresPostRepository(s.db) }

func (s *PostgresStore) Comments() CommentRepository { return NewPostgresCommentRepository(s.db) }

func (s *PostgresStore) Likes() LikeRepository { return NewPostgresLikeRepository(s.db) }

func (s *PostgresStore) Follows() FollowRepository { return NewPostgresFollowRepository(s.db) }

func (s *PostgresStore) Notifications() NotificationRepository {
	return NewPostgresNotificationRepository(s.db)
}

func (s *PostgresStore) DeviceTokens() DeviceTokenRepository {
	return NewPostgresDeviceTokenRepository(s.db)
}

func (s *PostgresStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresStore{db: tx})
	})
}

// translate maps gorm errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrReferenceMissing
	default:
		return err
	}
}

// countRow is the scan target for grouped count queries.
type countRow struct {
	Key   uint
	Count int64
}

func countsToMap(rows []countRow) map[uint]int64 {
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out
}
