package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/cache"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

// EngagementService tracks likes and follow edges. Both are idempotent: a
// repeated like or follow succeeds without creating a second edge or a
// second notification.
type EngagementService struct {
	store    repositories.Store
	notifier *NotificationService
	views    viewCache
	log      *logrus.Logger
}

func NewEngagementService(store repositories.Store, notifier *NotificationService, c cache.ViewCache, m *metrics.Metrics, log *logrus.Logger) *EngagementService {
	return &EngagementService{
		store:    store,
		notifier: notifier,
		views:    viewCache{cache: c, metrics: m, log: log},
		log:      log,
	}
}

func (s *EngagementService) Like(ctx context.Context, actor, postID uint) error {
	var created bool
	var note *models.Notification
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		post, err := tx.Posts().LockPost(ctx, postID, false)
		if err != nil {
			return err
		}
		created, err = tx.Likes().CreateLike(ctx, &models.Like{PostID: post.ID, UserID: actor})
		if err != nil || !created {
			return err
		}
		note, err = s.notifier.Deliver(ctx, tx, post.AuthorID, actor, models.NotificationLike,
			models.NotificationRefs{PostID: &post.ID})
		return err
	})
	if err != nil {
		return classify(err, "Post not found")
	}

	if created {
		s.views.invalidate(ctx, cache.PostPath(postID))
		s.notifier.Publish(ctx, note)
	}
	return nil
}

// Unlike removes the like if present. The LIKE notification, if any, stays.
func (s *EngagementService) Unlike(ctx context.Context, actor, postID uint) error {
	if _, err := s.store.Posts().GetPostByID(ctx, postID); err != nil {
		return classify(err, "Post not found")
	}
	removed, err := s.store.Likes().DeleteLike(ctx, postID, actor)
	if err != nil {
		return classify(err, "Post not found")
	}
	if removed {
		s.views.invalidate(ctx, cache.PostPath(postID))
	}
	return nil
}

func (s *EngagementService) LikeStatus(ctx context.Context, viewer, postID uint) (*models.LikeStatusView, error) {
	if _, err := s.store.Posts().GetPostByID(ctx, postID); err != nil {
		return nil, classify(err, "Post not found")
	}
	count, err := s.store.Likes().GetLikesCountByPostID(ctx, postID)
	if err != nil {
		return nil, classify(err, "Post not found")
	}
	liked, err := s.store.Likes().HasUserLikedPost(ctx, postID, viewer)
	if err != nil {
		return nil, classify(err, "Post not found")
	}
	return &models.LikeStatusView{PostID: postID, Count: count, HasLiked: liked}, nil
}

func (s *EngagementService) Follow(ctx context.Context, actor, target uint) error {
	if actor == target {
		return apperr.New(apperr.InvalidInput, "You cannot follow yourself")
	}

	var created bool
	var note *models.Notification
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().GetUserByID(ctx, target); err != nil {
			return err
		}
		var err error
		created, err = tx.Follows().CreateFollow(ctx, &models.Follow{FollowerID: actor, FollowingID: target})
		if err != nil || !created {
			return err
		}
		note, err = s.notifier.Deliver(ctx, tx, target, actor, models.NotificationFollow, models.NotificationRefs{})
		return err
	})
	if err != nil {
		return classify(err, "User not found")
	}

	if created {
		s.invalidateProfiles(ctx, actor, target)
		s.notifier.Publish(ctx, note)
	}
	return nil
}

// Unfollow removes the edge if present. Unfollowing someone not followed is
// a no-op.
func (s *EngagementService) Unfollow(ctx context.Context, actor, target uint) error {
	if actor == target {
		return apperr.New(apperr.InvalidInput, "You cannot unfollow yourself")
	}
	removed, err := s.store.Follows().DeleteFollow(ctx, actor, target)
	if err != nil {
		return classify(err, "User not found")
	}
	if removed {
		s.invalidateProfiles(ctx, actor, target)
	}
	return nil
}

func (s *EngagementService) IsFollowing(ctx context.Context, actor, target uint) (bool, error) {
	following, err := s.store.Follows().IsFollowing(ctx, actor, target)
	return following, classify(err, "User not found")
}

func (s *EngagementService) Followers(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	if _, err := s.store.Users().GetUserByID(ctx, userID); err != nil {
		return nil, classify(err, "User not found")
	}
	users, err := s.store.Follows().GetFollowers(ctx, userID)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	return summaries(users), nil
}

func (s *EngagementService) Following(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	if _, err := s.store.Users().GetUserByID(ctx, userID); err != nil {
		return nil, classify(err, "User not found")
	}
	users, err := s.store.Follows().GetFollowing(ctx, userID)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	return summaries(users), nil
}

func (s *EngagementService) invalidateProfiles(ctx context.Context, ids ...uint) {
	users, err := s.store.Users().GetUsersByIDs(ctx, ids)
	if err != nil {
		s.log.WithError(err).Warn("resolving profiles for invalidation failed")
		return
	}
	paths := make([]string, 0, len(users))
	for _, u := range users {
		paths = append(paths, cache.ProfilePath(u.Handle))
	}
	s.views.invalidate(ctx, paths...)
}

func summaries(users []models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToSummary())
	}
	return out
}
