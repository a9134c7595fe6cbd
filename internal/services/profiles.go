package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/cache"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

const (
	defaultSuggestions = 3
	maxSuggestions     = 20
	defaultSearchLimit = 20
)

type ProfileService struct {
	store repositories.Store
	views viewCache
	log   *logrus.Logger
}

func NewProfileService(store repositories.Store, c cache.ViewCache, m *metrics.Metrics, log *logrus.Logger) *ProfileService {
	return &ProfileService{store: store, views: viewCache{cache: c, metrics: m, log: log}, log: log}
}

// GetProfile returns the public profile behind handle as seen by viewer.
// Counts and the viewer-relative flags are always computed live.
func (s *ProfileService) GetProfile(ctx context.Context, viewer uint, handle string) (*models.PublicProfileView, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	path := cache.ProfilePath(handle)

	var view models.PublicProfileView
	if !s.views.get(ctx, path, &view) {
		user, err := s.store.Users().GetUserByHandle(ctx, handle)
		if err != nil {
			return nil, classify(err, "User not found")
		}
		view = models.PublicProfileView{
			UserSummary: user.ToSummary(),
			Bio:         user.Bio,
			Location:    user.Location,
			Website:     user.Website,
			CreatedAt:   user.CreatedAt,
		}
		s.views.put(ctx, path, view)
	}

	var err error
	if view.Counts.Followers, err = s.store.Follows().GetFollowersCount(ctx, view.ID); err != nil {
		return nil, classify(err, "User not found")
	}
	if view.Counts.Following, err = s.store.Follows().GetFollowingCount(ctx, view.ID); err != nil {
		return nil, classify(err, "User not found")
	}
	if view.Counts.Posts, err = s.store.Posts().CountPostsByAuthor(ctx, view.ID); err != nil {
		return nil, classify(err, "User not found")
	}

	view.IsSelf = viewer == view.ID
	view.IsFollowing = false
	if viewer != 0 && !view.IsSelf {
		if view.IsFollowing, err = s.store.Follows().IsFollowing(ctx, viewer, view.ID); err != nil {
			return nil, classify(err, "User not found")
		}
	}
	return &view, nil
}

// UpdateProfile replaces the editable profile fields. The handle is fixed.
func (s *ProfileService) UpdateProfile(ctx context.Context, actor uint, update models.ProfileUpdate) (*models.User, error) {
	update = models.ProfileUpdate{
		Name:     strings.TrimSpace(update.Name),
		Bio:      strings.TrimSpace(update.Bio),
		Location: strings.TrimSpace(update.Location),
		Website:  strings.TrimSpace(update.Website),
	}
	if update.Website != "" && !isHTTPURL(update.Website) {
		return nil, apperr.New(apperr.InvalidInput, "Website must be an absolute http(s) URL")
	}

	if err := s.store.Users().UpdateProfile(ctx, actor, update); err != nil {
		return nil, classify(err, "User not found")
	}
	return s.reloadAndInvalidate(ctx, actor)
}

func (s *ProfileService) UpdateAvatar(ctx context.Context, actor uint, imageURL string) (*models.User, error) {
	imageURL = strings.TrimSpace(imageURL)
	if !isHTTPURL(imageURL) {
		return nil, apperr.New(apperr.InvalidInput, "Image URL must be an absolute http(s) URL")
	}
	if err := s.store.Users().UpdateAvatar(ctx, actor, imageURL); err != nil {
		return nil, classify(err, "User not found")
	}
	return s.reloadAndInvalidate(ctx, actor)
}

func (s *ProfileService) reloadAndInvalidate(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users().GetUserByID(ctx, id)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	s.views.invalidate(ctx, cache.ProfilePath(user.Handle))
	return user, nil
}

func (s *ProfileService) Me(ctx context.Context, actor uint) (*models.UserSummary, error) {
	user, err := s.store.Users().GetUserByID(ctx, actor)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	summary := user.ToSummary()
	return &summary, nil
}

// Suggested returns users the actor neither is nor follows, with their
// follower counts.
func (s *ProfileService) Suggested(ctx context.Context, actor uint, limit int) ([]models.SuggestedUserView, error) {
	if limit < 1 {
		limit = defaultSuggestions
	}
	limit = min(limit, maxSuggestions)

	users, err := s.store.Users().SuggestUsers(ctx, actor, limit)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := s.store.Follows().CountFollowersByUserIDs(ctx, ids)
	if err != nil {
		return nil, classify(err, "User not found")
	}

	out := make([]models.SuggestedUserView, 0, len(users))
	for i := range users {
		out = append(out, models.SuggestedUserView{
			UserSummary: users[i].ToSummary(),
			Followers:   counts[users[i].ID],
		})
	}
	return out, nil
}

func (s *ProfileService) Search(ctx context.Context, query string, limit int) ([]models.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.New(apperr.InvalidInput, "Search query 'q' is required")
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultSearchLimit
	}
	users, err := s.store.Users().SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, classify(err, "User not found")
	}
	return summaries(users), nil
}
