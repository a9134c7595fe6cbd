package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

const (
	maxHandleLength = 20
	fallbackHandle  = "user"
	maxBindAttempts = 5
)

// IdentityService binds external principals to internal users, creating the
// user on first sight.
type IdentityService struct {
	store repositories.Store
	log   *logrus.Logger
}

func NewIdentityService(store repositories.Store, log *logrus.Logger) *IdentityService {
	return &IdentityService{store: store, log: log}
}

// ResolvePrincipal returns the user bound to p, creating it when needed.
// Concurrent first requests for the same principal converge on one row.
func (s *IdentityService) ResolvePrincipal(ctx context.Context, p *models.ExternalPrincipal) (*models.User, error) {
	if p == nil || strings.TrimSpace(p.ExternalID) == "" {
		return nil, apperr.New(apperr.Unauthenticated, "Authentication required")
	}

	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		user, err := s.store.Users().GetUserByExternalID(ctx, p.ExternalID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, classify(err, "User not found")
		}

		user, err = s.create(ctx, p)
		if err == nil {
			s.log.WithFields(logrus.Fields{"user_id": user.ID, "handle": user.Handle}).Info("user created")
			return user, nil
		}
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, classify(err, "User not found")
		}
		// Another request claimed the external id or the handle first.
	}
	return nil, apperr.New(apperr.Transient, "Could not bind identity, please retry")
}

func (s *IdentityService) create(ctx context.Context, p *models.ExternalPrincipal) (*models.User, error) {
	var user *models.User
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		handle, err := claimHandle(ctx, tx.Users(), DeriveHandle(p))
		if err != nil {
			return err
		}
		u := &models.User{
			ExternalID: p.ExternalID,
			Handle:     handle,
			Name:       strings.TrimSpace(p.Name),
			Email:      p.Email,
			AvatarURL:  p.Picture,
		}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

// claimHandle returns base, or base with the smallest numeric suffix that is
// not taken.
func claimHandle(ctx context.Context, users repositories.UserRepository, base string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		taken, err := users.HandleExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix := strconv.Itoa(i)
		candidate = base[:min(len(base), maxHandleLength-len(suffix))] + suffix
	}
}

// DeriveHandle builds a handle from the email local part, else the display
// name, else "user". The result matches [a-z0-9_]{1,20}.
func DeriveHandle(p *models.ExternalPrincipal) string {
	if local, _, ok := strings.Cut(p.Email, "@"); ok {
		if h := normalizeHandle(local); h != "" {
			return h
		}
	}
	if h := normalizeHandle(p.Name); h != "" {
		return h
	}
	return fallbackHandle
}

func normalizeHandle(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '-':
			b.WriteRune('_')
		}
	}
	h := strings.Trim(b.String(), "_")
	if len(h) > maxHandleLength {
		h = strings.TrimRight(h[:maxHandleLength], "_")
	}
	return h
}
