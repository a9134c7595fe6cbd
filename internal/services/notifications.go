package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/push"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

const pushTimeout = 10 * time.Second

// NotificationService derives notifications from engagement and content
// mutations and manages their read state.
type NotificationService struct {
	store   repositories.Store
	sender  push.Sender
	metrics *metrics.Metrics
	log     *logrus.Logger

	// dispatch runs post-commit push work.
	dispatch func(func())
}

func NewNotificationService(store repositories.Store, sender push.Sender, m *metrics.Metrics, log *logrus.Logger) *NotificationService {
	return &NotificationService{
		store:    store,
		sender:   sender,
		metrics:  m,
		log:      log,
		dispatch: func(f func()) { go f() },
	}
}

// Deliver writes a notification inside tx. Self-triggered actions produce
// nothing and return nil.
func (s *NotificationService) Deliver(ctx context.Context, tx repositories.Store, recipient, actor uint, kind models.NotificationKind, refs models.NotificationRefs) (*models.Notification, error) {
	if recipient == actor {
		return nil, nil
	}
	n := &models.Notification{
		RecipientID: recipient,
		ActorID:     actor,
		Kind:        kind,
		PostID:      refs.PostID,
		CommentID:   refs.CommentID,
	}
	if err := tx.Notifications().CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Publish announces a committed notification to the recipient's devices.
// It never fails the caller; push errors are logged.
func (s *NotificationService) Publish(ctx context.Context, n *models.Notification) {
	if n == nil {
		return
	}
	s.metrics.NotificationDelivered(string(n.Kind))
	note := *n
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		s.push(ctx, note)
	})
}

func (s *NotificationService) push(ctx context.Context, n models.Notification) {
	entry := s.log.WithFields(logrus.Fields{"notification_id": n.ID, "recipient_id": n.RecipientID})

	tokens, err := s.store.DeviceTokens().ListTokens(ctx, n.RecipientID)
	if err != nil {
		entry.WithError(err).Warn("listing device tokens failed")
		return
	}
	if len(tokens) == 0 {
		return
	}

	actor, err := s.store.Users().GetUserByID(ctx, n.ActorID)
	if err != nil {
		entry.WithError(err).Warn("loading notification actor failed")
		return
	}

	res, err := s.sender.Send(ctx, tokens, renderPush(n, actor))
	if err != nil {
		s.metrics.PushFailed()
		entry.WithError(err).Warn("push delivery failed")
		return
	}
	if len(res.Unregistered) > 0 {
		if err := s.store.DeviceTokens().DeleteTokens(ctx, res.Unregistered); err != nil {
			entry.WithError(err).Warn("deleting dead device tokens failed")
		} else {
			entry.WithField("count", len(res.Unregistered)).Info("deleted dead device tokens")
		}
	}
}

func renderPush(n models.Notification, actor *models.User) push.Message {
	msg := push.Message{
		Data: map[string]string{
			"kind":            string(n.Kind),
			"notification_id": strconv.FormatUint(uint64(n.ID), 10),
		},
	}
	if n.PostID != nil {
		msg.Data["post_id"] = strconv.FormatUint(uint64(*n.PostID), 10)
	}
	switch n.Kind {
	case models.NotificationLike:
		msg.Title = "New like"
		msg.Body = fmt.Sprintf("@%s liked your post", actor.Handle)
	case models.NotificationComment:
		msg.Title = "New comment"
		msg.Body = fmt.Sprintf("@%s commented on your post", actor.Handle)
	case models.NotificationFollow:
		msg.Title = "New follower"
		msg.Body = fmt.Sprintf("@%s started following you", actor.Handle)
	}
	return msg
}

// ListForUser returns one page of the recipient's notifications, newest
// first. References to deleted posts or comments render as tombstones.
func (s *NotificationService) ListForUser(ctx context.Context, recipient uint, page, limit int) ([]models.NotificationView, int64, error) {
	page, limit = PageBounds(page, limit)
	rows, total, err := s.store.Notifications().GetByRecipientID(ctx, recipient, page, limit)
	if err != nil {
		return nil, 0, classify(err, "Notifications not found")
	}

	var actorIDs, postIDs, commentIDs []uint
	for _, n := range rows {
		actorIDs = append(actorIDs, n.ActorID)
		if n.PostID != nil {
			postIDs = append(postIDs, *n.PostID)
		}
		if n.CommentID != nil {
			commentIDs = append(commentIDs, *n.CommentID)
		}
	}

	actors, err := s.store.Users().GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return nil, 0, classify(err, "Users not found")
	}
	posts, err := s.store.Posts().GetPostsByIDs(ctx, postIDs)
	if err != nil {
		return nil, 0, classify(err, "Posts not found")
	}
	comments, err := s.store.Comments().GetCommentsByIDs(ctx, commentIDs)
	if err != nil {
		return nil, 0, classify(err, "Comments not found")
	}

	views := make([]models.NotificationView, 0, len(rows))
	for _, n := range rows {
		v := models.NotificationView{
			ID:        n.ID,
			Kind:      n.Kind,
			Actor:     models.UserSummary{ID: n.ActorID},
			Read:      n.IsRead,
			CreatedAt: n.CreatedAt,
		}
		if a, ok := actors[n.ActorID]; ok {
			v.Actor = a.ToSummary()
		}
		if n.PostID != nil {
			v.Post = &models.PostPreview{ID: *n.PostID, Deleted: true}
			if p, ok := posts[*n.PostID]; ok {
				v.Post = &models.PostPreview{ID: p.ID, Body: p.Body, ImageURL: p.ImageURL}
			}
		}
		if n.CommentID != nil {
			v.Comment = &models.CommentPreview{ID: *n.CommentID, Deleted: true}
			if c, ok := comments[*n.CommentID]; ok {
				v.Comment = &models.CommentPreview{ID: c.ID, Body: c.Body}
			}
		}
		views = append(views, v)
	}
	return views, total, nil
}

// MarkRead moves the listed notifications to Read. Every id is checked before
// anything changes: an unknown id fails with NotFound, another user's id with
// Forbidden. Already-read notifications are left as they are.
func (s *NotificationService) MarkRead(ctx context.Context, recipient uint, ids []uint) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		found, err := tx.Notifications().GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return apperr.New(apperr.NotFound, fmt.Sprintf("Notification %d not found", id))
			}
		}
		for _, id := range ids {
			if found[id].RecipientID != recipient {
				return apperr.New(apperr.Forbidden, "You can only update your own notifications")
			}
		}
		_, err = tx.Notifications().MarkAsRead(ctx, recipient, ids)
		return err
	})
	return classify(err, "Notification not found")
}

// MarkAllRead marks every unread notification of the recipient as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient uint) (int64, error) {
	n, err := s.store.Notifications().MarkAllAsRead(ctx, recipient)
	return n, classify(err, "Notification not found")
}

func (s *NotificationService) Delete(ctx context.Context, recipient, id uint) error {
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		n, err := tx.Notifications().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if n.RecipientID != recipient {
			return apperr.New(apperr.Forbidden, "You can only delete your own notifications")
		}
		return tx.Notifications().Delete(ctx, id)
	})
	return classify(err, "Notification not found")
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipient uint) (int64, error) {
	n, err := s.store.Notifications().GetUnreadCount(ctx, recipient)
	return n, classify(err, "Notification not found")
}

// RegisterDevice stores a push token for the user. A token already held by
// another user moves to this one.
func (s *NotificationService) RegisterDevice(ctx context.Context, user uint, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.New(apperr.InvalidInput, "Device token is required")
	}
	err := s.store.DeviceTokens().Upsert(ctx, &models.DeviceToken{UserID: user, Token: token, Platform: platform})
	return classify(err, "User not found")
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, user uint, token string) error {
	return classify(s.store.DeviceTokens().Delete(ctx, user, token), "Device not registered")
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
