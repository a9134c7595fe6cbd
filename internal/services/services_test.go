package services

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/push"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories/repotest"
)

// ===== Test doubles =====

type memCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, path string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[path]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Put(_ context.Context, path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = raw
	return nil
}

func (c *memCache) Invalidate(_ context.Context, paths ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		delete(c.entries, p)
		c.invalidated = append(c.invalidated, p)
	}
	return nil
}

func (c *memCache) has(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]
	return ok
}

type sentPush struct {
	tokens []string
	msg    push.Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentPush
	dead map[string]bool
	err  error
}

func (s *fakeSender) Send(_ context.Context, tokens []string, msg push.Message) (push.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return push.Result{}, s.err
	}
	s.sent = append(s.sent, sentPush{tokens: tokens, msg: msg})
	var res push.Result
	for _, t := range tokens {
		if s.dead[t] {
			res.Failure++
			res.Unregistered = append(res.Unregistered, t)
		} else {
			res.Success++
		}
	}
	return res, nil
}

// ===== Fixture =====

type fixture struct {
	ctx    context.Context
	store  *repotest.Store
	cache  *memCache
	sender *fakeSender

	identity      *IdentityService
	content       *ContentService
	engagement    *EngagementService
	notifications *NotificationService
	profiles      *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repotest.NewStore()
	c := newMemCache()
	sender := &fakeSender{dead: map[string]bool{}}

	notifications := NewNotificationService(store, sender, nil, log)
	notifications.dispatch = func(f func()) { f() }

	return &fixture{
		ctx:           context.Background(),
		store:         store,
		cache:         c,
		sender:        sender,
		identity:      NewIdentityService(store, log),
		content:       NewContentService(store, notifications, c, nil, log),
		engagement:    NewEngagementService(store, notifications, c, nil, log),
		notifications: notifications,
		profiles:      NewProfileService(store, c, nil, log),
	}
}

func (f *fixture) user(t *testing.T, handle string) *models.User {
	t.Helper()
	u := &models.User{ExternalID: "ext-" + handle, Handle: handle, Name: handle}
	require.NoError(t, f.store.Users().CreateUser(f.ctx, u))
	return u
}

func (f *fixture) post(t *testing.T, author *models.User, body string) *models.Post {
	t.Helper()
	p, err := f.content.CreatePost(f.ctx, author.ID, body, "")
	require.NoError(t, err)
	return p
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}

// ===== Error classification =====

func TestStoreFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	f.store.Err = assert.AnError

	_, err := f.content.CreatePost(f.ctx, alice.ID, "hello", "")
	assertKind(t, err, apperr.Transient)
	assert.Equal(t, "Service temporarily unavailable", apperr.PublicMessage(err))

	err = f.engagement.Like(f.ctx, alice.ID, 1)
	assertKind(t, err, apperr.Transient)
}

func TestPageBounds(t *testing.T) {
	page, limit := PageBounds(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, limit)

	_, limit = PageBounds(2, 1000)
	assert.Equal(t, maxPageSize, limit)
}
