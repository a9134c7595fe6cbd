package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/cache"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

func TestGetProfileLiveCounts(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	f.post(t, alice, "one")

	view, err := f.profiles.GetProfile(f.ctx, bob.ID, "Alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, view.ID)
	assert.EqualValues(t, 1, view.Counts.Posts)
	assert.Zero(t, view.Counts.Followers)
	assert.False(t, view.IsFollowing)
	assert.True(t, f.cache.has(cache.ProfilePath("alice")))

	require.NoError(t, f.engagement.Follow(f.ctx, bob.ID, alice.ID))
	require.NoError(t, f.engagement.Follow(f.ctx, alice.ID, carol.ID))

	view, err = f.profiles.GetProfile(f.ctx, bob.ID, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, view.Counts.Followers)
	assert.EqualValues(t, 1, view.Counts.Following)
	assert.True(t, view.IsFollowing)
	assert.False(t, view.IsSelf)

	self, err := f.profiles.GetProfile(f.ctx, alice.ID, "alice")
	require.NoError(t, err)
	assert.True(t, self.IsSelf)
	assert.False(t, self.IsFollowing)

	_, err = f.profiles.GetProfile(f.ctx, bob.ID, "nobody")
	assertKind(t, err, apperr.NotFound)
}

func TestUpdateProfileInvalidatesCachedView(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.profiles.GetProfile(f.ctx, alice.ID, "alice")
	require.NoError(t, err)

	updated, err := f.profiles.UpdateProfile(f.ctx, alice.ID, models.ProfileUpdate{
		Name: " Alice A. ", Bio: "hi", Location: "Dhaka", Website: "https://alice.dev",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", updated.Name)
	assert.Equal(t, "alice", updated.Handle)
	assert.False(t, f.cache.has(cache.ProfilePath("alice")))

	view, err := f.profiles.GetProfile(f.ctx, alice.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hi", view.Bio)
	assert.Equal(t, "https://alice.dev", view.Website)

	_, err = f.profiles.UpdateProfile(f.ctx, alice.ID, models.ProfileUpdate{Website: "alice dot dev"})
	assertKind(t, err, apperr.InvalidInput)
}

func TestUpdateAvatar(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.profiles.UpdateAvatar(f.ctx, alice.ID, "javascript:alert(1)")
	assertKind(t, err, apperr.InvalidInput)

	u, err := f.profiles.UpdateAvatar(f.ctx, alice.ID, "https://res.cloudinary.com/demo/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/a.jpg", u.AvatarURL)

	me, err := f.profiles.Me(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, u.AvatarURL, me.AvatarURL)
}

func TestSuggestedExcludesSelfAndFollowed(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")
	dave := f.user(t, "dave")
	require.NoError(t, f.engagement.Follow(f.ctx, alice.ID, bob.ID))
	require.NoError(t, f.engagement.Follow(f.ctx, dave.ID, carol.ID))

	got, err := f.profiles.Suggested(f.ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "carol", got[0].Handle)
	assert.EqualValues(t, 1, got[0].Followers)
	assert.Equal(t, "dave", got[1].Handle)
	assert.Zero(t, got[1].Followers)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")
	f.user(t, "malik")
	f.user(t, "bob")

	got, err := f.profiles.Search(f.ctx, "LI", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Handle)

	_, err = f.profiles.Search(f.ctx, " ", 0)
	assertKind(t, err, apperr.InvalidInput)
}

func TestProfileEditsShowOnCachedPostAndFeed(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	post := f.post(t, alice, "hello")
	_, err := f.content.CreateComment(f.ctx, alice.ID, post.ID, "first")
	require.NoError(t, err)

	_, err = f.content.GetPost(f.ctx, alice.ID, post.ID)
	require.NoError(t, err)
	_, _, err = f.content.Feed(f.ctx, alice.ID, 1, 0)
	require.NoError(t, err)
	require.True(t, f.cache.has(cache.PostPath(post.ID)))
	require.True(t, f.cache.has(cache.Root))

	_, err = f.profiles.UpdateProfile(f.ctx, alice.ID, models.ProfileUpdate{Name: "Renamed"})
	require.NoError(t, err)
	_, err = f.profiles.UpdateAvatar(f.ctx, alice.ID, "https://img.example.com/new.png")
	require.NoError(t, err)

	view, err := f.content.GetPost(f.ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", view.Author.Name)
	assert.Equal(t, "https://img.example.com/new.png", view.Author.AvatarURL)
	require.Len(t, view.Comments, 1)
	assert.Equal(t, "Renamed", view.Comments[0].Author.Name)
	assert.Equal(t, "https://img.example.com/new.png", view.Comments[0].Author.AvatarURL)

	cards, _, err := f.content.Feed(f.ctx, alice.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Renamed", cards[0].Author.Name)
}
