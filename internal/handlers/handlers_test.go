package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/socialgraph/internal/cache"
	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/middleware"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/push"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories/repotest"
	"github.com/anonto42/nano-midea/socialgraph/internal/services"
	"github.com/anonto42/nano-midea/socialgraph/validators"
)

const testUserHeader = "X-Test-User"

type fakeUploader struct {
	kind media.Kind
	data []byte
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, _ uint, kind media.Kind, file io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.kind = kind
	u.data, _ = io.ReadAll(file)
	return "https://res.cloudinary.com/demo/image/upload/x.jpg", nil
}

type testEnv struct {
	e        *echo.Echo
	store    *repotest.Store
	uploader *fakeUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repotest.NewStore()
	notifications := services.NewNotificationService(store, push.Nop{}, nil, log)
	content := services.NewContentService(store, notifications, cache.Nop{}, nil, log)
	engagement := services.NewEngagementService(store, notifications, cache.Nop{}, nil, log)
	profiles := services.NewProfileService(store, cache.Nop{}, nil, log)
	uploader := &fakeUploader{}

	e := echo.New()
	e.Validator = validators.NewValidator()

	// Stands in for Authenticate+BindIdentity: the header names the user id.
	asUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := c.Request().Header.Get(testUserHeader); raw != "" {
				id, _ := strconv.ParseUint(raw, 10, 32)
				if u, err := store.Users().GetUserByID(c.Request().Context(), uint(id)); err == nil {
					middleware.SetCurrentUser(c, u)
				}
			}
			return next(c)
		}
	}
	api := e.Group("/api/v1", asUser)
	NewUserHandler(profiles).RegisterProfileRoutes(api)
	NewPostHandler(content).RegisterPostRoutes(api)
	NewFeedHandler(content).RegisterFeedRoutes(api)
	NewCommentHandler(content).RegisterCommentRoutes(api)
	NewLikeHandler(engagement).RegisterLikeRoutes(api)
	NewFollowHandler(engagement).RegisterFollowRoutes(api)
	NewNotificationHandler(notifications).RegisterNotificationRoutes(api)
	NewDeviceHandler(notifications).RegisterDeviceRoutes(api)
	NewUploadHandler(uploader, log).RegisterUploadRoutes(api)

	return &testEnv{e: e, store: store, uploader: uploader}
}

func (env *testEnv) user(t *testing.T, handle string) *models.User {
	t.Helper()
	u := &models.User{ExternalID: "ext-" + handle, Handle: handle, Name: handle}
	require.NoError(t, env.store.Users().CreateUser(context.Background(), u))
	return u
}

func (env *testEnv) do(t *testing.T, method, path string, as *models.User, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if as != nil {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(as.ID), 10))
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(r.Data, data))
	}
	return r
}

func (env *testEnv) createPost(t *testing.T, as *models.User, body string) uint {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/posts", as, fmt.Sprintf(`{"body":%q}`, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post models.Post
	decode(t, rec, &post)
	return post.ID
}

// ===== Posts =====

func TestCreateAndGetPost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	id := env.createPost(t, alice, "hello world")

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", id), alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.PostDetailView
	r := decode(t, rec, &detail)
	assert.True(t, r.Success)
	assert.Equal(t, "hello world", detail.Body)
	assert.Equal(t, "alice", detail.Author.Handle)
	assert.Zero(t, detail.LikeCount)
	assert.Empty(t, detail.Comments)
}

func TestCreatePostRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/posts", alice, `{"body":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec, nil).Message, "body is required")

	long := strings.Repeat("x", 281)
	rec = env.do(t, http.MethodPost, "/api/v1/posts", alice, fmt.Sprintf(`{"body":%q}`, long))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/posts", alice, `{"body":"hi","image_url":"ftp://x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/posts", alice, `{"body":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/posts", nil, `{"body":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBodyLengthCountsTrimmedText(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	padded := "  " + strings.Repeat("x", 280) + "\n"
	rec := env.do(t, http.MethodPost, "/api/v1/posts", alice, fmt.Sprintf(`{"body":%q}`, padded))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post models.Post
	decode(t, rec, &post)
	assert.Len(t, post.Body, 280)

	long := strings.Repeat("x", 281)
	rec = env.do(t, http.MethodPost, "/api/v1/posts", alice, fmt.Sprintf(`{"body":%q}`, long))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec, nil).Message, "cannot exceed 280 characters")

	path := fmt.Sprintf("/api/v1/posts/%d/comments", post.ID)
	padded = " " + strings.Repeat("y", 500) + " "
	rec = env.do(t, http.MethodPost, path, alice, fmt.Sprintf(`{"body":%q}`, padded))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, path, alice, fmt.Sprintf(`{"body":%q}`, strings.Repeat("y", 501)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path, alice, `{"body":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePostAuthorOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	id := env.createPost(t, alice, "mine")
	path := fmt.Sprintf("/api/v1/posts/%d", id)

	rec := env.do(t, http.MethodDelete, path, bob, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, path, alice, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, alice, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Post not found", decode(t, rec, nil).Message)
}

func TestInvalidIDParam(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	for _, path := range []string{"/api/v1/posts/abc", "/api/v1/posts/0", "/api/v1/users/-1/posts"} {
		rec := env.do(t, http.MethodGet, path, alice, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestFeedPagination(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	for i := range 3 {
		env.createPost(t, alice, fmt.Sprintf("post %d", i))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/posts?page=2&limit=2", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Posts []models.PostCardView `json:"posts"`
	}
	r := decode(t, rec, &data)
	require.Len(t, data.Posts, 1)
	assert.Equal(t, "post 0", data.Posts[0].Body)
	assert.EqualValues(t, 3, r.Meta["totalItems"])
	assert.EqualValues(t, 2, r.Meta["totalPages"])
	assert.Equal(t, false, r.Meta["hasNextPage"])
	assert.Equal(t, true, r.Meta["hasPreviousPage"])
}

// ===== Comments and likes =====

func TestCommentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	postID := env.createPost(t, alice, "post")
	path := fmt.Sprintf("/api/v1/posts/%d/comments", postID)

	rec := env.do(t, http.MethodPost, path, bob, `{"body":"nice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var comment models.Comment
	decode(t, rec, &comment)

	rec = env.do(t, http.MethodGet, path, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Comments []models.CommentView `json:"comments"`
	}
	decode(t, rec, &data)
	require.Len(t, data.Comments, 1)
	assert.Equal(t, "bob", data.Comments[0].Author.Handle)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", comment.ID), alice, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", comment.ID), bob, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/posts/999/comments", bob, `{"body":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLikeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	path := fmt.Sprintf("/api/v1/posts/%d/likes", env.createPost(t, alice, "post"))

	var status models.LikeStatusView
	for range 2 {
		rec := env.do(t, http.MethodPost, path, bob, "")
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &status)
	}
	assert.EqualValues(t, 1, status.Count)
	assert.True(t, status.HasLiked)

	rec := env.do(t, http.MethodGet, path, alice, "")
	decode(t, rec, &status)
	assert.EqualValues(t, 1, status.Count)
	assert.False(t, status.HasLiked)

	rec = env.do(t, http.MethodDelete, path, bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.Zero(t, status.Count)

	rec = env.do(t, http.MethodPost, "/api/v1/posts/999/likes", bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ===== Follows and profiles =====

func TestFollowEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	followPath := fmt.Sprintf("/api/v1/users/%d/follow", alice.ID)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/follow", bob.ID), bob, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, followPath, bob, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state struct {
		IsFollowing bool `json:"is_following"`
	}
	decode(t, env.do(t, http.MethodGet, followPath, bob, ""), &state)
	assert.True(t, state.IsFollowing)

	var list struct {
		Users []models.UserSummary `json:"users"`
	}
	decode(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/followers", alice.ID), bob, ""), &list)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "bob", list.Users[0].Handle)

	var profile models.PublicProfileView
	decode(t, env.do(t, http.MethodGet, "/api/v1/profiles/alice", bob, ""), &profile)
	assert.EqualValues(t, 1, profile.Counts.Followers)
	assert.True(t, profile.IsFollowing)

	rec = env.do(t, http.MethodPost, "/api/v1/users/999/follow", bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, followPath, bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, env.do(t, http.MethodGet, followPath, bob, ""), &state)
	assert.False(t, state.IsFollowing)
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	var me models.UserSummary
	decode(t, env.do(t, http.MethodGet, "/api/v1/me", alice, ""), &me)
	assert.Equal(t, "alice", me.Handle)

	rec := env.do(t, http.MethodPut, "/api/v1/profile", alice, `{"name":"Alice","website":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/profile", alice, `{"name":"Alice","bio":"hi","website":"https://alice.dev"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.User
	decode(t, rec, &updated)
	assert.Equal(t, "https://alice.dev", updated.Website)

	rec = env.do(t, http.MethodGet, "/api/v1/profiles/nobody", alice, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users/search", alice, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Search query 'q' is required", decode(t, rec, nil).Message)
}

// ===== Notifications =====

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	postID := env.createPost(t, alice, "post")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/likes", postID), bob, "").Code)

	rec := env.do(t, http.MethodGet, "/api/v1/notifications", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Notifications []models.NotificationView `json:"notifications"`
	}
	r := decode(t, rec, &data)
	require.Len(t, data.Notifications, 1)
	n := data.Notifications[0]
	assert.Equal(t, models.NotificationLike, n.Kind)
	assert.Equal(t, "bob", n.Actor.Handle)
	assert.EqualValues(t, 1, r.Meta["totalItems"])

	var count struct {
		Count int64 `json:"count"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", alice, ""), &count)
	assert.EqualValues(t, 1, count.Count)

	body := fmt.Sprintf(`{"ids":[%d]}`, n.ID)
	rec = env.do(t, http.MethodPut, "/api/v1/notifications/read", bob, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPut, "/api/v1/notifications/read", alice, body)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	decode(t, env.do(t, http.MethodGet, "/api/v1/notifications/unread-count", alice, ""), &count)
	assert.Zero(t, count.Count)

	var all struct {
		Updated int64 `json:"updated"`
	}
	decode(t, env.do(t, http.MethodPut, "/api/v1/notifications/read-all", alice, ""), &all)
	assert.Zero(t, all.Updated)

	path := fmt.Sprintf("/api/v1/notifications/%d", n.ID)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, path, bob, "").Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, alice, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, alice, "").Code)
}

func TestDeviceEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/devices", alice, `{"token":"tok-1","platform":"android"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	tokens, err := env.store.DeviceTokens().ListTokens(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, tokens)

	rec = env.do(t, http.MethodPost, "/api/v1/devices", alice, `{"token":"tok-2","platform":"palm"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/devices/tok-1", alice, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/v1/devices/tok-1", alice, "").Code)
}

// ===== Uploads =====

func multipartBody(t *testing.T, kind string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("kind", kind))
	if content != nil {
		part, err := w.CreateFormFile("file", "photo.jpg")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (env *testEnv) upload(t *testing.T, as *models.User, kind string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, kind, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	req.Header.Set(testUserHeader, strconv.FormatUint(uint64(as.ID), 10))
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	rec := env.upload(t, alice, "avatar", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		URL string `json:"url"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/x.jpg", out.URL)
	assert.Equal(t, media.KindAvatar, env.uploader.kind)
	assert.Equal(t, []byte("jpeg-bytes"), env.uploader.data)

	assert.Equal(t, http.StatusBadRequest, env.upload(t, alice, "video", []byte("x")).Code)
	assert.Equal(t, http.StatusBadRequest, env.upload(t, alice, "post", nil).Code)

	env.uploader.err = media.ErrDisabled
	assert.Equal(t, http.StatusServiceUnavailable, env.upload(t, alice, "post", []byte("x")).Code)

	env.uploader.err = errors.New("cloudinary: 500")
	assert.Equal(t, http.StatusBadGateway, env.upload(t, alice, "post", []byte("x")).Code)
}

// ===== Error mapping =====

func TestStoreFailureHidesCause(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	env.store.Err = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	rec := env.do(t, http.MethodGet, "/api/v1/posts", alice, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Equal(t, "Service temporarily unavailable", decode(t, rec, nil).Message)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	e := echo.New()
	e.GET("/health", NewHealthHandler(fakePinger{}).HealthCheck)
	e.GET("/health/down", NewHealthHandler(fakePinger{err: errors.New("down")}).HealthCheck)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
