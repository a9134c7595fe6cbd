// Package repotest provides an in-memory repositories.Store for tests.
// It enforces the same uniqueness, reference and cascade rules as the
// PostgreSQL schema and returns the same sentinel errors.
package repotest

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

type state struct {
	nextID        uint
	users         map[uint]models.User
	posts         map[uint]models.Post
	comments      map[uint]models.Comment
	likes         map[uint]models.Like
	follows       map[uint]models.Follow
	notifications map[uint]models.Notification
	devices       map[uint]models.DeviceToken
}

func (st *state) clone() *state {
	return &state{
		nextID:        st.nextID,
		users:         maps.Clone(st.users),
		posts:         maps.Clone(st.posts),
		comments:      maps.Clone(st.comments),
		likes:         maps.Clone(st.likes),
		follows:       maps.Clone(st.follows),
		notifications: maps.Clone(st.notifications),
		devices:       maps.Clone(st.devices),
	}
}

func (st *state) id() uint {
	st.nextID++
	return st.nextID
}

// Store is a mutex-guarded in-memory Store. Transactions snapshot the state
// and swap it in on success.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool

	// Err, when set, is returned by every repository call.
	Err error
}

var _ repositories.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		st: &state{
			users:         map[uint]models.User{},
			posts:         map[uint]models.Post{},
			comments:      map[uint]models.Comment{},
			likes:         map[uint]models.Like{},
			follows:       map[uint]models.Follow{},
			notifications: map[uint]models.Notification{},
			devices:       map[uint]models.DeviceToken{},
		},
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	*s.st = *tx.st
	return nil
}

func (s *Store) Users() repositories.UserRepository                 { return userRepo{s} }
func (s *Store) Posts() repositories.PostRepository                 { return postRepo{s} }
func (s *Store) Comments() repositories.CommentRepository           { return commentRepo{s} }
func (s *Store) Likes() repositories.LikeRepository                 { return likeRepo{s} }
func (s *Store) Follows() repositories.FollowRepository             { return followRepo{s} }
func (s *Store) Notifications() repositories.NotificationRepository { return notificationRepo{s} }
func (s *Store) DeviceTokens() repositories.DeviceTokenRepository   { return deviceRepo{s} }

// ===== Inspection helpers =====

// LikeRows returns the number of like rows for postID.
func (s *Store) LikeRows(postID uint) int {
	defer s.lock()()
	n := 0
	for _, l := range s.st.likes {
		if l.PostID == postID {
			n++
		}
	}
	return n
}

// CommentRows returns the number of comment rows for postID.
func (s *Store) CommentRows(postID uint) int {
	defer s.lock()()
	n := 0
	for _, c := range s.st.comments {
		if c.PostID == postID {
			n++
		}
	}
	return n
}

// NotificationsFor returns every notification row addressed to recipientID.
func (s *Store) NotificationsFor(recipientID uint) []models.Notification {
	defer s.lock()()
	var out []models.Notification
	for _, n := range s.st.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sortNotifications(out)
	return out
}

// SetNotificationTime overrides created_at so ordering can be tested.
func (s *Store) SetNotificationTime(id uint, at time.Time) {
	defer s.lock()()
	n := s.st.notifications[id]
	n.CreatedAt = at
	s.st.notifications[id] = n
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func sortNotifications(ns []models.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].ID > ns[j].ID
	})
}

func sortPostsNewest(ps []models.Post) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID > ps[j].ID
	})
}

func sortUsersByHandle(us []models.User) {
	sort.Slice(us, func(i, j int) bool { return us[i].Handle < us[j].Handle })
}

// ===== Users =====

type userRepo struct{ s *Store }

func (r userRepo) CreateUser(_ context.Context, user *models.User) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	for _, u := range r.s.st.users {
		if u.ExternalID == user.ExternalID || u.Handle == user.Handle {
			return repositories.ErrDuplicate
		}
	}
	user.ID = r.s.st.id()
	stamp(&user.CreatedAt)
	user.UpdatedAt = user.CreatedAt
	r.s.st.users[user.ID] = *user
	return nil
}

func (r userRepo) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) find(match func(models.User) bool) (*models.User, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	for _, u := range r.s.st.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r userRepo) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ExternalID == externalID })
}

func (r userRepo) GetUserByHandle(_ context.Context, handle string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Handle == handle })
}

func (r userRepo) GetUsersByIDs(_ context.Context, ids []uint) (map[uint]models.User, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	out := make(map[uint]models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.st.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r userRepo) HandleExists(ctx context.Context, handle string) (bool, error) {
	_, err := r.GetUserByHandle(ctx, handle)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r userRepo) update(id uint, fn func(*models.User)) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.s.st.users[id] = u
	return nil
}

func (r userRepo) UpdateProfile(_ context.Context, id uint, update models.ProfileUpdate) error {
	return r.update(id, func(u *models.User) {
		u.Name = update.Name
		u.Bio = update.Bio
		u.Location = update.Location
		u.Website = update.Website
	})
}

func (r userRepo) UpdateAvatar(_ context.Context, id uint, avatarURL string) error {
	return r.update(id, func(u *models.User) { u.AvatarURL = avatarURL })
}

func (r userRepo) SuggestUsers(_ context.Context, userID uint, limit int) ([]models.User, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	followed := map[uint]bool{}
	for _, f := range r.s.st.follows {
		if f.FollowerID == userID {
			followed[f.FollowingID] = true
		}
	}
	var out []models.User
	for _, u := range r.s.st.users {
		if u.ID != userID && !followed[u.ID] {
			out = append(out, u)
		}
	}
	sortUsersByHandle(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r userRepo) SearchUsers(_ context.Context, query string, limit int) ([]models.User, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	q := strings.ToLower(query)
	var out []models.User
	for _, u := range r.s.st.users {
		if strings.Contains(strings.ToLower(u.Handle), q) || strings.Contains(strings.ToLower(u.Name), q) {
			out = append(out, u)
		}
	}
	sortUsersByHandle(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ===== Posts =====

type postRepo struct{ s *Store }

func (r postRepo) CreatePost(_ context.Context, post *models.Post) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	if _, ok := r.s.st.users[post.AuthorID]; !ok {
		return repositories.ErrReferenceMissing
	}
	post.ID = r.s.st.id()
	stamp(&post.CreatedAt)
	r.s.st.posts[post.ID] = *post
	return nil
}

func (r postRepo) GetPostByID(_ context.Context, id uint) (*models.Post, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	p, ok := r.s.st.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (r postRepo) LockPost(ctx context.Context, id uint, _ bool) (*models.Post, error) {
	return r.GetPostByID(ctx, id)
}

func (r postRepo) DeletePost(_ context.Context, id uint) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	if _, ok := r.s.st.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.st.posts, id)
	for cid, c := range r.s.st.comments {
		if c.PostID == id {
			delete(r.s.st.comments, cid)
		}
	}
	for lid, l := range r.s.st.likes {
		if l.PostID == id {
			delete(r.s.st.likes, lid)
		}
	}
	return nil
}

func (r postRepo) filter(match func(models.Post) bool) ([]models.Post, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	var out []models.Post
	for _, p := range r.s.st.posts {
		if match(p) {
			out = append(out, p)
		}
	}
	sortPostsNewest(out)
	return out, nil
}

func (r postRepo) ListPosts(_ context.Context, offset, limit int) ([]models.Post, int64, error) {
	all, err := r.filter(func(models.Post) bool { return true })
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r postRepo) ListPostsByAuthor(_ context.Context, authorID uint) ([]models.Post, error) {
	return r.filter(func(p models.Post) bool { return p.AuthorID == authorID })
}

func (r postRepo) ListPostsLikedBy(_ context.Context, userID uint) ([]models.Post, error) {
	liked := map[uint]bool{}
	func() {
		defer r.s.lock()()
		for _, l := range r.s.st.likes {
			if l.UserID == userID {
				liked[l.PostID] = true
			}
		}
	}()
	return r.filter(func(p models.Post) bool { return liked[p.ID] })
}

func (r postRepo) GetPostsByIDs(_ context.Context, ids []uint) (map[uint]models.Post, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	out := make(map[uint]models.Post, len(ids))
	for _, id := range ids {
		if p, ok := r.s.st.posts[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r postRepo) CountPostsByAuthor(ctx context.Context, authorID uint) (int64, error) {
	ps, err := r.ListPostsByAuthor(ctx, authorID)
	return int64(len(ps)), err
}

// ===== Comments =====

type commentRepo struct{ s *Store }

func (r commentRepo) CreateComment(_ context.Context, comment *models.Comment) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	if _, ok := r.s.st.posts[comment.PostID]; !ok {
		return repositories.ErrReferenceMissing
	}
	if _, ok := r.s.st.users[comment.AuthorID]; !ok {
		return repositories.ErrReferenceMissing
	}
	comment.ID = r.s.st.id()
	stamp(&comment.CreatedAt)
	r.s.st.comments[comment.ID] = *comment
	return nil
}

func (r commentRepo) GetCommentByID(_ context.Context, id uint) (*models.Comment, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	c, ok := r.s.st.comments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r commentRepo) GetCommentsByPostID(_ context.Context, postID uint) ([]models.Comment, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	var out []models.Comment
	for _, c := range r.s.st.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r commentRepo) GetCommentsByIDs(_ context.Context, ids []uint) (map[uint]models.Comment, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	out := make(map[uint]models.Comment, len(ids))
	for _, id := range ids {
		if c, ok := r.s.st.comments[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (r commentRepo) CountByPostIDs(_ context.Context, postIDs []uint) (map[uint]int64, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	want := map[uint]bool{}
	for _, id := range postIDs {
		want[id] = true
	}
	out := map[uint]int64{}
	for _, c := range r.s.st.comments {
		if want[c.PostID] {
			out[c.PostID]++
		}
	}
	return out, nil
}

func (r commentRepo) DeleteComment(_ context.Context, id uint) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	if _, ok := r.s.st.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.st.comments, id)
	return nil
}

func (r commentRepo) DeleteCommentsByPostID(_ context.Context, postID uint) (int64, error) {
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	defer r.s.lock()()
	var n int64
	for id, c := range r.s.st.comments {
		if c.PostID == postID {
			delete(r.s.st.comments, id)
			n++
		}
	}
	return n, nil
}

// ===== Likes =====

type likeRepo struct{ s *Store }

func (r likeRepo) CreateLike(_ context.Context, like *models.Like) (bool, error) {
	if r.s.Err != nil {
		return false, r.s.Err
	}
	defer r.s.lock()()
	if _, ok := r.s.st.posts[like.PostID]; !ok {
		return false, repositories.ErrReferenceMissing
	}
	if _, ok := r.s.st.users[like.UserID]; !ok {
		return false, repositories.ErrReferenceMissing
	}
	for _, l := range r.s.st.likes {
		if l.PostID == like.PostID && l.UserID == like.UserID {
			return false, nil
		}
	}
	like.ID = r.s.st.id()
	stamp(&like.CreatedAt)
	r.s.st.likes[like.ID] = *like
	return true, nil
}

func (r likeRepo) DeleteLike(_ context.Context, postID, userID uint) (bool, error) {
	if r.s.Err != nil {
		return false, r.s.Err
	}
	defer r.s.lock()()
	for id, l := range r.s.st.likes {
		if l.PostID == postID && l.UserID == userID {
			delete(r.s.st.likes, id)
			return true, nil
		}
	}
	return false, nil
}

func (r likeRepo) DeleteLikesByPostID(_ context.Context, postID uint) (int64, error) {
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	defer r.s.lock()()
	var n int64
	for id, l := range r.s.st.likes {
		if l.PostID == postID {
			delete(r.s.st.likes, id)
			n++
		}
	}
	return n, nil
}

func (r likeRepo) GetLikesCountByPostID(ctx context.Context, postID uint) (int64, error) {
	counts, err := r.CountByPostIDs(ctx, []uint{postID})
	return counts[postID], err
}

func (r likeRepo) CountByPostIDs(_ context.Context, postIDs []uint) (map[uint]int64, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	want := map[uint]bool{}
	for _, id := range postIDs {
		want[id] = true
	}
	out := map[uint]int64{}
	for _, l := range r.s.st.likes {
		if want[l.PostID] {
			out[l.PostID]++
		}
	}
	return out, nil
}

func (r likeRepo) HasUserLikedPost(ctx context.Context, postID, userID uint) (bool, error) {
	liked, err := r.LikedPostIDs(ctx, userID, []uint{postID})
	return liked[postID], err
}

func (r likeRepo) LikedPostIDs(_ context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	want := map[uint]bool{}
	for _, id := range postIDs {
		want[id] = true
	}
	out := map[uint]bool{}
	for _, l := range r.s.st.likes {
		if l.UserID == userID && want[l.PostID] {
			out[l.PostID] = true
		}
	}
	return out, nil
}

// ===== Follows =====

type followRepo struct{ s *Store }

func (r followRepo) CreateFollow(_ context.Context, follow *models.Follow) (bool, error) {
	if r.s.Err != nil {
		return false, r.s.Err
	}
	defer r.s.lock()()
	if follow.FollowerID == follow.FollowingID {
		return false, errors.New("repotest: follows check constraint violated")
	}
	if _, ok := r.s.st.users[follow.FollowerID]; !ok {
		return false, repositories.ErrReferenceMissing
	}
	if _, ok := r.s.st.users[follow.FollowingID]; !ok {
		return false, repositories.ErrReferenceMissing
	}
	for _, f := range r.s.st.follows {
		if f.FollowerID == follow.FollowerID && f.FollowingID == follow.FollowingID {
			return false, nil
		}
	}
	follow.ID = r.s.st.id()
	stamp(&follow.CreatedAt)
	r.s.st.follows[follow.ID] = *follow
	return true, nil
}

func (r followRepo) DeleteFollow(_ context.Context, followerID, followingID uint) (bool, error) {
	if r.s.Err != nil {
		return false, r.s.Err
	}
	defer r.s.lock()()
	for id, f := range r.s.st.follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			delete(r.s.st.follows, id)
			return true, nil
		}
	}
	return false, nil
}

func (r followRepo) IsFollowing(_ context.Context, followerID, followingID uint) (bool, error) {
	if r.s.Err != nil {
		return false, r.s.Err
	}
	defer r.s.lock()()
	for _, f := range r.s.st.follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			return true, nil
		}
	}
	return false, nil
}

func (r followRepo) edgeUsers(pick func(models.Follow) (uint, bool)) ([]models.User, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	var out []models.User
	for _, f := range r.s.st.follows {
		if id, ok := pick(f); ok {
			if u, found := r.s.st.users[id]; found {
				out = append(out, u)
			}
		}
	}
	sortUsersByHandle(out)
	return out, nil
}

func (r followRepo) GetFollowers(_ context.Context, userID uint) ([]models.User, error) {
	return r.edgeUsers(func(f models.Follow) (uint, bool) { return f.FollowerID, f.FollowingID == userID })
}

func (r followRepo) GetFollowing(_ context.Context, userID uint) ([]models.User, error) {
	return r.edgeUsers(func(f models.Follow) (uint, bool) { return f.FollowingID, f.FollowerID == userID })
}

func (r followRepo) GetFollowersCount(ctx context.Context, userID uint) (int64, error) {
	us, err := r.GetFollowers(ctx, userID)
	return int64(len(us)), err
}

func (r followRepo) GetFollowingCount(ctx context.Context, userID uint) (int64, error) {
	us, err := r.GetFollowing(ctx, userID)
	return int64(len(us)), err
}

func (r followRepo) CountFollowersByUserIDs(_ context.Context, userIDs []uint) (map[uint]int64, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	want := map[uint]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	out := map[uint]int64{}
	for _, f := range r.s.st.follows {
		if want[f.FollowingID] {
			out[f.FollowingID]++
		}
	}
	return out, nil
}

// ===== Notifications =====

type notificationRepo struct{ s *Store }

func (r notificationRepo) CreateNotification(_ context.Context, n *models.Notification) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	if n.RecipientID == n.ActorID {
		return errors.New("repotest: notifications check constraint violated")
	}
	if _, ok := r.s.st.users[n.RecipientID]; !ok {
		return repositories.ErrReferenceMissing
	}
	if _, ok := r.s.st.users[n.ActorID]; !ok {
		return repositories.ErrReferenceMissing
	}
	n.ID = r.s.st.id()
	stamp(&n.CreatedAt)
	r.s.st.notifications[n.ID] = *n
	return nil
}

func (r notificationRepo) GetByID(_ context.Context, id uint) (*models.Notification, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	n, ok := r.s.st.notifications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &n, nil
}

func (r notificationRepo) GetByIDs(_ context.Context, ids []uint) (map[uint]models.Notification, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	out := make(map[uint]models.Notification, len(ids))
	for _, id := range ids {
		if n, ok := r.s.st.notifications[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (r notificationRepo) GetByRecipientID(_ context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	if r.s.Err != nil {
		return nil, 0, r.s.Err
	}
	all := r.s.NotificationsFor(recipientID)
	total := int64(len(all))
	offset := (page - 1) * limit
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r notificationRepo) GetUnreadCount(_ context.Context, recipientID uint) (int64, error) {
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	defer r.s.lock()()
	var count int64
	for _, n := range r.s.st.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) markRead(recipientID uint, match func(uint) bool) (int64, error) {
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	defer r.s.lock()()
	var changed int64
	for id, n := range r.s.st.notifications {
		if n.RecipientID == recipientID && !n.IsRead && match(id) {
			n.IsRead = true
			r.s.st.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r notificationRepo) MarkAsRead(_ context.Context, recipientID uint, ids []uint) (int64, error) {
	want := map[uint]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return r.markRead(recipientID, func(id uint) bool { return want[id] })
}

func (r notificationRepo) MarkAllAsRead(_ context.Context, recipientID uint) (int64, error) {
	return r.markRead(recipientID, func(uint) bool { return true })
}

func (r notificationRepo) Delete(_ context.Context, id uint) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	if _, ok := r.s.st.notifications[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.st.notifications, id)
	return nil
}

// ===== Device tokens =====

type deviceRepo struct{ s *Store }

func (r deviceRepo) Upsert(_ context.Context, token *models.DeviceToken) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	for id, d := range r.s.st.devices {
		if d.Token == token.Token {
			d.UserID = token.UserID
			d.Platform = token.Platform
			r.s.st.devices[id] = d
			*token = d
			return nil
		}
	}
	token.ID = r.s.st.id()
	stamp(&token.CreatedAt)
	r.s.st.devices[token.ID] = *token
	return nil
}

func (r deviceRepo) Delete(_ context.Context, userID uint, token string) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	for id, d := range r.s.st.devices {
		if d.Token == token && d.UserID == userID {
			delete(r.s.st.devices, id)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r deviceRepo) ListTokens(_ context.Context, userID uint) ([]string, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	defer r.s.lock()()
	var out []string
	for _, d := range r.s.st.devices {
		if d.UserID == userID {
			out = append(out, d.Token)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r deviceRepo) DeleteTokens(_ context.Context, tokens []string) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	defer r.s.lock()()
	drop := map[string]bool{}
	for _, t := range tokens {
		drop[t] = true
	}
	for id, d := range r.s.st.devices {
		if drop[d.Token] {
			delete(r.s.st.devices, id)
		}
	}
	return nil
}
