package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/cache"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
)

// ContentService owns posts and comments.
type ContentService struct {
	store    repositories.Store
	notifier *NotificationService
	views    viewCache
	log      *logrus.Logger
}

func NewContentService(store repositories.Store, notifier *NotificationService, c cache.ViewCache, m *metrics.Metrics, log *logrus.Logger) *ContentService {
	return &ContentService{
		store:    store,
		notifier: notifier,
		views:    viewCache{cache: c, metrics: m, log: log},
		log:      log,
	}
}

func (s *ContentService) CreatePost(ctx context.Context, author uint, body, imageURL string) (*models.Post, error) {
	body = strings.TrimSpace(body)
	imageURL = strings.TrimSpace(imageURL)
	if body == "" {
		return nil, apperr.New(apperr.InvalidInput, "Post body cannot be empty")
	}
	if utf8.RuneCountInString(body) > maxPostLength {
		return nil, apperr.New(apperr.InvalidInput, fmt.Sprintf("Post body cannot exceed %d characters", maxPostLength))
	}
	if imageURL != "" && !isHTTPURL(imageURL) {
		return nil, apperr.New(apperr.InvalidInput, "Image URL must be an absolute http(s) URL")
	}

	post := &models.Post{AuthorID: author, Body: body, ImageURL: imageURL}
	if err := s.store.Posts().CreatePost(ctx, post); err != nil {
		return nil, classify(err, "Author not found")
	}

	s.views.invalidate(ctx, cache.Root, s.profilePath(ctx, author))
	return post, nil
}

// DeletePost removes a post with its likes and comments. Only the author may
// delete it.
func (s *ContentService) DeletePost(ctx context.Context, actor, postID uint) error {
	var removedLikes, removedComments int64
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		post, err := tx.Posts().LockPost(ctx, postID, true)
		if err != nil {
			return err
		}
		if post.AuthorID != actor {
			return apperr.New(apperr.Forbidden, "You can only delete your own posts")
		}
		if removedLikes, err = tx.Likes().DeleteLikesByPostID(ctx, postID); err != nil {
			return err
		}
		if removedComments, err = tx.Comments().DeleteCommentsByPostID(ctx, postID); err != nil {
			return err
		}
		return tx.Posts().DeletePost(ctx, postID)
	})
	if err != nil {
		return classify(err, "Post not found")
	}

	s.log.WithFields(logrus.Fields{
		"post_id":  postID,
		"user_id":  actor,
		"likes":    removedLikes,
		"comments": removedComments,
	}).Info("post deleted")
	s.views.invalidate(ctx, cache.PostPath(postID), s.profilePath(ctx, actor), cache.Root)
	return nil
}

// CreateComment adds a comment and notifies the post author in the same
// transaction.
func (s *ContentService) CreateComment(ctx context.Context, actor, postID uint, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.New(apperr.InvalidInput, "Comment cannot be empty")
	}
	if utf8.RuneCountInString(body) > maxCommentLength {
		return nil, apperr.New(apperr.InvalidInput, fmt.Sprintf("Comment cannot exceed %d characters", maxCommentLength))
	}

	var comment *models.Comment
	var note *models.Notification
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		post, err := tx.Posts().LockPost(ctx, postID, false)
		if err != nil {
			return err
		}
		c := &models.Comment{PostID: post.ID, AuthorID: actor, Body: body}
		if err := tx.Comments().CreateComment(ctx, c); err != nil {
			return err
		}
		note, err = s.notifier.Deliver(ctx, tx, post.AuthorID, actor, models.NotificationComment,
			models.NotificationRefs{PostID: &c.PostID, CommentID: &c.ID})
		if err != nil {
			return err
		}
		comment = c
		return nil
	})
	if err != nil {
		return nil, classify(err, "Post not found")
	}

	s.views.invalidate(ctx, cache.PostPath(postID))
	s.notifier.Publish(ctx, note)
	return comment, nil
}

// DeleteComment removes a comment. Only its author may delete it.
func (s *ContentService) DeleteComment(ctx context.Context, actor, commentID uint) error {
	var postID uint
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		c, err := tx.Comments().GetCommentByID(ctx, commentID)
		if err != nil {
			return err
		}
		if c.AuthorID != actor {
			return apperr.New(apperr.Forbidden, "You can only delete your own comments")
		}
		postID = c.PostID
		return tx.Comments().DeleteComment(ctx, commentID)
	})
	if err != nil {
		return classify(err, "Comment not found")
	}

	s.views.invalidate(ctx, cache.PostPath(postID))
	return nil
}

// GetPost returns the post with its comments. The viewer-independent part is
// served from the view cache; counts, the viewer's like and every author card
// are resolved live.
func (s *ContentService) GetPost(ctx context.Context, viewer, postID uint) (*models.PostDetailView, error) {
	path := cache.PostPath(postID)
	var view models.PostDetailView
	hit := s.views.get(ctx, path, &view)
	if !hit {
		loaded, err := s.loadPostDetail(ctx, postID)
		if err != nil {
			return nil, err
		}
		view = *loaded
		s.views.put(ctx, path, view)
	}

	card := []models.PostCardView{view.PostCardView}
	if err := s.overlayCards(ctx, viewer, card); err != nil {
		return nil, err
	}
	view.PostCardView = card[0]
	if hit {
		if err := s.overlayCommentAuthors(ctx, view.Comments); err != nil {
			return nil, err
		}
	}
	return &view, nil
}

func (s *ContentService) loadPostDetail(ctx context.Context, postID uint) (*models.PostDetailView, error) {
	post, err := s.store.Posts().GetPostByID(ctx, postID)
	if err != nil {
		return nil, classify(err, "Post not found")
	}
	author, err := s.store.Users().GetUserByID(ctx, post.AuthorID)
	if err != nil {
		return nil, classify(err, "Author not found")
	}
	comments, err := s.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &models.PostDetailView{
		PostCardView: models.PostCardView{
			ID:        post.ID,
			Author:    author.ToSummary(),
			Body:      post.Body,
			ImageURL:  post.ImageURL,
			CreatedAt: post.CreatedAt,
		},
		Comments: comments,
	}, nil
}

// ListComments returns a post's comments, oldest first.
func (s *ContentService) ListComments(ctx context.Context, postID uint) ([]models.CommentView, error) {
	if _, err := s.store.Posts().GetPostByID(ctx, postID); err != nil {
		return nil, classify(err, "Post not found")
	}
	comments, err := s.store.Comments().GetCommentsByPostID(ctx, postID)
	if err != nil {
		return nil, classify(err, "Post not found")
	}

	authorIDs := make([]uint, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.AuthorID)
	}
	authors, err := s.store.Users().GetUsersByIDs(ctx, authorIDs)
	if err != nil {
		return nil, classify(err, "Author not found")
	}

	views := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		author := authors[c.AuthorID]
		views = append(views, models.CommentView{
			ID:        c.ID,
			PostID:    c.PostID,
			Author:    author.ToSummary(),
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	return views, nil
}

// feedPage is the cached landing page of the feed, without viewer state.
type feedPage struct {
	Cards []models.PostCardView `json:"cards"`
	Total int64                 `json:"total"`
}

// Feed returns one page of all posts, newest first. The first page at the
// default size is cached under the root path.
func (s *ContentService) Feed(ctx context.Context, viewer uint, page, limit int) ([]models.PostCardView, int64, error) {
	page, limit = PageBounds(page, limit)
	cacheable := page == 1 && limit == defaultPageSize

	var fp feedPage
	if !cacheable || !s.views.get(ctx, cache.Root, &fp) {
		posts, total, err := s.store.Posts().ListPosts(ctx, (page-1)*limit, limit)
		if err != nil {
			return nil, 0, classify(err, "Posts not found")
		}
		fp = feedPage{Cards: baseCards(posts), Total: total}
		if cacheable {
			s.views.put(ctx, cache.Root, fp)
		}
	}

	if err := s.overlayCards(ctx, viewer, fp.Cards); err != nil {
		return nil, 0, err
	}
	if fp.Cards == nil {
		fp.Cards = []models.PostCardView{}
	}
	return fp.Cards, fp.Total, nil
}

func (s *ContentService) ListUserPosts(ctx context.Context, viewer, userID uint) ([]models.PostCardView, error) {
	if _, err := s.store.Users().GetUserByID(ctx, userID); err != nil {
		return nil, classify(err, "User not found")
	}
	posts, err := s.store.Posts().ListPostsByAuthor(ctx, userID)
	if err != nil {
		return nil, classify(err, "Posts not found")
	}
	return s.buildCards(ctx, viewer, posts)
}

func (s *ContentService) ListLikedPosts(ctx context.Context, viewer, userID uint) ([]models.PostCardView, error) {
	if _, err := s.store.Users().GetUserByID(ctx, userID); err != nil {
		return nil, classify(err, "User not found")
	}
	posts, err := s.store.Posts().ListPostsLikedBy(ctx, userID)
	if err != nil {
		return nil, classify(err, "Posts not found")
	}
	return s.buildCards(ctx, viewer, posts)
}

func (s *ContentService) buildCards(ctx context.Context, viewer uint, posts []models.Post) ([]models.PostCardView, error) {
	cards := baseCards(posts)
	if err := s.overlayCards(ctx, viewer, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// baseCards projects posts to cards carrying only the author id.
func baseCards(posts []models.Post) []models.PostCardView {
	cards := make([]models.PostCardView, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, models.PostCardView{
			ID:        p.ID,
			Author:    models.UserSummary{ID: p.AuthorID},
			Body:      p.Body,
			ImageURL:  p.ImageURL,
			CreatedAt: p.CreatedAt,
		})
	}
	return cards
}

// overlayCards fills author cards, counts and the viewer's likes in place.
func (s *ContentService) overlayCards(ctx context.Context, viewer uint, cards []models.PostCardView) error {
	if len(cards) == 0 {
		return nil
	}

	postIDs := make([]uint, 0, len(cards))
	authorIDs := make([]uint, 0, len(cards))
	for _, c := range cards {
		postIDs = append(postIDs, c.ID)
		authorIDs = append(authorIDs, c.Author.ID)
	}

	authors, err := s.store.Users().GetUsersByIDs(ctx, authorIDs)
	if err != nil {
		return classify(err, "Author not found")
	}
	likeCounts, err := s.store.Likes().CountByPostIDs(ctx, postIDs)
	if err != nil {
		return classify(err, "Post not found")
	}
	commentCounts, err := s.store.Comments().CountByPostIDs(ctx, postIDs)
	if err != nil {
		return classify(err, "Post not found")
	}
	liked := map[uint]bool{}
	if viewer != 0 {
		if liked, err = s.store.Likes().LikedPostIDs(ctx, viewer, postIDs); err != nil {
			return classify(err, "Post not found")
		}
	}

	for i := range cards {
		c := &cards[i]
		if author, ok := authors[c.Author.ID]; ok {
			c.Author = author.ToSummary()
		}
		c.LikeCount = likeCounts[c.ID]
		c.CommentCount = commentCounts[c.ID]
		c.HasLiked = liked[c.ID]
	}
	return nil
}

func (s *ContentService) overlayCommentAuthors(ctx context.Context, comments []models.CommentView) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.Author.ID)
	}
	authors, err := s.store.Users().GetUsersByIDs(ctx, ids)
	if err != nil {
		return classify(err, "Author not found")
	}
	for i := range comments {
		if author, ok := authors[comments[i].Author.ID]; ok {
			comments[i].Author = author.ToSummary()
		}
	}
	return nil
}

// profilePath resolves a user's profile path for invalidation. An unknown
// user yields the root path, which is invalidated anyway.
func (s *ContentService) profilePath(ctx context.Context, userID uint) string {
	u, err := s.store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return cache.Root
	}
	return cache.ProfilePath(u.Handle)
}
