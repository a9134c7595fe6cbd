package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/services"
)

// FeedHandler serves post listings: the global feed and per-user timelines.
type FeedHandler struct {
	content *services.ContentService
}

func NewFeedHandler(content *services.ContentService) *FeedHandler {
	return &FeedHandler{content: content}
}

func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/posts", h.GetFeed)
	g.GET("/users/:id/posts", h.GetUserPosts)
	g.GET("/users/:id/likes", h.GetLikedPosts)
}

// GetFeed returns all posts newest first, paginated.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	page, limit := pageParams(c)
	posts, total, err := h.content.Feed(c.Request().Context(), getUserIDFromContext(c), page, limit)
	if err != nil {
		return toHTTPError(err)
	}
	return paginated(c, "posts", posts, page, limit, total)
}

func (h *FeedHandler) GetUserPosts(c echo.Context) error {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	posts, err := h.content.ListUserPosts(c.Request().Context(), getUserIDFromContext(c), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"posts": posts})
}

func (h *FeedHandler) GetLikedPosts(c echo.Context) error {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	posts, err := h.content.ListLikedPosts(c.Request().Context(), getUserIDFromContext(c), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"posts": posts})
}
