package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/services"
)

// LikeHandler handles like/unlike requests. Both are idempotent.
type LikeHandler struct {
	engagement *services.EngagementService
}

func NewLikeHandler(engagement *services.EngagementService) *LikeHandler {
	return &LikeHandler{engagement: engagement}
}

func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/likes", h.LikePost)
	g.DELETE("/posts/:id/likes", h.UnlikePost)
	g.GET("/posts/:id/likes", h.GetLikeStatus)
}

func (h *LikeHandler) LikePost(c echo.Context) error {
	return h.toggle(c, h.engagement.Like)
}

func (h *LikeHandler) UnlikePost(c echo.Context) error {
	return h.toggle(c, h.engagement.Unlike)
}

func (h *LikeHandler) toggle(c echo.Context, op func(ctx context.Context, actor, postID uint) error) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id", "post")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := op(ctx, userID, postID); err != nil {
		return toHTTPError(err)
	}
	status, err := h.engagement.LikeStatus(ctx, userID, postID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, status)
}

func (h *LikeHandler) GetLikeStatus(c echo.Context) error {
	postID, err := parseID(c, "id", "post")
	if err != nil {
		return err
	}
	status, err := h.engagement.LikeStatus(c.Request().Context(), getUserIDFromContext(c), postID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, status)
}
