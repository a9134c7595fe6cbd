package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/services"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	engagement *services.EngagementService
}

func NewFollowHandler(engagement *services.EngagementService) *FollowHandler {
	return &FollowHandler{engagement: engagement}
}

func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/follow", h.GetFollowStatus)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

func (h *FollowHandler) FollowUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	if err := h.engagement.Follow(c.Request().Context(), currentUserID, targetID); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"is_following": true})
}

func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	if err := h.engagement.Unfollow(c.Request().Context(), currentUserID, targetID); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"is_following": false})
}

func (h *FollowHandler) GetFollowStatus(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	following, err := h.engagement.IsFollowing(c.Request().Context(), currentUserID, targetID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"is_following": following})
}

func (h *FollowHandler) GetFollowers(c echo.Context) error {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	users, err := h.engagement.Followers(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"users": users})
}

func (h *FollowHandler) GetFollowing(c echo.Context) error {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	users, err := h.engagement.Following(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"users": users})
}
