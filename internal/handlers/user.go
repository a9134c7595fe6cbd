package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/services"
)

// UserHandler serves profile reads and edits.
type UserHandler struct {
	profiles *services.ProfileService
}

func NewUserHandler(profiles *services.ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/me", h.Me)
	g.GET("/profiles/:handle", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.PUT("/profile/avatar", h.UpdateAvatar)
	g.GET("/users/suggested", h.Suggested)
	g.GET("/users/search", h.SearchUsers)
}

func (h *UserHandler) Me(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	me, err := h.profiles.Me(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, me)
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	profile, err := h.profiles.GetProfile(c.Request().Context(), getUserIDFromContext(c), c.Param("handle"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.UpdateProfile(c.Request().Context(), userID, models.ProfileUpdate{
		Name:     req.Name,
		Bio:      req.Bio,
		Location: req.Location,
		Website:  req.Website,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, user)
}

func (h *UserHandler) UpdateAvatar(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateAvatarRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.profiles.UpdateAvatar(c.Request().Context(), userID, req.ImageURL)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, user)
}

func (h *UserHandler) Suggested(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	users, err := h.profiles.Suggested(c.Request().Context(), userID, queryInt(c, "limit"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"users": users})
}

func (h *UserHandler) SearchUsers(c echo.Context) error {
	users, err := h.profiles.Search(c.Request().Context(), c.QueryParam("q"), queryInt(c, "limit"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"users": users})
}
