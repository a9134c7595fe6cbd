package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/services"
)

// DeviceHandler manages push registrations for the caller's devices.
type DeviceHandler struct {
	notifications *services.NotificationService
}

func NewDeviceHandler(notifications *services.NotificationService) *DeviceHandler {
	return &DeviceHandler{notifications: notifications}
}

func (h *DeviceHandler) RegisterDeviceRoutes(g *echo.Group) {
	g.POST("/devices", h.RegisterDevice)
	g.DELETE("/devices/:token", h.UnregisterDevice)
}

func (h *DeviceHandler) RegisterDevice(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.RegisterDeviceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.notifications.RegisterDevice(c.Request().Context(), userID, req.Token, req.Platform); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DeviceHandler) UnregisterDevice(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	if err := h.notifications.UnregisterDevice(c.Request().Context(), userID, c.Param("token")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
