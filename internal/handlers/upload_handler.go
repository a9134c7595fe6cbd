package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/media"
)

const maxUploadBytes = 10 << 20

// UploadHandler forwards images to the image host and returns their URL.
type UploadHandler struct {
	uploader media.Uploader
	log      *logrus.Logger
}

func NewUploadHandler(uploader media.Uploader, log *logrus.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, log: log}
}

func (h *UploadHandler) RegisterUploadRoutes(g *echo.Group) {
	g.POST("/uploads", h.Upload)
}

func (h *UploadHandler) Upload(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	kind, err := media.ParseKind(c.FormValue("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be one of: post avatar")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Multipart field 'file' is required")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File is too large")
	}
	file, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded file").SetInternal(err)
	}
	defer file.Close()

	url, err := h.uploader.Upload(c.Request().Context(), userID, kind, file)
	if errors.Is(err, media.ErrDisabled) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Uploads are not available").SetInternal(err)
	}
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("upload failed")
		return echo.NewHTTPError(http.StatusBadGateway, "Upload failed").SetInternal(err)
	}
	return success(c, http.StatusCreated, echo.Map{"url": url})
}
