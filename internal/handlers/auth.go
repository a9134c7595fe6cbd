package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/middleware"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

// AuthHandler exchanges provider ID tokens for local session tokens.
type AuthHandler struct {
	provider middleware.TokenVerifier
	identity middleware.IdentityResolver
	sessions *middleware.SessionTokens
}

func NewAuthHandler(provider middleware.TokenVerifier, identity middleware.IdentityResolver, sessions *middleware.SessionTokens) *AuthHandler {
	return &AuthHandler{provider: provider, identity: identity, sessions: sessions}
}

func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/session", h.CreateSession)
}

// CreateSession verifies a Firebase ID token, binds it to a user (creating
// one on first sight) and issues a session token.
func (h *AuthHandler) CreateSession(c echo.Context) error {
	var req models.SessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	principal, err := h.provider.Verify(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token").SetInternal(err)
	}

	user, err := h.identity.ResolvePrincipal(ctx, principal)
	if err != nil {
		return toHTTPError(err)
	}

	token, expires, err := h.sessions.Issue(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token").SetInternal(err)
	}

	return success(c, http.StatusOK, echo.Map{
		"token":      token,
		"expires_at": expires,
		"user":       user.ToSummary(),
	})
}
