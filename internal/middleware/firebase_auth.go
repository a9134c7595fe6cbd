package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/anonto42/nano-midea/socialgraph/internal/apperr"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

const (
	principalKey = "principal"
	userKey      = "user"
)

// ErrInvalidToken is returned by verifiers for any token they reject.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenVerifier turns a bearer token into the caller's external identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.ExternalPrincipal, error)
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier accepts Firebase ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*models.ExternalPrincipal, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claim := func(name string) string {
		s, _ := token.Claims[name].(string)
		return s
	}
	return &models.ExternalPrincipal{
		ExternalID: token.UID,
		Email:      claim("email"),
		Name:       claim("name"),
		Picture:    claim("picture"),
	}, nil
}

// Authenticate requires a bearer token accepted by one of verifiers, tried in
// order, and stores the resulting principal on the context.
func Authenticate(log *logrus.Logger, verifiers ...TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			for _, v := range verifiers {
				principal, err := v.Verify(ctx, raw)
				if err == nil {
					c.Set(principalKey, principal)
					return next(c)
				}
				log.WithError(err).Debug("token rejected")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
	}
	return token, nil
}

// Principal returns the verified external identity, if any.
func Principal(c echo.Context) *models.ExternalPrincipal {
	p, _ := c.Get(principalKey).(*models.ExternalPrincipal)
	return p
}

// IdentityResolver binds an external identity to an internal user.
type IdentityResolver interface {
	ResolvePrincipal(ctx context.Context, p *models.ExternalPrincipal) (*models.User, error)
}

// BindIdentity resolves the authenticated principal to its user, creating the
// user on first sight. It must run after Authenticate.
func BindIdentity(identity IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := identity.ResolvePrincipal(c.Request().Context(), Principal(c))
			if err != nil {
				return echo.NewHTTPError(apperr.HTTPStatus(apperr.KindOf(err)), apperr.PublicMessage(err)).SetInternal(err)
			}
			SetCurrentUser(c, user)
			return next(c)
		}
	}
}

func SetCurrentUser(c echo.Context, user *models.User) {
	c.Set(userKey, user)
}

// CurrentUser returns the user bound by BindIdentity, or nil.
func CurrentUser(c echo.Context) *models.User {
	u, _ := c.Get(userKey).(*models.User)
	return u
}
