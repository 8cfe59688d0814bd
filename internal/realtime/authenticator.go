package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"beacon/config"
	"beacon/internal/domain/constants"
	"beacon/internal/domain/entity"
	"beacon/internal/domain/repository"
	"beacon/internal/domain/service"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("unknown user")
)

// AuthenticatorParams holds dependencies for the Authenticator, injected by Fx.
type AuthenticatorParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	TokenSvc service.TokenService
	UserRepo repository.UserRepository
}

// Authenticator resolves the credential of an upgrade request to a known user.
type Authenticator struct {
	tokenSvc service.TokenService
	userRepo repository.UserRepository
	users    *ttlworker.Cache[uuid.UUID, *entity.User]
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator with a user cache of the configured TTL.
func NewAuthenticator(params AuthenticatorParams) *Authenticator {
	return &Authenticator{
		tokenSvc: params.TokenSvc,
		userRepo: params.UserRepo,
		users:    ttlworker.NewCache[uuid.UUID, *entity.User](params.Config.Realtime.UserCacheTTL),
		logger:   params.Logger,
	}
}

// TokenFromRequest reads the token query parameter, falling back to a Bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get(constants.TokenQueryParam)); token != "" {
		return token
	}

	const bearerPrefix = "Bearer "
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}

	return ""
}

// Authenticate validates token and returns the user it names.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims, err := a.tokenSvc.ValidateToken(token)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Type != service.TokenTypeAccess || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	if user := a.users.Get(claims.UserID); user != nil {
		return user, nil
	}

	user, err := a.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}

		return nil, errors.Wrap(err, "failed to resolve user")
	}

	a.users.Set(user.ID, user)

	return user, nil
}

// CloseCodeFor maps an Authenticate error to the close frame sent to the client.
// Credential problems are policy violations; anything else is an internal error.
func CloseCodeFor(err error) (code int, reason string) {
	switch {
	case errors.Is(err, ErrMissingToken):
		return websocket.ClosePolicyViolation, "authentication required"
	case errors.Is(err, ErrInvalidToken):
		return websocket.ClosePolicyViolation, "invalid token"
	case errors.Is(err, ErrUnknownUser):
		return websocket.ClosePolicyViolation, "unknown user"
	default:
		return websocket.CloseInternalServerErr, "internal error"
	}
}
