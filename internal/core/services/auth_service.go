package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	apperrors "slate/pkg/errors"
	"slate/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// AuthService resolves the identity attached to a live connection. A token is
// verified for signature and expiry; an absent token falls back to a
// synthesized anonymous identity when the deployment allows it.
type AuthService interface {
	GenerateToken(user *domain.User, sessionID domain.SessionID) (string, error)
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

type Claims struct {
	IdentityID  domain.IdentityID `json:"identity_id"`
	DisplayName string            `json:"display_name"`
	Plan        domain.PlanTier   `json:"plan"`
	SessionID   domain.SessionID  `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
	allowAnonymous bool
	userRepo       ports.UserRepository // optional, enriches claims with stored profile
	sessions       ports.SessionStore   // optional, advisory cross-check only
	logger         *zap.SugaredLogger
}

func NewAuthService(
	jwtSecret string,
	accessTokenTTL time.Duration,
	allowAnonymous bool,
	userRepo ports.UserRepository,
	sessions ports.SessionStore,
	logger *zap.SugaredLogger,
) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
		allowAnonymous: allowAnonymous,
		userRepo:       userRepo,
		sessions:       sessions,
		logger:         logger,
	}
}

func (s *authService) GenerateToken(user *domain.User, sessionID domain.SessionID) (string, error) {
	claims := &Claims{
		IdentityID:  user.ID,
		DisplayName: user.DisplayName,
		Plan:        user.Plan,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Authenticate turns an (optionally empty) token into an identity. Failures
// are distinguished so the transport layer can report AUTH_MISSING,
// AUTH_INVALID_TOKEN and AUTH_EXPIRED_TOKEN as separate conditions.
func (s *authService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		if s.allowAnonymous {
			return s.anonymousIdentity(), nil
		}
		return domain.Identity{}, apperrors.NewAuthError(apperrors.ErrCodeAuthMissing, "authentication token required")
	}

	claims, err := s.parseToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return domain.Identity{}, apperrors.NewAuthError(apperrors.ErrCodeAuthExpired, "token expired")
		}
		return domain.Identity{}, apperrors.NewAuthError(apperrors.ErrCodeAuthInvalid, "invalid token")
	}

	identity := domain.Identity{
		ID:          claims.IdentityID,
		DisplayName: claims.DisplayName,
		Plan:        claims.Plan,
	}

	// The stored profile wins over the claims when available; a repository
	// failure only degrades to claim data.
	if s.userRepo != nil {
		if user, uerr := s.userRepo.GetByID(ctx, claims.IdentityID); uerr == nil {
			identity.DisplayName = user.DisplayName
			identity.AvatarRef = user.AvatarRef
			identity.Plan = user.Plan
		} else if !errors.Is(uerr, domain.ErrUserNotFound) {
			s.logger.Warnw("user lookup failed during authentication, using claim data",
				"identity_id", claims.IdentityID,
				"error", uerr)
		}
	}

	// Session validation is advisory: a stale or unreachable session store
	// must never block connectivity.
	if s.sessions != nil && claims.SessionID != "" {
		valid, serr := s.sessions.Validate(ctx, claims.IdentityID, string(claims.SessionID))
		if serr != nil {
			s.logger.Warnw("session validation unavailable",
				"identity_id", claims.IdentityID,
				"error", serr)
		} else if !valid {
			s.logger.Warnw("token carries unknown session, allowing connection",
				"identity_id", claims.IdentityID)
		}
	}

	if identity.DisplayName == "" {
		identity.DisplayName = string(identity.ID)
	}
	if identity.Plan == "" {
		identity.Plan = domain.PlanFree
	}
	return identity, nil
}

func (s *authService) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.IdentityID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// anonymousIdentity synthesizes a per-connection guest identity. It is never
// persisted and always carries the free plan.
func (s *authService) anonymousIdentity() domain.Identity {
	id := utils.GenerateAnonymousID()
	return domain.Identity{
		ID:          domain.IdentityID(id),
		DisplayName: fmt.Sprintf("Guest-%s", id[len(id)-6:]),
		Plan:        domain.PlanFree,
		Anonymous:   true,
	}
}
