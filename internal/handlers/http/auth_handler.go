package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/services"
	"slate/pkg/errors"
	"slate/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthHandler mints connect tokens for the websocket gateway. Account
// storage lives in a separate service; this surface only turns a known (or
// guest) identity into a signed token the gateway accepts.
type AuthHandler struct {
	authService    authTokenIssuer
	tokenTTL       time.Duration
	allowAnonymous bool
}

type authTokenIssuer interface {
	GenerateToken(user *domain.User, sessionID domain.SessionID) (string, error)
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

var _ authTokenIssuer = (services.AuthService)(nil)

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration, allowAnonymous bool) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		tokenTTL:       tokenTTL,
		allowAnonymous: allowAnonymous,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/token", h.IssueToken)
		api.POST("/refresh", h.RefreshToken)
	}
}

type TokenRequest struct {
	IdentityID  string `json:"identity_id" binding:"max=100"`
	DisplayName string `json:"display_name" binding:"max=64"`
	Plan        string `json:"plan" binding:"max=16"`
}

// IssueToken mints a connect token. Without an identity id the token is a
// guest identity, allowed only when anonymous access is on.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.IdentityID = strings.TrimSpace(req.IdentityID)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if req.IdentityID == "" && !h.allowAnonymous {
		c.Error(errors.NewAuthError(errors.ErrCodeAuthMissing, "identity_id is required"))
		return
	}
	if req.IdentityID != "" {
		if err := validation.ValidateIdentityID(req.IdentityID); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	} else {
		req.IdentityID = "guest-" + uuid.New().String()
	}
	if req.DisplayName != "" {
		if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	plan := domain.PlanTier(req.Plan)
	if _, known := map[domain.PlanTier]bool{domain.PlanFree: true, domain.PlanPro: true, domain.PlanTeam: true}[plan]; !known {
		plan = domain.PlanFree
	}

	user := &domain.User{
		ID:          domain.IdentityID(req.IdentityID),
		DisplayName: req.DisplayName,
		Plan:        plan,
	}
	sessionID := domain.SessionID(uuid.New().String())

	token, err := h.authService.GenerateToken(user, sessionID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"identity_id": req.IdentityID,
		"session_id":  sessionID,
		"token":       token,
		"expires_in":  int(h.tokenTTL / time.Second),
	})
}

type RefreshTokenRequest struct {
	Token string `json:"token" binding:"required,max=2048"`
}

// RefreshToken exchanges a still-valid token for a fresh one under a new
// session. Expired tokens cannot be refreshed; clients re-authenticate.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	identity, err := h.authService.Authenticate(c.Request.Context(), req.Token)
	if err != nil {
		c.Error(err)
		return
	}

	user := &domain.User{
		ID:          identity.ID,
		DisplayName: identity.DisplayName,
		AvatarRef:   identity.AvatarRef,
		Plan:        identity.Plan,
	}
	sessionID := domain.SessionID(uuid.New().String())

	token, err := h.authService.GenerateToken(user, sessionID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity_id": identity.ID,
		"session_id":  sessionID,
		"token":       token,
		"expires_in":  int(h.tokenTTL / time.Second),
	})
}
