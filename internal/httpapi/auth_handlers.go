package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/internal/pairing"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

// AuthHandlers serves the desktop login/token endpoints. It does not talk
// to the WebSocket hub directly — the desktop dials /ws/desktop with the
// token this issues, and identifies itself there.
type AuthHandlers struct {
	logger  *Logger.Logger
	tokens  *auth.Service
	admins  auth.AdminStore
	pairing *pairing.Registry
}

func NewAuthHandlers(logger *Logger.Logger, tokens *auth.Service, admins auth.AdminStore, reg *pairing.Registry) *AuthHandlers {
	return &AuthHandlers{logger: logger, tokens: tokens, admins: admins, pairing: reg}
}

func (h *AuthHandlers) RegisterRoutes(router gin.IRouter) {
	g := router.Group("/api/auth")
	{
		g.POST("/login", h.Login)
		g.POST("/ws-token-mobile", h.MobileToken)
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	AdminID   string `json:"admin_id"`
}

// Login authenticates an email/password pair and issues a full-role
// desktop bearer token, used both for the REST API and as the /ws/desktop
// query-string credential.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	admin, token, expiresAt, err := h.tokens.Login(h.admins, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Errorf("login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format("2006-01-02T15:04:05Z07:00"),
		AdminID:   admin.ID,
	})
}

type mobileTokenRequest struct {
	PairCode string `json:"pair_code" binding:"required"`
}

type mobileTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	ChannelID string `json:"channel_id"`
}

// MobileToken exchanges a still-unclaimed pair code for a reduced-role
// mobile bearer token scoped to the channel, ahead of the mobile device
// opening its WebSocket. The pair code itself is still required at
// mobile_init time; this only saves the device from carrying a bare code
// as its sole credential if it wants a signed one instead.
func (h *AuthHandlers) MobileToken(c *gin.Context) {
	var req mobileTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pair_code is required"})
		return
	}

	ch, ok := h.pairing.Channel("pair-" + req.PairCode)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired pair code"})
		return
	}

	token, expiresAt, err := h.tokens.IssueMobileToken(ch.AdminID, ch.ID)
	if err != nil {
		h.logger.Errorf("mobile token issuance failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, mobileTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format("2006-01-02T15:04:05Z07:00"),
		ChannelID: ch.ID,
	})
}
