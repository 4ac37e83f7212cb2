package handlers

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/orgwarden/internal/invites"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// InvitationService defines the public invitation operations.
type InvitationService interface {
	Redeem(ctx context.Context, userID int64, key string) error
	Decline(ctx context.Context, userID int64, key string) error
	Preview(ctx context.Context, key string) (*invites.Invitation, error)
}

var _ InvitationService = (*invites.Service)(nil)

// InvitationsHandler handles the endpoints invite links point at. They are
// public; the accept key is the credential.
type InvitationsHandler struct {
	invites InvitationService
	logger  zerolog.Logger
}

// NewInvitationsHandler creates a new InvitationsHandler.
func NewInvitationsHandler(svc InvitationService, logger zerolog.Logger) *InvitationsHandler {
	return &InvitationsHandler{
		invites: svc,
		logger:  logger.With().Str("component", "invitations_handler").Logger(),
	}
}

// RegisterPublicRoutes registers invitation routes that need no bearer token.
func (h *InvitationsHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	inv := r.Group("/invitations")
	{
		inv.POST("/accept", h.Accept)
		inv.POST("/decline", h.Decline)
		inv.GET("/:key", h.Preview)
	}
}

// InvitationRequest carries the user and key of an invite link, either as
// JSON or as the link's query parameters.
type InvitationRequest struct {
	UserID int64  `json:"user_id" form:"user" binding:"required"`
	Key    string `json:"key" form:"key" binding:"required"`
}

// Accept accepts an invitation. The answer never describes the user; an
// unknown user, a wrong key and an accepted invitation all answer 404.
// POST /api/v1/invitations/accept
func (h *InvitationsHandler) Accept(c *gin.Context) {
	var req InvitationRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if err := h.invites.Redeem(c.Request.Context(), req.UserID, req.Key); err != nil {
		respondError(c, h.logger, err, "failed to accept invitation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// Decline declines an invitation, removing the invited user.
// POST /api/v1/invitations/decline
func (h *InvitationsHandler) Decline(c *gin.Context) {
	var req InvitationRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if err := h.invites.Decline(c.Request.Context(), req.UserID, req.Key); err != nil {
		respondError(c, h.logger, err, "failed to decline invitation")
		return
	}
	c.Status(http.StatusNoContent)
}

// Preview shows who a pending invitation is for.
// GET /api/v1/invitations/:key
func (h *InvitationsHandler) Preview(c *gin.Context) {
	inv, err := h.invites.Preview(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get invitation")
		return
	}
	c.JSON(http.StatusOK, inv)
}
