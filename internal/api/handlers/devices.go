package handlers

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/orgwarden/internal/api/middleware"
	"github.com/MacJediWizard/orgwarden/internal/assets"
	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DeviceService defines the device ownership operations the handler needs.
type DeviceService interface {
	ListOwned(ctx context.Context, orgID int64) *assets.OwnedAssets
	Get(ctx context.Context, orgID int64, deviceID string) (*models.Asset, error)
	Claim(ctx context.Context, deviceID string, orgID int64) (bool, error)
	UpdateProperties(ctx context.Context, orgID int64, deviceID string, patch map[string]any) (*models.Asset, error)
	Detach(ctx context.Context, orgID int64, deviceID string) error
}

var _ DeviceService = (*assets.Service)(nil)

// DevicesHandler handles device ownership endpoints.
type DevicesHandler struct {
	devices DeviceService
	authz   *auth.Authorizer
	logger  zerolog.Logger
}

// NewDevicesHandler creates a new DevicesHandler.
func NewDevicesHandler(svc DeviceService, authz *auth.Authorizer, logger zerolog.Logger) *DevicesHandler {
	return &DevicesHandler{
		devices: svc,
		authz:   authz,
		logger:  logger.With().Str("component", "devices_handler").Logger(),
	}
}

// RegisterRoutes registers device routes.
func (h *DevicesHandler) RegisterRoutes(r *gin.RouterGroup) {
	d := r.Group("/organizations/:id/devices")
	{
		d.GET("", h.List)
		d.GET("/:device_id", h.Get)
		d.POST("/:device_id", h.Claim)
		d.PATCH("/:device_id", h.Update)
		d.DELETE("/:device_id", h.Detach)
	}
}

func (h *DevicesHandler) authorize(c *gin.Context, perm auth.Permission) (int64, bool) {
	orgID, ok := pathID(c, "id")
	if !ok {
		return 0, false
	}
	if err := h.authz.Authorize(c.Request.Context(), middleware.PrincipalFrom(c), orgID, perm); err != nil {
		respondError(c, h.logger, err, "failed to authorize")
		return 0, false
	}
	return orgID, true
}

// List returns the devices owned by an organization.
// GET /api/v1/organizations/:id/devices
func (h *DevicesHandler) List(c *gin.Context) {
	orgID, ok := h.authorize(c, auth.PermDeviceRead)
	if !ok {
		return
	}

	devices, err := h.devices.ListOwned(c.Request.Context(), orgID).Collect()
	if err != nil {
		respondError(c, h.logger, err, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []*models.Asset{}
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// Get returns one owned device. Devices of other organizations are not found.
// GET /api/v1/organizations/:id/devices/:device_id
func (h *DevicesHandler) Get(c *gin.Context) {
	orgID, ok := h.authorize(c, auth.PermDeviceRead)
	if !ok {
		return
	}

	asset, err := h.devices.Get(c.Request.Context(), orgID, c.Param("device_id"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get device")
		return
	}
	c.JSON(http.StatusOK, asset)
}

// Claim tags an unowned device with the organization. A device that
// already has an owner is answered with 409.
// POST /api/v1/organizations/:id/devices/:device_id
func (h *DevicesHandler) Claim(c *gin.Context) {
	orgID, ok := h.authorize(c, auth.PermDeviceManage)
	if !ok {
		return
	}
	deviceID := c.Param("device_id")

	claimed, err := h.devices.Claim(c.Request.Context(), deviceID, orgID)
	if err != nil {
		respondError(c, h.logger, err, "failed to claim device")
		return
	}
	if !claimed {
		c.JSON(http.StatusConflict, gin.H{"error": "device is not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device_id": deviceID, "organization_id": orgID})
}

// Update changes properties of an owned device. Properties set to null are
// cleared.
// PATCH /api/v1/organizations/:id/devices/:device_id
func (h *DevicesHandler) Update(c *gin.Context) {
	orgID, ok := h.authorize(c, auth.PermDeviceManage)
	if !ok {
		return
	}

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	asset, err := h.devices.UpdateProperties(c.Request.Context(), orgID, c.Param("device_id"), patch)
	if err != nil {
		respondError(c, h.logger, err, "failed to update device")
		return
	}
	c.JSON(http.StatusOK, asset)
}

// Detach releases an owned device.
// DELETE /api/v1/organizations/:id/devices/:device_id
func (h *DevicesHandler) Detach(c *gin.Context) {
	orgID, ok := h.authorize(c, auth.PermDeviceManage)
	if !ok {
		return
	}
	if err := h.devices.Detach(c.Request.Context(), orgID, c.Param("device_id")); err != nil {
		respondError(c, h.logger, err, "failed to detach device")
		return
	}
	c.Status(http.StatusNoContent)
}
