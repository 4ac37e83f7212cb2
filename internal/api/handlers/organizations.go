package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/MacJediWizard/orgwarden/internal/api/middleware"
	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/MacJediWizard/orgwarden/internal/images"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/orgs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OrganizationService defines the organization operations the handler needs.
type OrganizationService interface {
	Get(ctx context.Context, id int64) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	Create(ctx context.Context, actor models.Principal, org *models.Organization) (*models.Organization, error)
	Update(ctx context.Context, id int64, changes *models.Organization) (*models.Organization, error)
	Delete(ctx context.Context, id int64) error
	CascadeDelete(ctx context.Context, id int64) (*orgs.CascadeReport, error)
}

var _ OrganizationService = (*orgs.Service)(nil)

// OrganizationsHandler handles organization-related HTTP endpoints.
type OrganizationsHandler struct {
	orgs   OrganizationService
	authz  *auth.Authorizer
	images images.Resolver
	logger zerolog.Logger
}

// NewOrganizationsHandler creates a new OrganizationsHandler.
func NewOrganizationsHandler(svc OrganizationService, authz *auth.Authorizer, resolver images.Resolver, logger zerolog.Logger) *OrganizationsHandler {
	return &OrganizationsHandler{
		orgs:   svc,
		authz:  authz,
		images: resolver,
		logger: logger.With().Str("component", "organizations_handler").Logger(),
	}
}

// RegisterRoutes registers organization routes. The cascade route is
// guarded by systemAdmin.
func (h *OrganizationsHandler) RegisterRoutes(r *gin.RouterGroup, systemAdmin gin.HandlerFunc) {
	o := r.Group("/organizations")
	{
		o.GET("", h.List)
		o.POST("", h.Create)
		o.GET("/:id", h.Get)
		o.PUT("/:id", h.Update)
		o.DELETE("/:id", h.Delete)
		o.DELETE("/:id/cascade", systemAdmin, h.CascadeDelete)
	}
}

// OrganizationRequest is the request body for creating and updating an
// organization. The admin role is derived and rejected when sent.
type OrganizationRequest struct {
	Name         string         `json:"name" binding:"required,max=255"`
	Role         string         `json:"role,omitempty"`
	Address      models.Address `json:"address"`
	ContactName  string         `json:"contact_name,omitempty"`
	ContactEmail string         `json:"contact_email,omitempty" binding:"omitempty,email"`
	ContactPhone string         `json:"contact_phone,omitempty"`
	Image        string         `json:"image,omitempty"`
	Logo         string         `json:"logo,omitempty"`
}

func (r OrganizationRequest) toModel() *models.Organization {
	org := models.NewOrganization(strings.TrimSpace(r.Name))
	org.Role = r.Role
	org.Address = r.Address
	org.ContactName = r.ContactName
	org.ContactEmail = r.ContactEmail
	org.ContactPhone = r.ContactPhone
	org.Image = r.Image
	org.Logo = r.Logo
	return org
}

// OrganizationResponse is an organization with its image and logo keys
// resolved to URLs.
type OrganizationResponse struct {
	*models.Organization
	ImageURL string `json:"image_url,omitempty"`
	LogoURL  string `json:"logo_url,omitempty"`
}

func (h *OrganizationsHandler) respond(ctx context.Context, org *models.Organization) OrganizationResponse {
	resp := OrganizationResponse{Organization: org}
	var err error
	if resp.ImageURL, err = h.images.URL(ctx, org.Image); err != nil {
		h.logger.Warn().Err(err).Int64("org_id", org.ID).Msg("failed to resolve image")
	}
	if resp.LogoURL, err = h.images.URL(ctx, org.Logo); err != nil {
		h.logger.Warn().Err(err).Int64("org_id", org.ID).Msg("failed to resolve logo")
	}
	return resp
}

// List returns the organizations visible to the caller.
// GET /api/v1/organizations
func (h *OrganizationsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	all, err := h.orgs.List(ctx)
	if err != nil {
		respondError(c, h.logger, err, "failed to list organizations")
		return
	}
	visible, err := h.authz.Visible(ctx, middleware.PrincipalFrom(c), all)
	if err != nil {
		respondError(c, h.logger, err, "failed to list organizations")
		return
	}

	result := make([]OrganizationResponse, 0, len(visible))
	for _, org := range visible {
		result = append(result, h.respond(ctx, org))
	}
	c.JSON(http.StatusOK, gin.H{"organizations": result})
}

// Create creates an organization and provisions its admin role. Callers
// other than system administrators become its first admin.
// POST /api/v1/organizations
func (h *OrganizationsHandler) Create(c *gin.Context) {
	p := middleware.PrincipalFrom(c)
	if p.Anonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Role != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "the admin role is derived and cannot be set"})
		return
	}

	org, err := h.orgs.Create(c.Request.Context(), p, req.toModel())
	if err != nil {
		respondError(c, h.logger, err, "failed to create organization")
		return
	}

	h.logger.Info().
		Int64("org_id", org.ID).
		Str("role", org.Role).
		Str("login", p.Login).
		Msg("organization created")

	c.JSON(http.StatusCreated, h.respond(c.Request.Context(), org))
}

// Get returns an organization.
// GET /api/v1/organizations/:id
func (h *OrganizationsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.authz.Authorize(ctx, middleware.PrincipalFrom(c), id, auth.PermOrgRead); err != nil {
		respondError(c, h.logger, err, "failed to authorize")
		return
	}

	org, err := h.orgs.Get(ctx, id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get organization")
		return
	}
	c.JSON(http.StatusOK, h.respond(ctx, org))
}

// Update replaces the mutable fields of an organization.
// PUT /api/v1/organizations/:id
func (h *OrganizationsHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.authz.Authorize(ctx, middleware.PrincipalFrom(c), id, auth.PermOrgUpdate); err != nil {
		respondError(c, h.logger, err, "failed to authorize")
		return
	}

	var req OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	org, err := h.orgs.Update(ctx, id, req.toModel())
	if err != nil {
		respondError(c, h.logger, err, "failed to update organization")
		return
	}
	c.JSON(http.StatusOK, h.respond(ctx, org))
}

// Delete removes an organization that no longer has users, roles or
// devices.
// DELETE /api/v1/organizations/:id
func (h *OrganizationsHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.authz.Authorize(ctx, middleware.PrincipalFrom(c), id, auth.PermOrgDelete); err != nil {
		respondError(c, h.logger, err, "failed to authorize")
		return
	}

	if err := h.orgs.Delete(ctx, id); err != nil {
		respondError(c, h.logger, err, "failed to delete organization")
		return
	}
	c.Status(http.StatusNoContent)
}

// CascadeDelete removes an organization with everything attached to it and
// reports the external cleanup that failed.
// DELETE /api/v1/organizations/:id/cascade
func (h *OrganizationsHandler) CascadeDelete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	report, err := h.orgs.CascadeDelete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to delete organization")
		return
	}
	if !report.OK() {
		h.logger.Warn().
			Int64("org_id", id).
			Int("failures", len(report.Failures)).
			Msg("cascade delete finished with failures")
	}
	c.JSON(http.StatusOK, report)
}
