package handlers

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/orgwarden/internal/api/middleware"
	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/MacJediWizard/orgwarden/internal/membership"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MembershipService defines the user and role operations the handler needs.
type MembershipService interface {
	AddUsers(ctx context.Context, orgID int64, users []*models.User) ([]*models.User, error)
	AddRoles(ctx context.Context, orgID int64, roles []*models.Role) ([]*models.Role, error)
	LinkUserRoles(ctx context.Context, userID int64, roles []*models.Role) (*models.User, error)
	UnlinkUserRoles(ctx context.Context, userID int64, roleIDs []int64) (*models.User, error)
	DeleteRole(ctx context.Context, roleID int64) error
	DeleteUser(ctx context.Context, userID int64) error
	Profile(ctx context.Context, userID int64) (*membership.Profile, error)
	SetAdmin(ctx context.Context, userID int64, isAdmin bool) (*models.User, error)
}

// Inviter sends and resends invitations.
type Inviter interface {
	Invite(ctx context.Context, actor models.Principal, userID int64) (*models.User, error)
}

// MemberLookup resolves the organization a user or role belongs to.
type MemberLookup interface {
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetRole(ctx context.Context, id int64) (*models.Role, error)
}

var _ MembershipService = (*membership.Service)(nil)

// MembersHandler handles user and role endpoints.
type MembersHandler struct {
	members MembershipService
	invites Inviter
	lookup  MemberLookup
	authz   *auth.Authorizer
	logger  zerolog.Logger
}

// NewMembersHandler creates a new MembersHandler.
func NewMembersHandler(members MembershipService, invites Inviter, lookup MemberLookup, authz *auth.Authorizer, logger zerolog.Logger) *MembersHandler {
	return &MembersHandler{
		members: members,
		invites: invites,
		lookup:  lookup,
		authz:   authz,
		logger:  logger.With().Str("component", "members_handler").Logger(),
	}
}

// RegisterRoutes registers user and role routes.
func (h *MembersHandler) RegisterRoutes(r *gin.RouterGroup) {
	o := r.Group("/organizations/:id")
	{
		o.GET("/users", h.ListUsers)
		o.POST("/users", h.AddUsers)
		o.GET("/roles", h.ListRoles)
		o.POST("/roles", h.AddRoles)
	}

	u := r.Group("/users/:id")
	{
		u.GET("", h.Profile)
		u.DELETE("", h.DeleteUser)
		u.PUT("/admin", h.SetAdmin)
		u.POST("/roles", h.LinkRoles)
		u.DELETE("/roles", h.UnlinkRoles)
		u.POST("/invite", h.Invite)
	}

	r.DELETE("/roles/:id", h.DeleteRole)
}

// AddUsersRequest is the request body for adding users to an organization.
type AddUsersRequest struct {
	Users []UserRequest `json:"users" binding:"required,min=1,dive"`
}

// UserRequest describes one user to add. An empty language selects the
// configured default.
type UserRequest struct {
	Login          string `json:"login" binding:"required"`
	InviteLanguage string `json:"invite_language,omitempty"`
}

// AddRolesRequest is the request body for adding custom roles.
type AddRolesRequest struct {
	Roles []RoleRequest `json:"roles" binding:"required,min=1,dive"`
}

// RoleRequest describes one role to add.
type RoleRequest struct {
	Name string `json:"name" binding:"required"`
}

// RoleIDsRequest is the request body for linking and unlinking roles.
type RoleIDsRequest struct {
	RoleIDs []int64 `json:"role_ids" binding:"required,min=1"`
}

// SetAdminRequest is the request body for changing the admin flag.
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

// authorizeOrg checks perm in the organization named by the :id parameter.
func (h *MembersHandler) authorizeOrg(c *gin.Context, perm auth.Permission) (int64, bool) {
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

// authorizeUser checks perm in the organization of the user named by :id.
func (h *MembersHandler) authorizeUser(c *gin.Context, perm auth.Permission) (int64, bool) {
	userID, ok := pathID(c, "id")
	if !ok {
		return 0, false
	}
	p := middleware.PrincipalFrom(c)
	if p.Anonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return 0, false
	}
	user, err := h.lookup.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, h.authz.Conceal(p, err, perm), "failed to get user")
		return 0, false
	}
	if err := h.authz.Authorize(c.Request.Context(), p, user.OrganizationID, perm); err != nil {
		respondError(c, h.logger, err, "failed to authorize")
		return 0, false
	}
	return userID, true
}

// ListUsers returns the users of an organization.
// GET /api/v1/organizations/:id/users
func (h *MembersHandler) ListUsers(c *gin.Context) {
	orgID, ok := h.authorizeOrg(c, auth.PermMemberRead)
	if !ok {
		return
	}
	org, err := h.lookup.GetOrganization(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, h.logger, err, "failed to list users")
		return
	}
	users := org.Users
	if users == nil {
		users = []*models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// AddUsers adds users in state CREATED.
// POST /api/v1/organizations/:id/users
func (h *MembersHandler) AddUsers(c *gin.Context) {
	orgID, ok := h.authorizeOrg(c, auth.PermMemberManage)
	if !ok {
		return
	}

	var req AddUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	users := make([]*models.User, 0, len(req.Users))
	for _, u := range req.Users {
		users = append(users, models.NewUser(u.Login, u.InviteLanguage))
	}

	added, err := h.members.AddUsers(c.Request.Context(), orgID, users)
	if err != nil {
		respondError(c, h.logger, err, "failed to add users")
		return
	}
	if added == nil {
		added = []*models.User{}
	}
	c.JSON(http.StatusCreated, gin.H{"users": added})
}

// ListRoles returns the custom roles of an organization.
// GET /api/v1/organizations/:id/roles
func (h *MembersHandler) ListRoles(c *gin.Context) {
	orgID, ok := h.authorizeOrg(c, auth.PermMemberRead)
	if !ok {
		return
	}
	org, err := h.lookup.GetOrganization(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, h.logger, err, "failed to list roles")
		return
	}
	roles := org.Roles
	if roles == nil {
		roles = []*models.Role{}
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// AddRoles creates custom roles and provisions them in the directory.
// POST /api/v1/organizations/:id/roles
func (h *MembersHandler) AddRoles(c *gin.Context) {
	orgID, ok := h.authorizeOrg(c, auth.PermMemberManage)
	if !ok {
		return
	}

	var req AddRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	roles := make([]*models.Role, 0, len(req.Roles))
	for _, r := range req.Roles {
		roles = append(roles, &models.Role{Name: r.Name})
	}
	added, err := h.members.AddRoles(c.Request.Context(), orgID, roles)
	if err != nil {
		respondError(c, h.logger, err, "failed to add roles")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"roles": added})
}

// Profile returns a user with its directory profile.
// GET /api/v1/users/:id
func (h *MembersHandler) Profile(c *gin.Context) {
	userID, ok := h.authorizeUser(c, auth.PermMemberRead)
	if !ok {
		return
	}
	profile, err := h.members.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to get user")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteUser removes a user from its organization and the directory.
// DELETE /api/v1/users/:id
func (h *MembersHandler) DeleteUser(c *gin.Context) {
	userID, ok := h.authorizeUser(c, auth.PermMemberManage)
	if !ok {
		return
	}
	if err := h.members.DeleteUser(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, err, "failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

// SetAdmin grants or revokes the organization admin flag.
// PUT /api/v1/users/:id/admin
func (h *MembersHandler) SetAdmin(c *gin.Context) {
	userID, ok := h.authorizeUser(c, auth.PermMemberManage)
	if !ok {
		return
	}

	var req SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	user, err := h.members.SetAdmin(c.Request.Context(), userID, *req.IsAdmin)
	if err != nil {
		respondError(c, h.logger, err, "failed to update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// LinkRoles assigns roles to a user.
// POST /api/v1/users/:id/roles
func (h *MembersHandler) LinkRoles(c *gin.Context) {
	userID, ok := h.authorizeUser(c, auth.PermMemberManage)
	if !ok {
		return
	}

	var req RoleIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	roles := make([]*models.Role, 0, len(req.RoleIDs))
	for _, id := range req.RoleIDs {
		roles = append(roles, &models.Role{ID: id})
	}
	user, err := h.members.LinkUserRoles(c.Request.Context(), userID, roles)
	if err != nil {
		respondError(c, h.logger, err, "failed to link roles")
		return
	}
	c.JSON(http.StatusOK, user)
}

// UnlinkRoles removes roles from a user.
// DELETE /api/v1/users/:id/roles
func (h *MembersHandler) UnlinkRoles(c *gin.Context) {
	userID, ok := h.authorizeUser(c, auth.PermMemberManage)
	if !ok {
		return
	}

	var req RoleIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	user, err := h.members.UnlinkUserRoles(c.Request.Context(), userID, req.RoleIDs)
	if err != nil {
		respondError(c, h.logger, err, "failed to unlink roles")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Invite sends the invitation mail, or resends it with a fresh key.
// POST /api/v1/users/:id/invite
func (h *MembersHandler) Invite(c *gin.Context) {
	userID, ok := h.authorizeUser(c, auth.PermMemberInvite)
	if !ok {
		return
	}
	user, err := h.invites.Invite(c.Request.Context(), middleware.PrincipalFrom(c), userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to send invitation")
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteRole removes a custom role everywhere.
// DELETE /api/v1/roles/:id
func (h *MembersHandler) DeleteRole(c *gin.Context) {
	roleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	p := middleware.PrincipalFrom(c)
	if p.Anonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	ctx := c.Request.Context()

	role, err := h.lookup.GetRole(ctx, roleID)
	if err != nil {
		respondError(c, h.logger, h.authz.Conceal(p, err, auth.PermMemberManage), "failed to get role")
		return
	}
	if err := h.authz.Authorize(ctx, p, role.OrganizationID, auth.PermMemberManage); err != nil {
		respondError(c, h.logger, err, "failed to authorize")
		return
	}
	if err := h.members.DeleteRole(ctx, roleID); err != nil {
		respondError(c, h.logger, err, "failed to delete role")
		return
	}
	c.Status(http.StatusNoContent)
}
