package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/assets"
	"github.com/MacJediWizard/orgwarden/internal/auth"
	"github.com/MacJediWizard/orgwarden/internal/callbacks"
	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/MacJediWizard/orgwarden/internal/directory"
	"github.com/MacJediWizard/orgwarden/internal/events"
	"github.com/MacJediWizard/orgwarden/internal/invites"
	"github.com/MacJediWizard/orgwarden/internal/mail"
	"github.com/MacJediWizard/orgwarden/internal/membership"
	"github.com/MacJediWizard/orgwarden/internal/metrics"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/naming"
	"github.com/MacJediWizard/orgwarden/internal/orgs"
	"github.com/MacJediWizard/orgwarden/internal/registry"
	"github.com/MacJediWizard/orgwarden/internal/store/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokens = "root-token=root:ROLE_ADMIN;alice-token=alice@example.com:;bob-token=bob@example.com:"

type testServer struct {
	router *Router
	store  *memory.Store
	reg    *registry.Memory
	mailer *mail.Recorder
	cb     *callbacks.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()

	promReg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheusMetrics(promReg)
	require.NoError(t, err)

	renderer, err := mail.NewRenderer()
	require.NoError(t, err)

	ts := &testServer{
		store:  memory.New(),
		reg:    registry.NewMemory(),
		mailer: mail.NewRecorder(renderer, logger),
		cb:     callbacks.NewRecorder(),
	}
	dir := directory.NewMemory()
	dir.AutoProvision = true

	bus := events.NewBus(m, logger)
	assetSvc := assets.NewService(ts.reg, nil, ts.cb, logger)
	assetSvc.Subscribe(bus)

	members := membership.NewService(ts.store, dir, ts.cb, membership.Config{Namer: naming.Default, DefaultInviteLanguage: "en"}, logger)
	inviteSvc := invites.NewService(ts.store, dir, ts.cb, ts.mailer, members, invites.Config{
		AcceptKeyMaxAge: time.Hour,
		DefaultLanguage: "en",
		BaseURL:         "https://orgs.example.com",
	}, logger)
	orgSvc := orgs.NewService(ts.store, dir, ts.cb, assetSvc, bus, orgs.Config{
		Namer:           naming.Default,
		SystemAdminRole: "ROLE_ADMIN",
	}, logger)

	verifier, err := auth.ParseStaticTokens(testTokens, logger)
	require.NoError(t, err)

	ts.router, err = NewRouter(Config{
		Environment: config.EnvDevelopment,
		RateLimit:   config.RateLimitConfig{Requests: 1000, Period: time.Minute},
		Version:     "test",
	}, Services{
		Organizations: orgSvc,
		Members:       members,
		Invitations:   inviteSvc,
		Devices:       assetSvc,
		Lookup:        ts.store,
	}, Dependencies{
		Verifier:   verifier,
		Authorizer: auth.NewAuthorizer(ts.store, "ROLE_ADMIN"),
		Metrics:    m,
		Gatherer:   promReg,
	}, logger)
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.Engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createOrg creates "Acme" as alice and returns its id.
func (ts *testServer) createOrg(t *testing.T) int64 {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/organizations", "alice-token", map[string]any{
		"name":          "Acme",
		"contact_email": "ops@acme.example",
		"logo":          "https://cdn.example.com/acme.png",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	org := decode[struct {
		ID      int64  `json:"id"`
		Role    string `json:"role"`
		LogoURL string `json:"logo_url"`
	}](t, w)
	assert.Equal(t, "ROLE_ACME_ADMIN", org.Role)
	assert.Equal(t, "https://cdn.example.com/acme.png", org.LogoURL)
	return org.ID
}

func TestRouter_Authentication(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/organizations", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/organizations", "forged", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/organizations", "bob-token", nil).Code)
}

func TestRouter_Organizations(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createOrg(t)
	path := fmt.Sprintf("/api/v1/organizations/%d", id)

	t.Run("visibility", func(t *testing.T) {
		type list struct {
			Organizations []map[string]any `json:"organizations"`
		}
		assert.Len(t, decode[list](t, ts.do(t, http.MethodGet, "/api/v1/organizations", "alice-token", nil)).Organizations, 1)
		assert.Len(t, decode[list](t, ts.do(t, http.MethodGet, "/api/v1/organizations", "bob-token", nil)).Organizations, 0)
		assert.Len(t, decode[list](t, ts.do(t, http.MethodGet, "/api/v1/organizations", "root-token", nil)).Organizations, 1)

		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, path, "alice-token", nil).Code)
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, path, "bob-token", nil).Code)
		// only system admins learn that an organization does not exist
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/v1/organizations/999", "alice-token", nil).Code)
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/v1/organizations/999", "bob-token", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/organizations/999", "root-token", nil).Code)
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/organizations/abc", "alice-token", nil).Code)
	})

	t.Run("create conflicts", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/organizations", "root-token", map[string]any{"name": "Acme"})
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

		w = ts.do(t, http.MethodPost, "/api/v1/organizations", "root-token", map[string]any{"name": "Other", "role": "ROLE_X"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = ts.do(t, http.MethodPost, "/api/v1/organizations", "root-token", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, path, "alice-token", map[string]any{"name": "Acme", "contact_name": "Ada"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "Ada", decode[map[string]any](t, w)["contact_name"])

		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPut, path, "bob-token", map[string]any{"name": "Mine"}).Code)
	})

	t.Run("guarded delete refuses non-empty organization", func(t *testing.T) {
		w := ts.do(t, http.MethodDelete, path, "alice-token", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})

	t.Run("cascade delete needs system admin", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, path+"/cascade", "alice-token", nil).Code)

		w := ts.do(t, http.MethodDelete, path+"/cascade", "root-token", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		report := decode[orgs.CascadeReport](t, w)
		assert.Equal(t, id, report.OrganizationID)
		assert.Equal(t, 1, report.DeletedUsers)
		assert.True(t, report.OK())

		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, path, "root-token", nil).Code)
	})
}

func TestRouter_MembersAndInvitations(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createOrg(t)
	orgPath := fmt.Sprintf("/api/v1/organizations/%d", id)

	w := ts.do(t, http.MethodPost, orgPath+"/users", "alice-token", map[string]any{
		"users": []map[string]any{{"login": "Carol@Example.com", "invite_language": "de-DE"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[struct {
		Users []models.User `json:"users"`
	}](t, w).Users
	require.Len(t, added, 1)
	carol := added[0]
	assert.Equal(t, "carol@example.com", carol.Login)
	assert.Equal(t, models.UserStatusCreated, carol.Status)
	userPath := fmt.Sprintf("/api/v1/users/%d", carol.ID)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, orgPath+"/users", "bob-token", map[string]any{
		"users": []map[string]any{{"login": "mallory@example.com"}},
	}).Code)

	w = ts.do(t, http.MethodPost, orgPath+"/roles", "alice-token", map[string]any{
		"roles": []map[string]any{{"name": "Operators"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	roles := decode[struct {
		Roles []models.Role `json:"roles"`
	}](t, w).Roles
	require.Len(t, roles, 1)
	role := roles[0]
	assert.Equal(t, fmt.Sprintf("ROLE_ACME_%d", role.ID), role.Role)

	w = ts.do(t, http.MethodGet, orgPath+"/users", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]any](t, w)["users"], 2)

	t.Run("link and unlink roles", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, userPath+"/roles", "alice-token", map[string]any{"role_ids": []int64{role.ID}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, []string{role.Role}, decode[*models.User](t, w).RoleIdentifiers())

		w = ts.do(t, http.MethodDelete, userPath+"/roles", "alice-token", map[string]any{"role_ids": []int64{role.ID}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Empty(t, decode[*models.User](t, w).Roles)
	})

	t.Run("admin flag", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, userPath+"/admin", "alice-token", map[string]any{}).Code)
		w := ts.do(t, http.MethodPut, userPath+"/admin", "alice-token", map[string]any{"is_admin": true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, decode[*models.User](t, w).IsAdmin)
	})

	t.Run("invite, preview and accept", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, userPath+"/invite", "alice-token", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotContains(t, w.Body.String(), `"key"`)
		require.Len(t, ts.mailer.Sent(), 1)

		stored, err := ts.store.GetUser(context.Background(), carol.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.AcceptKey)
		key := stored.AcceptKey.Key

		w = ts.do(t, http.MethodGet, "/api/v1/invitations/"+key, "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		inv := decode[invites.Invitation](t, w)
		assert.Equal(t, "carol@example.com", inv.Login)
		assert.Equal(t, "Acme", inv.OrganizationName)

		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/invitations/wrong", "", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/v1/invitations/accept", "",
			map[string]any{"user_id": carol.ID, "key": "wrong"}).Code)
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/v1/invitations/accept", "",
			map[string]any{"key": key}).Code)

		// Invite links carry the parameters in the query string.
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/invitations/accept?key=%s&user=%d", key, carol.ID), nil)
		w = httptest.NewRecorder()
		ts.router.Engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, map[string]string{"status": "accepted"}, decode[map[string]string](t, w))
		assert.Contains(t, ts.cb.Events(), callbacks.EventUserAccepted)

		stored, err = ts.store.GetUser(context.Background(), carol.ID)
		require.NoError(t, err)
		assert.Equal(t, models.UserStatusAccepted, stored.Status)
	})

	t.Run("anonymous accept never describes the user", func(t *testing.T) {
		unknown := ts.do(t, http.MethodPost, "/api/v1/invitations/accept", "", map[string]any{"user_id": 999999, "key": "guess"})
		wrongKey := ts.do(t, http.MethodPost, "/api/v1/invitations/accept", "", map[string]any{"user_id": carol.ID, "key": "guess"})
		accepted := ts.do(t, http.MethodPost, "/api/v1/invitations/accept", "", map[string]any{"user_id": carol.ID, "key": "another"})

		for _, w := range []*httptest.ResponseRecorder{unknown, wrongKey, accepted} {
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, unknown.Body.String(), w.Body.String())
			for _, field := range []string{"login", "organization_id", "roles", "is_admin", "status"} {
				assert.NotContains(t, w.Body.String(), `"`+field+`"`)
			}
		}
	})

	t.Run("member reads but does not manage", func(t *testing.T) {
		_, err := ts.store.GetUserByLogin(context.Background(), "bob@example.com")
		require.Error(t, err)

		w := ts.do(t, http.MethodPost, orgPath+"/users", "alice-token", map[string]any{
			"users": []map[string]any{{"login": "bob@example.com"}},
		})
		require.Equal(t, http.StatusCreated, w.Code)
		bob := decode[struct {
			Users []models.User `json:"users"`
		}](t, w).Users[0]
		bob.Status = models.UserStatusAccepted
		require.NoError(t, ts.store.UpdateUser(context.Background(), &bob))

		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, orgPath+"/roles", "bob-token", nil).Code)
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, orgPath+"/roles", "bob-token",
			map[string]any{"roles": []map[string]any{{"name": "Rogue"}}}).Code)
	})

	t.Run("delete role and user", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/roles/%d", role.ID), "alice-token", nil).Code)
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/roles/%d", role.ID), "alice-token", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/roles/%d", role.ID), "root-token", nil).Code)

		assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, userPath, "alice-token", nil).Code)
		assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, userPath, "alice-token", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, userPath, "root-token", nil).Code)
	})
}

func TestRouter_UnknownResourcesForbiddenBeforeLookup(t *testing.T) {
	ts := newTestServer(t)
	ts.createOrg(t)

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/organizations/4242", nil},
		{http.MethodPut, "/api/v1/organizations/4242", map[string]any{"name": "Taken"}},
		{http.MethodDelete, "/api/v1/organizations/4242", nil},
		{http.MethodGet, "/api/v1/organizations/4242/users", nil},
		{http.MethodPost, "/api/v1/organizations/4242/roles", map[string]any{"roles": []map[string]any{{"name": "Ops"}}}},
		{http.MethodGet, "/api/v1/organizations/4242/devices", nil},
		{http.MethodGet, "/api/v1/users/4242", nil},
		{http.MethodPut, "/api/v1/users/4242/admin", map[string]any{"is_admin": true}},
		{http.MethodPost, "/api/v1/users/4242/invite", nil},
		{http.MethodDelete, "/api/v1/roles/4242", nil},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := ts.do(t, p.method, p.path, "bob-token", p.body)
			assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
			assert.Equal(t, http.StatusUnauthorized, ts.do(t, p.method, p.path, "", p.body).Code)
		})
	}
}

func TestRouter_Decline(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createOrg(t)

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/organizations/%d/users", id), "alice-token", map[string]any{
		"users": []map[string]any{{"login": "dave@example.com"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	dave := decode[struct {
		Users []models.User `json:"users"`
	}](t, w).Users[0]

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/invite", dave.ID), "alice-token", nil).Code)
	stored, err := ts.store.GetUser(context.Background(), dave.ID)
	require.NoError(t, err)

	w = ts.do(t, http.MethodPost, "/api/v1/invitations/decline", "", map[string]any{"user_id": dave.ID, "key": stored.AcceptKey.Key})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	_, err = ts.store.GetUser(context.Background(), dave.ID)
	assert.Error(t, err)
}

func TestRouter_Devices(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createOrg(t)
	other := int64(4242)
	ts.reg.Put(&models.Asset{ID: "a-1", DeviceID: "dev-1", Name: "Pump"})
	ts.reg.Put(&models.Asset{ID: "a-2", DeviceID: "dev-2", OrganizationID: &other})

	base := fmt.Sprintf("/api/v1/organizations/%d/devices", id)

	w := ts.do(t, http.MethodPost, base+"/dev-1", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/dev-1", "alice-token", nil).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, base+"/dev-2", "alice-token", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, base+"/dev-404", "alice-token", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, base+"/dev-1", "bob-token", nil).Code)

	w = ts.do(t, http.MethodGet, base, "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	devices := decode[struct {
		Devices []models.Asset `json:"devices"`
	}](t, w).Devices
	require.Len(t, devices, 1)
	assert.Equal(t, "dev-1", devices[0].DeviceID)

	w = ts.do(t, http.MethodPatch, base+"/dev-1", "alice-token", map[string]any{"location": "Hall 3", "color": "red"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, ok := ts.reg.Get("a-1")
	require.True(t, ok)
	assert.Equal(t, "Hall 3", stored.Location)
	assert.Equal(t, "red", stored.Extra["color"])

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPatch, base+"/dev-1", "alice-token", map[string]any{"organizationId": other}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPatch, base+"/dev-2", "alice-token", map[string]any{"name": "x"}).Code)

	w = ts.do(t, http.MethodGet, base+"/dev-1", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hall 3", decode[models.Asset](t, w).Location)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, base+"/dev-2", "alice-token", nil).Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, base+"/dev-1", "alice-token", nil).Code)
	stored, _ = ts.reg.Get("a-1")
	assert.Nil(t, stored.OrganizationID)
	assert.Contains(t, ts.cb.Events(), callbacks.EventDeviceRemoved)
}

func TestRouter_Operational(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", decode[map[string]any](t, w)["version"])

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "orgwarden_http_requests_total"), w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
