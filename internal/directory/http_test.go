package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory is a minimal REST directory that requires a bearer token.
type fakeDirectory struct {
	mu        sync.Mutex
	roles     map[string]struct{}
	userRoles map[string]map[string]struct{}
	unblocked map[string]bool
	tokens    int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		roles:     map[string]struct{}{},
		userRoles: map[string]map[string]struct{}{"alice": {}},
		unblocked: map[string]bool{},
	}
}

func (f *fakeDirectory) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokens++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"secret-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case parts[0] == "roles" && len(parts) == 1 && r.Method == http.MethodPost:
			var body roleBody
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.roles[body.Name] = struct{}{}
			w.WriteHeader(http.StatusCreated)
		case parts[0] == "roles" && len(parts) == 1 && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(rolesBody{Roles: Sorted(f.roles)})
		case parts[0] == "roles" && len(parts) == 2 && r.Method == http.MethodDelete:
			if _, ok := f.roles[parts[1]]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(f.roles, parts[1])
			w.WriteHeader(http.StatusNoContent)
		case parts[0] == "users" && len(parts) == 2 && r.Method == http.MethodGet:
			if _, ok := f.userRoles[parts[1]]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(UserInfo{Email: parts[1] + "@example.com", FirstName: "Alice"})
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "roles":
			var body rolesBody
			if r.Method != http.MethodGet {
				_ = json.NewDecoder(r.Body).Decode(&body)
			}
			switch r.Method {
			case http.MethodPost:
				for _, role := range body.Roles {
					f.userRoles[parts[1]][role] = struct{}{}
				}
				w.WriteHeader(http.StatusNoContent)
			case http.MethodDelete:
				for _, role := range body.Roles {
					delete(f.userRoles[parts[1]], role)
				}
				w.WriteHeader(http.StatusNoContent)
			default:
				_ = json.NewEncoder(w).Encode(rolesBody{Roles: Sorted(f.userRoles[parts[1]])})
			}
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "unblock":
			f.unblocked[parts[1]] = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})
	return mux
}

func newTestClient(t *testing.T) (*HTTPClient, *fakeDirectory) {
	t.Helper()
	fake := newFakeDirectory()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c := NewHTTPClient(HTTPConfig{
		BaseURL:      srv.URL + "/api/",
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "orgwarden",
		ClientSecret: "s3cret",
	}, &http.Client{Timeout: 5 * time.Second}, zerolog.Nop())
	return c, fake
}

func TestHTTPClient_RoleLifecycle(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	require.NoError(t, c.AddRole(ctx, "ROLE_ACME_ADMIN"))
	roles, err := c.AllRoleNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, roles, "ROLE_ACME_ADMIN")

	require.NoError(t, c.AssignRolesToUser(ctx, "alice", []string{"ROLE_ACME_ADMIN"}))
	userRoles, err := c.UserRoles(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ACME_ADMIN"}, Sorted(userRoles))

	require.NoError(t, c.RemoveRolesFromUser(ctx, "alice", []string{"ROLE_ACME_ADMIN"}))
	userRoles, err = c.UserRoles(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, userRoles)

	require.NoError(t, c.DeleteRole(ctx, "ROLE_ACME_ADMIN"))
	require.NoError(t, c.DeleteRole(ctx, "ROLE_ACME_ADMIN"), "unknown role counts as deleted")

	assert.Equal(t, 1, fake.tokens, "token must be cached across calls")
}

func TestHTTPClient_Users(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	exists, err := c.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.UserExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)

	info, ok, err := c.UserInfo(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", info.Email)

	require.NoError(t, c.UnblockUser(ctx, "alice"))
	assert.True(t, fake.unblocked["alice"])
}

func TestHTTPClient_EmptyRoleListsSkipTheCall(t *testing.T) {
	c := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1"}, &http.Client{Timeout: time.Second}, zerolog.Nop())
	assert.NoError(t, c.AssignRolesToUser(context.Background(), "alice", nil))
	assert.NoError(t, c.RemoveRolesFromUser(context.Background(), "alice", []string{}))
}
