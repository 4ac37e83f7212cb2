package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MacJediWizard/orgwarden/internal/httpclient"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// HTTPConfig configures the REST directory client.
type HTTPConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// HTTPClient is a Directory backed by the directory's REST API. Requests are
// authenticated with an OAuth2 client-credentials token when a token URL is
// configured.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

var _ Directory = (*HTTPClient)(nil)

type rolesBody struct {
	Roles []string `json:"roles"`
}

type roleBody struct {
	Name string `json:"name"`
}

type loginsBody struct {
	Logins []string `json:"logins"`
}

// NewHTTPClient creates a REST directory client on top of base.
func NewHTTPClient(cfg HTTPConfig, base *http.Client, logger zerolog.Logger) *HTTPClient {
	client := base
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
		client.Timeout = base.Timeout
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  logger.With().Str("component", "directory").Logger(),
	}
}

func (c *HTTPClient) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// AddRole implements Directory.
func (c *HTTPClient) AddRole(ctx context.Context, role string) error {
	if err := httpclient.DoJSON(ctx, c.client, http.MethodPost, c.url("roles"), roleBody{Name: role}, nil); err != nil {
		return fmt.Errorf("add directory role %s: %w", role, err)
	}
	c.logger.Debug().Str("role", role).Msg("directory role created")
	return nil
}

// DeleteRole implements Directory. A role the directory does not know counts
// as deleted.
func (c *HTTPClient) DeleteRole(ctx context.Context, role string) error {
	err := httpclient.DoJSON(ctx, c.client, http.MethodDelete, c.url("roles", role), nil, nil)
	if err != nil && !httpclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("delete directory role %s: %w", role, err)
	}
	c.logger.Debug().Str("role", role).Msg("directory role deleted")
	return nil
}

// AllRoleNames implements Directory.
func (c *HTTPClient) AllRoleNames(ctx context.Context) (map[string]struct{}, error) {
	var body rolesBody
	if err := httpclient.DoJSON(ctx, c.client, http.MethodGet, c.url("roles"), nil, &body); err != nil {
		return nil, fmt.Errorf("list directory roles: %w", err)
	}
	return Set(body.Roles...), nil
}

// AssignRolesToUser implements Directory.
func (c *HTTPClient) AssignRolesToUser(ctx context.Context, login string, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	err := httpclient.DoJSON(ctx, c.client, http.MethodPost, c.url("users", login, "roles"), rolesBody{Roles: roles}, nil)
	if err != nil {
		return fmt.Errorf("assign directory roles to %s: %w", login, err)
	}
	c.logger.Debug().Str("login", login).Strs("roles", roles).Msg("directory roles assigned")
	return nil
}

// RemoveRolesFromUser implements Directory.
func (c *HTTPClient) RemoveRolesFromUser(ctx context.Context, login string, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	err := httpclient.DoJSON(ctx, c.client, http.MethodDelete, c.url("users", login, "roles"), rolesBody{Roles: roles}, nil)
	if err != nil {
		return fmt.Errorf("remove directory roles from %s: %w", login, err)
	}
	c.logger.Debug().Str("login", login).Strs("roles", roles).Msg("directory roles removed")
	return nil
}

// UserRoles implements Directory.
func (c *HTTPClient) UserRoles(ctx context.Context, login string) (map[string]struct{}, error) {
	var body rolesBody
	if err := httpclient.DoJSON(ctx, c.client, http.MethodGet, c.url("users", login, "roles"), nil, &body); err != nil {
		return nil, fmt.Errorf("get directory roles of %s: %w", login, err)
	}
	return Set(body.Roles...), nil
}

// UsersInRole implements Directory.
func (c *HTTPClient) UsersInRole(ctx context.Context, role string) (map[string]struct{}, error) {
	var body loginsBody
	if err := httpclient.DoJSON(ctx, c.client, http.MethodGet, c.url("roles", role, "users"), nil, &body); err != nil {
		return nil, fmt.Errorf("get directory users in %s: %w", role, err)
	}
	return Set(body.Logins...), nil
}

// UserExists implements Directory.
func (c *HTTPClient) UserExists(ctx context.Context, login string) (bool, error) {
	_, ok, err := c.UserInfo(ctx, login)
	return ok, err
}

// UnblockUser implements Directory.
func (c *HTTPClient) UnblockUser(ctx context.Context, login string) error {
	if err := httpclient.DoJSON(ctx, c.client, http.MethodPost, c.url("users", login, "unblock"), nil, nil); err != nil {
		return fmt.Errorf("unblock directory user %s: %w", login, err)
	}
	return nil
}

// UserInfo implements Directory.
func (c *HTTPClient) UserInfo(ctx context.Context, login string) (*UserInfo, bool, error) {
	var info UserInfo
	err := httpclient.DoJSON(ctx, c.client, http.MethodGet, c.url("users", login), nil, &info)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get directory user %s: %w", login, err)
	}
	return &info, true, nil
}
