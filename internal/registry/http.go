package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MacJediWizard/orgwarden/internal/httpclient"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/rs/zerolog"
)

// record is the registry's wire representation of an asset.
type record struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

type searchResponse struct {
	Assets []record `json:"assets"`
}

// HTTPClient is a Registry backed by the registry's REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

var _ Registry = (*HTTPClient)(nil)

// NewHTTPClient creates a registry client. A non-empty token is sent as a
// bearer token.
func NewHTTPClient(baseURL, token string, client *http.Client, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

func (c *HTTPClient) opts() []httpclient.RequestOption {
	if c.token == "" {
		return nil
	}
	return []httpclient.RequestOption{httpclient.WithHeader("Authorization", "Bearer "+c.token)}
}

func (c *HTTPClient) search(ctx context.Context, query url.Values) ([]*models.Asset, error) {
	var resp searchResponse
	u := c.baseURL + "/assets?" + query.Encode()
	if err := httpclient.DoJSON(ctx, c.client, http.MethodGet, u, nil, &resp, c.opts()...); err != nil {
		return nil, err
	}
	assets := make([]*models.Asset, 0, len(resp.Assets))
	for _, r := range resp.Assets {
		a, err := models.AssetFromProperties(r.ID, r.Properties)
		if err != nil {
			return nil, fmt.Errorf("decode asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// SearchAssetsByOrganization implements Registry.
func (c *HTTPClient) SearchAssetsByOrganization(ctx context.Context, orgID int64) ([]*models.Asset, error) {
	q := url.Values{models.AssetPropertyOrganizationID: {strconv.FormatInt(orgID, 10)}}
	assets, err := c.search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search assets of organization %d: %w", orgID, err)
	}
	return assets, nil
}

// FindAssetByDeviceID implements Registry.
func (c *HTTPClient) FindAssetByDeviceID(ctx context.Context, deviceID string) (*models.Asset, bool, error) {
	assets, err := c.search(ctx, url.Values{models.AssetPropertyDeviceID: {deviceID}})
	if err != nil {
		return nil, false, fmt.Errorf("find asset of device %s: %w", deviceID, err)
	}
	if len(assets) == 0 {
		return nil, false, nil
	}
	if len(assets) > 1 {
		c.logger.Warn().Str("device_id", deviceID).Int("matches", len(assets)).Msg("device id matches several assets")
	}
	return assets[0], true, nil
}

// SavePatch implements Registry.
func (c *HTTPClient) SavePatch(ctx context.Context, assetID string, patch map[string]any) error {
	u := c.baseURL + "/assets/" + url.PathEscape(assetID)
	if err := httpclient.DoJSON(ctx, c.client, http.MethodPatch, u, patch, nil, c.opts()...); err != nil {
		return fmt.Errorf("patch asset %s: %w", assetID, err)
	}
	return nil
}

// SaveProperties implements Registry.
func (c *HTTPClient) SaveProperties(ctx context.Context, assetID string, props map[string]any) error {
	u := c.baseURL + "/assets/" + url.PathEscape(assetID) + "/properties"
	if err := httpclient.DoJSON(ctx, c.client, http.MethodPut, u, props, nil, c.opts()...); err != nil {
		return fmt.Errorf("save properties of asset %s: %w", assetID, err)
	}
	return nil
}
