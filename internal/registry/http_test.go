package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu      sync.Mutex
	records map[string]map[string]any
	patches []map[string]any
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer reg-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/assets":
		var resp searchResponse
		q := r.URL.Query()
		for id, props := range f.records {
			if v := q.Get("organizationId"); v != "" && jsonNumber(props["organizationId"]) != v {
				continue
			}
			if v := q.Get("deviceId"); v != "" && props["deviceId"] != v {
				continue
			}
			resp.Assets = append(resp.Assets, record{ID: id, Properties: props})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPatch && r.URL.Path == "/assets/a1":
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.patches = append(f.patches, patch)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPut && r.URL.Path == "/assets/a1/properties":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestClient(t *testing.T) (*HTTPClient, *fakeRegistry) {
	t.Helper()
	fake := &fakeRegistry{records: map[string]map[string]any{
		"a1": {"deviceId": "dev-1", "organizationId": 5, "name": "Pump"},
		"a2": {"deviceId": "dev-2", "organizationId": 6},
		"a3": {"deviceId": "dev-3"},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "reg-token", &http.Client{Timeout: 5 * time.Second}, zerolog.Nop()), fake
}

func TestHTTPClient_Search(t *testing.T) {
	c, _ := newTestClient(t)

	assets, err := c.SearchAssetsByOrganization(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "a1", assets[0].ID)
	assert.Equal(t, "Pump", assets[0].Name)
	assert.True(t, assets[0].OwnedBy(5))
}

func TestHTTPClient_FindAssetByDeviceID(t *testing.T) {
	c, _ := newTestClient(t)

	a, ok, err := c.FindAssetByDeviceID(context.Background(), "dev-3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a3", a.ID)
	assert.Nil(t, a.OrganizationID)

	_, ok, err = c.FindAssetByDeviceID(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPClient_Save(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SavePatch(ctx, "a1", map[string]any{"organizationId": nil}))
	require.NoError(t, c.SaveProperties(ctx, "a1", map[string]any{"color": nil}))
	require.Error(t, c.SavePatch(ctx, "unknown", map[string]any{"name": "x"}))

	require.Len(t, fake.patches, 1)
	v, present := fake.patches[0]["organizationId"]
	assert.True(t, present)
	assert.Nil(t, v)
}
