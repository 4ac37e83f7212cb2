package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MacJediWizard/orgwarden/internal/models"
)

// Memory is an in-process Registry for standalone mode and tests.
type Memory struct {
	mu     sync.Mutex
	assets map[string]*models.Asset

	// FailOn makes the named operation return an error, for tests.
	FailOn map[string]error
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an empty registry.
func NewMemory() *Memory {
	return &Memory{
		assets: make(map[string]*models.Asset),
		FailOn: make(map[string]error),
	}
}

// Put stores a copy of asset, replacing any asset with the same ID.
func (m *Memory) Put(asset *models.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = cloneAsset(asset)
}

// Get returns a copy of the asset with the given ID.
func (m *Memory) Get(assetID string) (*models.Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return nil, false
	}
	return cloneAsset(a), true
}

// SearchAssetsByOrganization implements Registry. Results are ordered by ID.
func (m *Memory) SearchAssetsByOrganization(ctx context.Context, orgID int64) ([]*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailOn["SearchAssetsByOrganization"]; err != nil {
		return nil, err
	}
	var out []*models.Asset
	for _, a := range m.assets {
		if a.OwnedBy(orgID) {
			out = append(out, cloneAsset(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindAssetByDeviceID implements Registry.
func (m *Memory) FindAssetByDeviceID(ctx context.Context, deviceID string) (*models.Asset, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailOn["FindAssetByDeviceID"]; err != nil {
		return nil, false, err
	}
	for _, a := range m.assets {
		if a.DeviceID == deviceID {
			return cloneAsset(a), true, nil
		}
	}
	return nil, false, nil
}

// SavePatch implements Registry.
func (m *Memory) SavePatch(ctx context.Context, assetID string, patch map[string]any) error {
	return m.apply("SavePatch", assetID, patch)
}

// SaveProperties implements Registry.
func (m *Memory) SaveProperties(ctx context.Context, assetID string, props map[string]any) error {
	return m.apply("SaveProperties", assetID, props)
}

func (m *Memory) apply(op, assetID string, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailOn[op]; err != nil {
		return err
	}
	a, ok := m.assets[assetID]
	if !ok {
		return fmt.Errorf("asset %s not found", assetID)
	}
	next := cloneAsset(a)
	for k, v := range values {
		if err := next.SetProperty(k, v); err != nil {
			return fmt.Errorf("asset %s: %w", assetID, err)
		}
	}
	m.assets[assetID] = next
	return nil
}

func cloneAsset(a *models.Asset) *models.Asset {
	c := *a
	if a.OrganizationID != nil {
		id := *a.OrganizationID
		c.OrganizationID = &id
	}
	if a.Extra != nil {
		c.Extra = make(map[string]any, len(a.Extra))
		for k, v := range a.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
