package registry

import (
	"context"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/metrics"
	"github.com/MacJediWizard/orgwarden/internal/models"
)

const system = "registry"

// Instrumented records call counts and latency of the wrapped Registry.
type Instrumented struct {
	next    Registry
	metrics *metrics.Metrics
}

var _ Registry = (*Instrumented)(nil)

// NewInstrumented wraps next.
func NewInstrumented(next Registry, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

// SearchAssetsByOrganization implements Registry.
func (r *Instrumented) SearchAssetsByOrganization(ctx context.Context, orgID int64) (_ []*models.Asset, err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "search_by_organization", start, err) }(time.Now())
	return r.next.SearchAssetsByOrganization(ctx, orgID)
}

// FindAssetByDeviceID implements Registry.
func (r *Instrumented) FindAssetByDeviceID(ctx context.Context, deviceID string) (_ *models.Asset, _ bool, err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "find_by_device", start, err) }(time.Now())
	return r.next.FindAssetByDeviceID(ctx, deviceID)
}

// SavePatch implements Registry.
func (r *Instrumented) SavePatch(ctx context.Context, assetID string, patch map[string]any) (err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "save_patch", start, err) }(time.Now())
	return r.next.SavePatch(ctx, assetID, patch)
}

// SaveProperties implements Registry.
func (r *Instrumented) SaveProperties(ctx context.Context, assetID string, props map[string]any) (err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "save_properties", start, err) }(time.Now())
	return r.next.SaveProperties(ctx, assetID, props)
}
