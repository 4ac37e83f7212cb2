// Package registry talks to the external asset registry, the system of
// record for devices and their owning organization.
package registry

import (
	"context"

	"github.com/MacJediWizard/orgwarden/internal/models"
)

// Registry is the asset registry contract.
type Registry interface {
	// SearchAssetsByOrganization returns every asset tagged with orgID.
	SearchAssetsByOrganization(ctx context.Context, orgID int64) ([]*models.Asset, error)

	// FindAssetByDeviceID looks up a single asset. The bool is false when
	// the registry has no asset for deviceID.
	FindAssetByDeviceID(ctx context.Context, deviceID string) (*models.Asset, bool, error)

	// SavePatch writes top-level asset fields. A nil value clears the field.
	SavePatch(ctx context.Context, assetID string, patch map[string]any) error

	// SaveProperties writes entries of the asset's free-form property bag.
	// A nil value removes the entry.
	SaveProperties(ctx context.Context, assetID string, props map[string]any) error
}
