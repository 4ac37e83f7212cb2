package assets

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/registry"
)

// OwnedAssets iterates the assets of one organization. It queries the
// registry on the first Next and can be consumed once.
//
//	owned := svc.ListOwned(ctx, orgID)
//	for owned.Next() {
//		use(owned.Asset())
//	}
//	if err := owned.Err(); err != nil { ... }
type OwnedAssets struct {
	ctx      context.Context
	registry registry.Registry
	orgID    int64

	loaded  bool
	assets  []*models.Asset
	current *models.Asset
	err     error
}

// Next advances to the next asset. It returns false once the assets are
// exhausted or the query failed, and keeps returning false afterwards.
func (o *OwnedAssets) Next() bool {
	if !o.loaded {
		o.loaded = true
		assets, err := o.registry.SearchAssetsByOrganization(o.ctx, o.orgID)
		if err != nil {
			o.err = fmt.Errorf("list assets of organization %d: %w", o.orgID, err)
			return false
		}
		o.assets = assets
	}
	for len(o.assets) > 0 {
		a := o.assets[0]
		o.assets = o.assets[1:]
		// skip results the registry matched loosely
		if a.OwnedBy(o.orgID) {
			o.current = a
			return true
		}
	}
	o.current = nil
	return false
}

// Asset returns the current asset.
func (o *OwnedAssets) Asset() *models.Asset {
	return o.current
}

// Err returns the error that stopped the iteration, if any.
func (o *OwnedAssets) Err() error {
	return o.err
}

// Collect drains the iterator into a slice.
func (o *OwnedAssets) Collect() ([]*models.Asset, error) {
	var out []*models.Asset
	for o.Next() {
		out = append(out, o.Asset())
	}
	return out, o.Err()
}
