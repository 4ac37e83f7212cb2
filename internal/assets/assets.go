// Package assets mediates device ownership against the external asset
// registry. A device belongs to at most one organization; the registry is
// the system of record for which one.
package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/MacJediWizard/orgwarden/internal/callbacks"
	"github.com/MacJediWizard/orgwarden/internal/config"
	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/events"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/registry"
	"github.com/rs/zerolog"
)

// Service is the asset ownership facade.
type Service struct {
	registry  registry.Registry
	release   *config.ReleaseConfig
	callbacks callbacks.Receiver
	logger    zerolog.Logger
}

// NewService creates the facade.
func NewService(reg registry.Registry, release *config.ReleaseConfig, cb callbacks.Receiver, logger zerolog.Logger) *Service {
	return &Service{
		registry:  reg,
		release:   release,
		callbacks: cb,
		logger:    logger.With().Str("component", "assets").Logger(),
	}
}

// BelongsToOrganization reports whether asset is tagged with exactly orgID.
// An asset without an organization id belongs to nobody.
func BelongsToOrganization(asset *models.Asset, orgID int64) bool {
	return asset != nil && asset.OwnedBy(orgID)
}

// ListOwned returns the organization's assets. The registry is queried on the
// first call to Next.
func (s *Service) ListOwned(ctx context.Context, orgID int64) *OwnedAssets {
	return &OwnedAssets{ctx: ctx, registry: s.registry, orgID: orgID}
}

// Claim tags the device with orgID. It returns false without error when the
// device already has an owner. The device is looked up on every call; two
// concurrent claims are settled by the registry.
func (s *Service) Claim(ctx context.Context, deviceID string, orgID int64) (bool, error) {
	asset, ok, err := s.registry.FindAssetByDeviceID(ctx, deviceID)
	if err != nil {
		return false, fmt.Errorf("claim device %s: %w", deviceID, err)
	}
	if !ok {
		return false, errs.NotFound("device %s not found", deviceID)
	}
	if asset.OrganizationID != nil {
		s.logger.Info().
			Str("device_id", deviceID).
			Int64("org_id", orgID).
			Int64("owner_id", *asset.OrganizationID).
			Msg("device unavailable")
		return false, nil
	}

	if err := s.registry.SavePatch(ctx, asset.ID, map[string]any{models.AssetPropertyOrganizationID: orgID}); err != nil {
		return false, fmt.Errorf("claim device %s: %w", deviceID, err)
	}
	s.logger.Info().Str("device_id", deviceID).Int64("org_id", orgID).Msg("device claimed")
	return true, nil
}

// Release detaches the asset from its organization: organizationId and the
// properties configured as clearable for that organization are cleared. The
// asset itself is never deleted.
func (s *Service) Release(ctx context.Context, asset *models.Asset) error {
	var orgID int64
	if asset.OrganizationID != nil {
		orgID = *asset.OrganizationID
	}

	fields := map[string]any{models.AssetPropertyOrganizationID: nil}
	props := make(map[string]any)
	for _, name := range s.release.ClearableFor(orgID) {
		if models.IsAssetField(name) {
			fields[name] = nil
		} else {
			props[name] = nil
		}
	}

	if err := s.registry.SavePatch(ctx, asset.ID, fields); err != nil {
		return fmt.Errorf("release asset %s: %w", asset.ID, err)
	}
	if len(props) > 0 {
		if err := s.registry.SaveProperties(ctx, asset.ID, props); err != nil {
			return fmt.Errorf("clear properties of asset %s: %w", asset.ID, err)
		}
	}

	s.logger.Info().Str("device_id", asset.DeviceID).Int64("org_id", orgID).Msg("device released")
	return nil
}

// ReleaseAll releases every asset the organization still owns. It keeps
// going after a failed release and returns the failures joined.
func (s *Service) ReleaseAll(ctx context.Context, orgID int64) (int, error) {
	var (
		released int
		failed   []error
	)
	owned := s.ListOwned(ctx, orgID)
	for owned.Next() {
		if err := s.Release(ctx, owned.Asset()); err != nil {
			failed = append(failed, err)
			continue
		}
		released++
	}
	if err := owned.Err(); err != nil {
		failed = append(failed, err)
	}
	return released, errors.Join(failed...)
}

// HasOwned reports whether the organization owns at least one asset.
func (s *Service) HasOwned(ctx context.Context, orgID int64) (bool, error) {
	owned := s.ListOwned(ctx, orgID)
	found := owned.Next()
	return found, owned.Err()
}

// owned returns the device if orgID owns it. A device owned by another
// organization is reported as not found.
func (s *Service) owned(ctx context.Context, orgID int64, deviceID string) (*models.Asset, error) {
	asset, ok, err := s.registry.FindAssetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device %s: %w", deviceID, err)
	}
	if !ok || !BelongsToOrganization(asset, orgID) {
		return nil, errs.NotFound("device %s not found", deviceID)
	}
	return asset, nil
}

// Get returns a device owned by orgID.
func (s *Service) Get(ctx context.Context, orgID int64, deviceID string) (*models.Asset, error) {
	return s.owned(ctx, orgID, deviceID)
}

// Detach releases a device owned by orgID and notifies the callback
// receiver.
func (s *Service) Detach(ctx context.Context, orgID int64, deviceID string) error {
	asset, err := s.owned(ctx, orgID, deviceID)
	if err != nil {
		return err
	}
	if err := s.Release(ctx, asset); err != nil {
		return err
	}
	if err := s.callbacks.DeviceRemoved(ctx, callbacks.DeviceEvent{DeviceID: deviceID, OrganizationID: orgID}); err != nil {
		return fmt.Errorf("notify device removal: %w", err)
	}
	return nil
}

// UpdateProperties applies patch to a device owned by orgID. Ownership can
// only change through Claim and Release, so organizationId is rejected.
func (s *Service) UpdateProperties(ctx context.Context, orgID int64, deviceID string, patch map[string]any) (*models.Asset, error) {
	if _, ok := patch[models.AssetPropertyOrganizationID]; ok {
		return nil, errs.Invalid("%s cannot be changed", models.AssetPropertyOrganizationID)
	}
	if len(patch) == 0 {
		return nil, errs.Invalid("no properties to update")
	}

	asset, err := s.owned(ctx, orgID, deviceID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	props := make(map[string]any)
	for name, value := range patch {
		if err := asset.SetProperty(name, value); err != nil {
			return nil, errs.Invalid("property %s: %v", name, err)
		}
		if models.IsAssetField(name) {
			fields[name] = value
		} else {
			props[name] = value
		}
	}

	if len(fields) > 0 {
		if err := s.registry.SavePatch(ctx, asset.ID, fields); err != nil {
			return nil, fmt.Errorf("update device %s: %w", deviceID, err)
		}
	}
	if len(props) > 0 {
		if err := s.registry.SaveProperties(ctx, asset.ID, props); err != nil {
			return nil, fmt.Errorf("update properties of device %s: %w", deviceID, err)
		}
	}
	return asset, nil
}

// HandleCascadeDeleted releases every device still tagged with a cascade
// deleted organization.
func (s *Service) HandleCascadeDeleted(ctx context.Context, ev events.Event) error {
	deleted, ok := ev.(events.OrganizationCascadeDeleted)
	if !ok {
		return fmt.Errorf("unexpected event %T", ev)
	}
	released, err := s.ReleaseAll(ctx, deleted.OrganizationID)
	s.logger.Info().
		Int64("org_id", deleted.OrganizationID).
		Int("released", released).
		Msg("released devices of deleted organization")
	return err
}

// Subscribe registers the facade's handlers on bus.
func (s *Service) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.NameOrganizationCascadeDeleted, "assets", s.HandleCascadeDeleted)
}
