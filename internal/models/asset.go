package models

import (
	"fmt"
	"sort"
)

// Asset property names understood by the registry.
const (
	AssetPropertyDeviceID       = "deviceId"
	AssetPropertyName           = "name"
	AssetPropertySerialNumber   = "serialNumber"
	AssetPropertyLocation       = "location"
	AssetPropertyOrganizationID = "organizationId"
)

// Asset is a device held by the external asset registry. Organizations
// reference assets; they never own the record.
type Asset struct {
	ID             string         `json:"id"`
	DeviceID       string         `json:"device_id"`
	Name           string         `json:"name,omitempty"`
	SerialNumber   string         `json:"serial_number,omitempty"`
	Location       string         `json:"location,omitempty"`
	OrganizationID *int64         `json:"organization_id,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

type assetProperty struct {
	get func(a *Asset) any
	set func(a *Asset, v any) error
}

var assetProperties = map[string]assetProperty{
	AssetPropertyDeviceID: {
		get: func(a *Asset) any { return a.DeviceID },
		set: func(a *Asset, v any) error { return setString(&a.DeviceID, v) },
	},
	AssetPropertyName: {
		get: func(a *Asset) any { return a.Name },
		set: func(a *Asset, v any) error { return setString(&a.Name, v) },
	},
	AssetPropertySerialNumber: {
		get: func(a *Asset) any { return a.SerialNumber },
		set: func(a *Asset, v any) error { return setString(&a.SerialNumber, v) },
	},
	AssetPropertyLocation: {
		get: func(a *Asset) any { return a.Location },
		set: func(a *Asset, v any) error { return setString(&a.Location, v) },
	},
	AssetPropertyOrganizationID: {
		get: func(a *Asset) any {
			if a.OrganizationID == nil {
				return nil
			}
			return *a.OrganizationID
		},
		set: func(a *Asset, v any) error {
			id, ok, err := toInt64(v)
			if err != nil {
				return err
			}
			if !ok {
				a.OrganizationID = nil
				return nil
			}
			a.OrganizationID = &id
			return nil
		},
	},
}

// IsAssetField reports whether name is one of the registry's top-level
// fields rather than an entry of the free-form property bag.
func IsAssetField(name string) bool {
	_, ok := assetProperties[name]
	return ok
}

// Property returns the named property. Unknown names fall back to Extra.
func (a *Asset) Property(name string) (any, bool) {
	if p, ok := assetProperties[name]; ok {
		return p.get(a), true
	}
	v, ok := a.Extra[name]
	return v, ok
}

// SetProperty sets the named property. A nil value clears it.
func (a *Asset) SetProperty(name string, value any) error {
	if p, ok := assetProperties[name]; ok {
		return p.set(a, value)
	}
	if value == nil {
		delete(a.Extra, name)
		return nil
	}
	if a.Extra == nil {
		a.Extra = make(map[string]any)
	}
	a.Extra[name] = value
	return nil
}

// Properties flattens the asset into the registry's property bag.
func (a *Asset) Properties() map[string]any {
	props := make(map[string]any, len(assetProperties)+len(a.Extra))
	for k, v := range a.Extra {
		props[k] = v
	}
	for name, p := range assetProperties {
		props[name] = p.get(a)
	}
	return props
}

// AssetFromProperties builds an Asset from a registry property bag.
func AssetFromProperties(id string, props map[string]any) (*Asset, error) {
	a := &Asset{ID: id}
	for _, k := range sortedKeys(props) {
		if err := a.SetProperty(k, props[k]); err != nil {
			return nil, fmt.Errorf("asset %s: %w", id, err)
		}
	}
	return a, nil
}

// OwnedBy reports whether the asset is tagged with orgID. An untagged asset
// belongs to no organization.
func (a *Asset) OwnedBy(orgID int64) bool {
	return a.OrganizationID != nil && *a.OrganizationID == orgID
}

func setString(dst *string, v any) error {
	switch s := v.(type) {
	case nil:
		*dst = ""
	case string:
		*dst = s
	default:
		return fmt.Errorf("expected string, got %T", v)
	}
	return nil
}

// toInt64 accepts the numeric shapes produced by JSON decoding.
func toInt64(v any) (int64, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return n, true, nil
	case int:
		return int64(n), true, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, false, fmt.Errorf("organizationId must be an integer, got %v", n)
		}
		return int64(n), true, nil
	default:
		return 0, false, fmt.Errorf("organizationId must be a number, got %T", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
