package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ReleaseConfig lists the asset properties cleared when a device is released
// from an organization, on top of organizationId itself.
type ReleaseConfig struct {
	Default       []string           `yaml:"default,omitempty"`
	Organizations map[int64][]string `yaml:"organizations,omitempty"`
}

// ClearableFor returns the default properties followed by the organization's
// own entries, without duplicates.
func (c *ReleaseConfig) ClearableFor(orgID int64) []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(props []string) {
		for _, p := range props {
			if _, ok := seen[p]; ok || p == "" {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	add(c.Default)
	add(c.Organizations[orgID])
	return out
}

// LoadReleaseConfig reads the allow-list from path. An empty path or a missing
// file yields an empty config.
func LoadReleaseConfig(path string) (*ReleaseConfig, error) {
	if path == "" {
		return &ReleaseConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ReleaseConfig{}, nil
		}
		return nil, fmt.Errorf("read release config: %w", err)
	}

	var cfg ReleaseConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse release config: %w", err)
	}
	return &cfg, nil
}
