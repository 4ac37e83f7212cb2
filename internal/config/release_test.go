package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadReleaseConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.yml")
	data := []byte(`default:
  - location
  - name
organizations:
  12:
    - customerRef
    - location
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadReleaseConfig(path)
	if err != nil {
		t.Fatalf("LoadReleaseConfig() error = %v", err)
	}

	if got := cfg.ClearableFor(12); !reflect.DeepEqual(got, []string{"location", "name", "customerRef"}) {
		t.Errorf("ClearableFor(12) = %v", got)
	}
	if got := cfg.ClearableFor(99); !reflect.DeepEqual(got, []string{"location", "name"}) {
		t.Errorf("ClearableFor(99) = %v", got)
	}
}

func TestLoadReleaseConfig_Missing(t *testing.T) {
	cfg, err := LoadReleaseConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(cfg.ClearableFor(1)) != 0 {
		t.Error("expected empty allow-list")
	}

	cfg, err = LoadReleaseConfig("")
	if err != nil || cfg == nil {
		t.Fatalf("empty path: cfg=%v err=%v", cfg, err)
	}
}

func TestLoadReleaseConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("default: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadReleaseConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestReleaseConfig_NilReceiver(t *testing.T) {
	var cfg *ReleaseConfig
	if cfg.ClearableFor(1) != nil {
		t.Error("nil config clears nothing extra")
	}
}
