package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadServerConfig_DefaultEnvironment(t *testing.T) {
	os.Unsetenv("ENV")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "invalid")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q for invalid ENV, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_ValidEnvironments(t *testing.T) {
	tests := []struct {
		env  string
		want Environment
	}{
		{"development", EnvDevelopment},
		{"staging", EnvStaging},
		{"production", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			cfg := LoadServerConfig()
			if cfg.Environment != tt.want {
				t.Errorf("expected %q, got %q", tt.want, cfg.Environment)
			}
		})
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	for _, k := range []string{
		"ACCEPT_KEY_MAX_AGE_HOURS", "DEFAULT_INVITE_LANGUAGE", "ADMIN_ROLE_MAX_LENGTH",
		"ROLE_MAX_LENGTH", "SYSTEM_ADMIN_ROLE", "EXTERNAL_TIMEOUT", "LISTEN_ADDR",
		"DIRECTORY_URL", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_PERIOD",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadServerConfig()

	if cfg.AcceptKeyMaxAge != 24*time.Hour {
		t.Errorf("AcceptKeyMaxAge = %v", cfg.AcceptKeyMaxAge)
	}
	if cfg.DefaultInviteLanguage != "en" {
		t.Errorf("DefaultInviteLanguage = %q", cfg.DefaultInviteLanguage)
	}
	if cfg.AdminRoleMaxLength != 200 || cfg.RoleMaxLength != 190 {
		t.Errorf("role bounds = %d/%d", cfg.AdminRoleMaxLength, cfg.RoleMaxLength)
	}
	if cfg.SystemAdminRole != "ROLE_ADMIN" {
		t.Errorf("SystemAdminRole = %q", cfg.SystemAdminRole)
	}
	if cfg.ExternalTimeout != 30*time.Second {
		t.Errorf("ExternalTimeout = %v", cfg.ExternalTimeout)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Directory.Enabled() {
		t.Error("directory should be disabled without a URL")
	}
	if cfg.RateLimit.Requests != 100 || cfg.RateLimit.Period != time.Minute {
		t.Errorf("rate limit = %d/%v", cfg.RateLimit.Requests, cfg.RateLimit.Period)
	}
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	t.Setenv("ACCEPT_KEY_MAX_AGE_HOURS", "48")
	t.Setenv("ADMIN_ROLE_MAX_LENGTH", "64")
	t.Setenv("ROLE_MAX_LENGTH", "32")
	t.Setenv("EXTERNAL_TIMEOUT", "5s")
	t.Setenv("INVITE_BASE_URL", "https://orgs.example.com/")
	t.Setenv("DIRECTORY_URL", "https://directory.example.com")

	cfg := LoadServerConfig()

	if cfg.AcceptKeyMaxAge != 48*time.Hour {
		t.Errorf("AcceptKeyMaxAge = %v", cfg.AcceptKeyMaxAge)
	}
	n := cfg.Namer()
	if n.AdminMax != 64 || n.RoleMax != 32 {
		t.Errorf("Namer() = %+v", n)
	}
	if cfg.ExternalTimeout != 5*time.Second {
		t.Errorf("ExternalTimeout = %v", cfg.ExternalTimeout)
	}
	if cfg.InviteBaseURL != "https://orgs.example.com" {
		t.Errorf("InviteBaseURL = %q", cfg.InviteBaseURL)
	}
	if !cfg.Directory.Enabled() {
		t.Error("directory should be enabled")
	}
}

func TestLoadServerConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCEPT_KEY_MAX_AGE_HOURS", "-3")
	t.Setenv("ADMIN_ROLE_MAX_LENGTH", "4")
	t.Setenv("EXTERNAL_TIMEOUT", "soon")

	cfg := LoadServerConfig()

	if cfg.AcceptKeyMaxAge != 24*time.Hour {
		t.Errorf("AcceptKeyMaxAge = %v", cfg.AcceptKeyMaxAge)
	}
	if cfg.AdminRoleMaxLength != 200 {
		t.Errorf("AdminRoleMaxLength = %d", cfg.AdminRoleMaxLength)
	}
	if cfg.ExternalTimeout != 30*time.Second {
		t.Errorf("ExternalTimeout = %v", cfg.ExternalTimeout)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		want bool
	}{
		{"true", true},
		{"1", true},
		{"YES", true},
		{"false", false},
		{"0", false},
		{"garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.val)
			if got := getEnvBool("TEST_BOOL", true); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}
