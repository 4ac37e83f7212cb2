package naming

import (
	"strings"
	"testing"
)

func TestAdminRoleName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "My Organization", "ROLE_MY_ORGANIZATION_ADMIN"},
		{"whitespace and newline", "           My \nOrganization        ", "ROLE_MY_ORGANIZATION_ADMIN"},
		{"punctuation runs collapse", "Acme, Inc. -- (EU)", "ROLE_ACME_INC_EU__ADMIN"},
		// a trailing symbol becomes its own underscore ahead of the suffix
		{"trailing symbol doubles underscore", "Acme (EU)", "ROLE_ACME_EU__ADMIN"},
		{"no trailing symbol", "Acme EU", "ROLE_ACME_EU_ADMIN"},
		{"underscore kept", "snake_case org", "ROLE_SNAKE_CASE_ORG_ADMIN"},
		{"empty", "", "ROLE__ADMIN"},
		{"only symbols", "   ", "ROLE__ADMIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdminRoleName(tt.in); got != tt.want {
				t.Errorf("AdminRoleName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAdminRoleName_Truncates(t *testing.T) {
	name := "My Organization" + strings.Repeat("n", 300)
	got := AdminRoleName(name)

	if len(got) != DefaultAdminRoleMaxLength {
		t.Fatalf("expected %d characters, got %d", DefaultAdminRoleMaxLength, len(got))
	}
	if !strings.HasPrefix(got, "ROLE_MY_ORGANIZATIONNNN") {
		t.Errorf("truncation must keep the leading characters, got %q", got[:30])
	}
	if !strings.HasSuffix(got, AdminSuffix) {
		t.Errorf("expected %q suffix, got %q", AdminSuffix, got)
	}
}

func TestAdminRoleName_Deterministic(t *testing.T) {
	if AdminRoleName("Déjà vu GmbH") != AdminRoleName("Déjà vu GmbH") {
		t.Fatal("derivation must be deterministic")
	}
	if got := AdminRoleName("Déjà vu GmbH"); got != "ROLE_D_J_VU_GMBH_ADMIN" {
		t.Errorf("non-ASCII letters are non-word characters, got %q", got)
	}
}

func TestRoleName(t *testing.T) {
	if got := RoleName("My Organization", 100); got != "ROLE_MY_ORGANIZATION_100" {
		t.Errorf("RoleName() = %q", got)
	}

	long := RoleName("My Organization"+strings.Repeat("x", 300), 100)
	if len(long) != 194 {
		t.Errorf("expected 194 characters, got %d", len(long))
	}
	if !strings.HasSuffix(long, "_100") {
		t.Errorf("role id must survive truncation, got %q", long)
	}
}

func TestNamer_CustomBounds(t *testing.T) {
	n := Namer{AdminMax: 20, RoleMax: 12}

	if got := n.AdminRoleName("Organization"); got != "ROLE_ORGANIZAT_ADMIN" {
		t.Errorf("AdminRoleName() = %q", got)
	}
	if got := n.RoleName("Organization", 7); got != "ROLE_ORGANIZ_7" {
		t.Errorf("RoleName() = %q", got)
	}
}
