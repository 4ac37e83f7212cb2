package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/rs/zerolog"
)

func TestParseStaticTokens(t *testing.T) {
	s, err := ParseStaticTokens("dev-root=root:ROLE_ADMIN; dev-alice=Alice@Example.com:ROLE_ACME_ADMIN+ROLE_ACME_7 ;dev-bob=bob:", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 tokens, got %d", s.Len())
	}

	p, err := s.VerifyBearer(context.Background(), "dev-alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Login != "alice@example.com" {
		t.Errorf("expected normalized login, got %q", p.Login)
	}
	if !p.HasRole("ROLE_ACME_ADMIN") || !p.HasRole("ROLE_ACME_7") {
		t.Errorf("unexpected roles %v", p.Roles)
	}

	p, err = s.VerifyBearer(context.Background(), "dev-bob")
	if err != nil || len(p.Roles) != 0 {
		t.Errorf("expected bob without roles, got %v, %v", p, err)
	}

	if _, err := s.VerifyBearer(context.Background(), "dev-mallory"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseStaticTokens_Invalid(t *testing.T) {
	for _, entry := range []string{"no-equals-sign", "=root:ROLE_ADMIN", "token=:ROLE_ADMIN"} {
		if _, err := ParseStaticTokens(entry, zerolog.Nop()); err == nil {
			t.Errorf("expected error for %q", entry)
		}
	}

	s, err := ParseStaticTokens("", zerolog.Nop())
	if err != nil || s.Len() != 0 {
		t.Errorf("empty input should yield no tokens, got %d, %v", s.Len(), err)
	}
}

type fixedVerifier struct {
	token string
	p     models.Principal
}

func (f fixedVerifier) VerifyBearer(_ context.Context, raw string) (models.Principal, error) {
	if raw != f.token {
		return models.Principal{}, errors.New("unknown token " + raw)
	}
	return f.p, nil
}

func TestChain(t *testing.T) {
	c := Chain{
		fixedVerifier{token: "a", p: models.Principal{Login: "first"}},
		fixedVerifier{token: "b", p: models.Principal{Login: "second"}},
	}
	p, err := c.VerifyBearer(context.Background(), "b")
	if err != nil || p.Login != "second" {
		t.Errorf("expected second, got %v, %v", p, err)
	}
	if _, err := c.VerifyBearer(context.Background(), "c"); err == nil {
		t.Error("expected error")
	}
	if _, err := (Chain{}).VerifyBearer(context.Background(), "a"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("empty chain should reject, got %v", err)
	}
}

func TestCompareAPIKeyHash(t *testing.T) {
	hash := HashAPIKey("secret")
	if !CompareAPIKeyHash("secret", hash) {
		t.Error("expected match")
	}
	if CompareAPIKeyHash("Secret", hash) {
		t.Error("expected mismatch")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractBearerToken(tt.header); got != tt.want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
