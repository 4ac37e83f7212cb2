package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), EInternal},
		{"conflict", Conflict("organization %q already exists", "acme"), EConflict},
		{"wrapped not found", fmt.Errorf("get user: %w", NotFound("user %d", 4)), ENotFound},
		{"nested code", &Error{Op: "orgs.Delete", Err: Invalid("users remain")}, EInvalid},
		{"illegal state", ErrRoleAlreadyAssigned, EInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Code: EConflict, Op: "orgs.Create", Msg: "name taken", Err: errors.New("unique violation")}
	if got, want := err.Error(), "orgs.Create: name taken: unique violation"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := (&Error{Code: ENotFound}).Error(); got != "<not found>" {
		t.Errorf("Error() = %q", got)
	}
	if got := Message(fmt.Errorf("wrap: %w", Invalid("bad payload"))); got != "bad payload" {
		t.Errorf("Message() = %q", got)
	}
}

func TestIs(t *testing.T) {
	if !Is(fmt.Errorf("x: %w", Forbidden("nope")), EForbidden) {
		t.Error("expected forbidden")
	}
	if Is(nil, EInternal) {
		t.Error("nil carries no code")
	}
}
