package auth

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Sup3r$ecretPass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Sup3r$ecretPass" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !CheckPassword("Sup3r$ecretPass", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword("Sup3r$ecretPas", hash) {
		t.Fatalf("expected non-matching password to fail")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantOK   bool
	}{
		{"strong", "Sup3r$ecretPass", true},
		{"too short", "S3cret$a", false},
		{"no upper", "sup3r$ecretpass", false},
		{"no lower", "SUP3R$ECRETPASS", false},
		{"no digit", "Super$ecretPass", false},
		{"no special", "Sup3rSecretPass", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			problems := ValidatePasswordStrength(tc.password)
			if tc.wantOK && len(problems) != 0 {
				t.Fatalf("expected no problems, got %v", problems)
			}
			if !tc.wantOK && len(problems) == 0 {
				t.Fatalf("expected problems for %q", tc.password)
			}
		})
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAtLeast(RoleAdmin, RoleModerator) {
		t.Fatalf("admin should satisfy moderator")
	}
	if RoleAtLeast(RoleUser, RoleModerator) {
		t.Fatalf("user should not satisfy moderator")
	}
	if RoleAtLeast("", RoleUser) {
		t.Fatalf("unknown role should never qualify")
	}
	if !ValidRole(RoleUser) || ValidRole("superuser") {
		t.Fatalf("ValidRole misclassified a role")
	}
}

func TestNewAPIKeyShape(t *testing.T) {
	key := NewAPIKey("vg")
	if !strings.HasPrefix(key, "vg_") {
		t.Fatalf("expected vg_ prefix, got %q", key)
	}
	if strings.HasSuffix(key, "=") {
		t.Fatalf("expected no padding suffix, got %q", key)
	}
	if key == NewAPIKey("vg") {
		t.Fatalf("expected unique keys")
	}
}
