package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"veriglow-backend/internal/shared/auth"
)

const testPassword = "Sup3r$ecret"

func newTestService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	return NewService(repo, DefaultLockoutPolicy()), repo
}

func registerTestUser(t *testing.T, svc *Service) User {
	t.Helper()
	user, err := svc.Register(context.Background(), "Ada Lovelace", "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestRegisterCreatesUserWithDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), "Ada Lovelace", "  ADA@Example.COM ", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated user id")
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != auth.RoleUser {
		t.Fatalf("expected role %q, got %q", auth.RoleUser, user.Role)
	}
	if user.Plan != DefaultPlan {
		t.Fatalf("expected plan %q, got %q", DefaultPlan, user.Plan)
	}
	if user.PasswordHash == "" || user.PasswordHash == testPassword {
		t.Fatalf("expected hashed password, got %q", user.PasswordHash)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), "Other", "ada@example.com", testPassword)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "Ada", "ada@example.com", "weak")
	var policyErr *PasswordPolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PasswordPolicyError, got %v", err)
	}
	if len(policyErr.Problems) == 0 {
		t.Fatalf("expected policy problems to be reported")
	}
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "Ada", "not-an-email", testPassword)
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestAuthenticateSucceedsAndResetsCounters(t *testing.T) {
	svc, repo := newTestService(t)
	created := registerTestUser(t, svc)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, "ada@example.com", "wrong-pass"); err == nil {
		t.Fatalf("expected failed login")
	}

	user, err := svc.Authenticate(ctx, "ADA@example.com", testPassword)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("expected user %q, got %q", created.ID, user.ID)
	}

	stored, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.FailedLogins != 0 || stored.LastFailedAt != nil || stored.LockoutUntil != nil {
		t.Fatalf("expected counters reset, got logins=%d", stored.FailedLogins)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", testPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateBannedUser(t *testing.T) {
	svc, repo := newTestService(t)
	user := registerTestUser(t, svc)
	ctx := context.Background()

	if err := repo.SetBanned(ctx, user.ID, true); err != nil {
		t.Fatalf("ban user: %v", err)
	}
	if _, err := svc.Authenticate(ctx, user.Email, testPassword); !errors.Is(err, ErrBanned) {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
}

func TestAuthenticateCountsDownRemainingAttempts(t *testing.T) {
	svc, _ := newTestService(t)
	registerTestUser(t, svc)
	ctx := context.Background()

	for want := svc.Lockout.MaxAttempts - 1; want > 0; want-- {
		_, err := svc.Authenticate(ctx, "ada@example.com", "wrong-pass")
		var credErr *CredentialsError
		if !errors.As(err, &credErr) {
			t.Fatalf("expected CredentialsError, got %v", err)
		}
		if credErr.Remaining != want {
			t.Fatalf("expected %d attempts remaining, got %d", want, credErr.Remaining)
		}
	}
}

func TestAuthenticateLocksAfterMaxAttempts(t *testing.T) {
	svc, _ := newTestService(t)
	registerTestUser(t, svc)
	ctx := context.Background()

	var err error
	for i := 0; i < svc.Lockout.MaxAttempts; i++ {
		_, err = svc.Authenticate(ctx, "ada@example.com", "wrong-pass")
	}
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError on final attempt, got %v", err)
	}
	if !locked.JustLocked {
		t.Fatalf("expected JustLocked on the attempt that tripped the lock")
	}

	// Even the correct password is refused while locked.
	_, err = svc.Authenticate(ctx, "ada@example.com", testPassword)
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError while locked, got %v", err)
	}
	if locked.JustLocked {
		t.Fatalf("expected JustLocked=false on a pre-existing lock")
	}
}

func TestAuthenticateLockoutExpires(t *testing.T) {
	svc, repo := newTestService(t)
	registerTestUser(t, svc)
	ctx := context.Background()

	current := time.Now().UTC()
	svc.now = func() time.Time { return current }

	for i := 0; i < svc.Lockout.MaxAttempts; i++ {
		_, _ = svc.Authenticate(ctx, "ada@example.com", "wrong-pass")
	}

	current = current.Add(svc.Lockout.Duration + time.Minute)
	user, err := svc.Authenticate(ctx, "ada@example.com", testPassword)
	if err != nil {
		t.Fatalf("expected login after lockout expiry, got %v", err)
	}

	stored, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.FailedLogins != 0 || stored.LockoutUntil != nil {
		t.Fatalf("expected counters cleared after expiry")
	}
}

func TestAuthenticateFailureWindowResetsCounter(t *testing.T) {
	svc, _ := newTestService(t)
	registerTestUser(t, svc)
	ctx := context.Background()

	current := time.Now().UTC()
	svc.now = func() time.Time { return current }

	if _, err := svc.Authenticate(ctx, "ada@example.com", "wrong-pass"); err == nil {
		t.Fatalf("expected failed login")
	}

	// Outside the window the counter restarts instead of accumulating.
	current = current.Add(svc.Lockout.Window + time.Minute)
	_, err := svc.Authenticate(ctx, "ada@example.com", "wrong-pass")
	var credErr *CredentialsError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialsError, got %v", err)
	}
	if want := svc.Lockout.MaxAttempts - 1; credErr.Remaining != want {
		t.Fatalf("expected %d attempts remaining after window reset, got %d", want, credErr.Remaining)
	}
}

func TestUpsertFromOAuthRequiresIdentity(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	if err := svc.UpsertFromOAuth(ctx, User{Email: "ada@example.com"}); err == nil {
		t.Fatalf("expected error without id")
	}

	user := User{ID: "google-1", Email: "ADA@example.com", Name: "Ada", Role: auth.RoleUser, Plan: DefaultPlan}
	if err := svc.UpsertFromOAuth(ctx, user); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored, err := repo.GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if stored.ID != "google-1" {
		t.Fatalf("expected upserted user, got %q", stored.ID)
	}
}

func TestSetRoleValidatesRole(t *testing.T) {
	svc, repo := newTestService(t)
	user := registerTestUser(t, svc)
	ctx := context.Background()

	if err := svc.SetRole(ctx, user.ID, "superuser"); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
	if err := svc.SetRole(ctx, user.ID, auth.RoleModerator); err != nil {
		t.Fatalf("set role: %v", err)
	}
	stored, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.Role != auth.RoleModerator {
		t.Fatalf("expected role updated, got %q", stored.Role)
	}
}

func TestRoleAllowsMatrix(t *testing.T) {
	cases := []struct {
		role string
		perm string
		want bool
	}{
		{auth.RoleUser, PermRead, true},
		{auth.RoleUser, PermWrite, true},
		{auth.RoleUser, PermModerate, false},
		{auth.RoleUser, PermAdmin, false},
		{auth.RoleModerator, PermModerate, true},
		{auth.RoleModerator, PermDelete, false},
		{auth.RoleAdmin, PermDelete, true},
		{auth.RoleAdmin, PermAdmin, true},
		{"unknown", PermRead, false},
	}
	for _, tc := range cases {
		if got := RoleAllows(tc.role, tc.perm); got != tc.want {
			t.Fatalf("RoleAllows(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}
