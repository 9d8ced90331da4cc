package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"veriglow-backend/internal/users"
)

const testPassword = "Str0ng!Passw0rd"

func newTestUsers(t *testing.T) (*users.Service, users.User) {
	t.Helper()
	svc := users.NewService(users.NewMemoryRepo(), users.DefaultLockoutPolicy())
	user, err := svc.Register(context.Background(), "Iris Vega", "iris@example.com", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return svc, user
}

func TestRefreshRotatesToken(t *testing.T) {
	usersSvc, user := newTestUsers(t)
	svc := NewService(usersSvc, NewMemoryRevocations(), time.Minute, time.Hour)

	pair, err := svc.IssueTokens(user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("token type = %q, want bearer", pair.TokenType)
	}

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Fatal("expected a full token pair from refresh")
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("expected refresh to mint a new refresh token")
	}

	// The old token was consumed by the rotation.
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("reused token err = %v, want ErrInvalidRefresh", err)
	}

	// The rotated token still works.
	if _, err := svc.Refresh(context.Background(), next.RefreshToken); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	usersSvc, user := newTestUsers(t)
	svc := NewService(usersSvc, NewMemoryRevocations(), time.Minute, time.Hour)

	pair, err := svc.IssueTokens(user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("err = %v, want ErrInvalidRefresh", err)
	}
}

func TestRefreshRejectsBannedUser(t *testing.T) {
	usersSvc, user := newTestUsers(t)
	svc := NewService(usersSvc, NewMemoryRevocations(), time.Minute, time.Hour)

	pair, err := svc.IssueTokens(user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	if err := usersSvc.SetBanned(context.Background(), user.ID, true); err != nil {
		t.Fatalf("ban user: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("err = %v, want ErrInvalidRefresh", err)
	}
}

func TestRefreshRejectsDeletedUser(t *testing.T) {
	usersSvc, user := newTestUsers(t)
	svc := NewService(usersSvc, NewMemoryRevocations(), time.Minute, time.Hour)

	pair, err := svc.IssueTokens(user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	if err := usersSvc.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("err = %v, want ErrInvalidRefresh", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	usersSvc, user := newTestUsers(t)
	svc := NewService(usersSvc, NewMemoryRevocations(), time.Minute, time.Hour)

	pair, err := svc.IssueTokens(user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	if err := svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("err after logout = %v, want ErrInvalidRefresh", err)
	}
}

func TestLogoutRejectsGarbageToken(t *testing.T) {
	usersSvc, _ := newTestUsers(t)
	svc := NewService(usersSvc, NewMemoryRevocations(), time.Minute, time.Hour)

	if err := svc.Logout(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("err = %v, want ErrInvalidRefresh", err)
	}
}

func TestMemoryRevocationsExpire(t *testing.T) {
	now := time.Now()
	store := NewMemoryRevocations()
	store.now = func() time.Time { return now }

	if err := store.Revoke(context.Background(), "jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := store.IsRevoked(context.Background(), "jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatal("expected jti-1 to be revoked")
	}

	now = now.Add(2 * time.Minute)
	revoked, err = store.IsRevoked(context.Background(), "jti-1")
	if err != nil {
		t.Fatalf("is revoked after expiry: %v", err)
	}
	if revoked {
		t.Fatal("expected revocation to lapse with the token")
	}
}
