package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"veriglow-backend/internal/shared/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBanned             = errors.New("account suspended")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// LockedError is returned while a login lockout is active. JustLocked marks
// the attempt that tripped the threshold.
type LockedError struct {
	Until      time.Time
	JustLocked bool
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// CredentialsError reports a failed password check and the attempts left
// before the account locks.
type CredentialsError struct {
	Remaining int
}

func (e *CredentialsError) Error() string { return "invalid credentials" }

// PasswordPolicyError carries every policy violation for the client.
type PasswordPolicyError struct {
	Problems []string
}

func (e *PasswordPolicyError) Error() string { return "password does not meet requirements" }

// LockoutPolicy caps failed logins: MaxAttempts within Window locks the
// account for Duration.
type LockoutPolicy struct {
	MaxAttempts int
	Window      time.Duration
	Duration    time.Duration
}

// DefaultLockoutPolicy mirrors the production defaults.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		Duration:    30 * time.Minute,
	}
}

type Service struct {
	Repo    Repo
	Lockout LockoutPolicy
	now     func() time.Time
}

func NewService(repo Repo, lockout LockoutPolicy) *Service {
	if lockout.MaxAttempts <= 0 {
		lockout = DefaultLockoutPolicy()
	}
	return &Service{Repo: repo, Lockout: lockout, now: time.Now}
}

// Register creates a password-backed account with the default role and plan.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" {
		return User{}, errors.New("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, ErrInvalidEmail
	}
	if problems := auth.ValidatePasswordStrength(password); len(problems) > 0 {
		return User{}, &PasswordPolicyError{Problems: problems}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         auth.RoleUser,
		Plan:         DefaultPlan,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return s.Repo.GetByID(ctx, user.ID)
}

// Authenticate checks credentials and keeps the lockout counters. Callers
// translate the typed errors into responses.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	user, err := s.Repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if user.Banned {
		return User{}, ErrBanned
	}

	now := s.now().UTC()
	if user.LockoutUntil != nil {
		if now.Before(*user.LockoutUntil) {
			return User{}, &LockedError{Until: *user.LockoutUntil}
		}
		// Lockout expired, start from a clean slate.
		if err := s.Repo.UpdateLoginState(ctx, user.ID, 0, nil, nil); err != nil {
			return User{}, err
		}
		user.FailedLogins = 0
		user.LastFailedAt = nil
		user.LockoutUntil = nil
	}

	if user.PasswordHash == "" || !auth.CheckPassword(password, user.PasswordHash) {
		return User{}, s.recordFailedLogin(ctx, user, now)
	}

	if err := s.Repo.UpdateLoginState(ctx, user.ID, 0, nil, nil); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) recordFailedLogin(ctx context.Context, user User, now time.Time) error {
	attempts := user.FailedLogins
	if user.LastFailedAt != nil && now.Sub(*user.LastFailedAt) > s.Lockout.Window {
		attempts = 0
	}
	attempts++

	if attempts >= s.Lockout.MaxAttempts {
		until := now.Add(s.Lockout.Duration)
		if err := s.Repo.UpdateLoginState(ctx, user.ID, attempts, &now, &until); err != nil {
			return err
		}
		return &LockedError{Until: until, JustLocked: true}
	}

	if err := s.Repo.UpdateLoginState(ctx, user.ID, attempts, &now, nil); err != nil {
		return err
	}
	return &CredentialsError{Remaining: s.Lockout.MaxAttempts - attempts}
}

// UpsertFromOAuth persists the user identity from OAuth to stabilize history
// and usage ownership.
func (s *Service) UpsertFromOAuth(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	user.Email = NormalizeEmail(user.Email)
	if strings.TrimSpace(user.ID) == "" || user.Email == "" {
		return errors.New("user id and email are required")
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	return s.Repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *Service) SetRole(ctx context.Context, userID, role string) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	if !auth.ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.Repo.SetRole(ctx, userID, role)
}

func (s *Service) SetBanned(ctx context.Context, userID string, banned bool) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	return s.Repo.SetBanned(ctx, userID, banned)
}

func (s *Service) SetPlan(ctx context.Context, userID, plan string) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	return s.Repo.SetPlan(ctx, userID, plan)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]User, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("users service not configured")
	}
	return s.Repo.List(ctx, limit, offset)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	if s == nil || s.Repo == nil {
		return 0, errors.New("users service not configured")
	}
	return s.Repo.Count(ctx)
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	return s.Repo.Delete(ctx, userID)
}

// NormalizeEmail lowercases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
