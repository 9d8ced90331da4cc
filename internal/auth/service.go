package auth

import (
	"context"
	"errors"
	"time"

	sharedauth "veriglow-backend/internal/shared/auth"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/users"
)

// ErrInvalidRefresh covers every way a refresh token can be unusable. Clients
// get one opaque 401 regardless of the cause.
var ErrInvalidRefresh = errors.New("invalid refresh token")

const tokenTypeBearer = "bearer"

// TokenPair is the issued credential set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Service owns the token lifecycle: issuance, rotation, and revocation.
type Service struct {
	Users       *users.Service
	Revocations RevocationStore
	AccessTTL   time.Duration
	RefreshTTL  time.Duration

	now func() time.Time
}

func NewService(usersSvc *users.Service, revocations RevocationStore, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &Service{
		Users:       usersSvc,
		Revocations: revocations,
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshTTL,
		now:         time.Now,
	}
}

// IssueTokens mints an access/refresh pair for the user.
func (s *Service) IssueTokens(user users.User) (TokenPair, error) {
	access, err := sharedauth.SignAccessToken(sharedauth.Claims{
		Sub:     user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
		Role:    user.Role,
	}, s.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := sharedauth.SignRefreshToken(user.ID, s.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: tokenTypeBearer}, nil
}

// Refresh rotates a valid refresh token into a fresh pair. The old token's
// JTI is revoked so each refresh token works exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := sharedauth.VerifyToken(refreshToken, sharedauth.TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidRefresh
	}
	if claims.JTI != "" && s.Revocations != nil {
		revoked, err := s.Revocations.IsRevoked(ctx, claims.JTI)
		if err != nil {
			return TokenPair{}, ErrInvalidRefresh
		}
		if revoked {
			return TokenPair{}, ErrInvalidRefresh
		}
	}

	user, err := s.Users.GetByID(ctx, claims.Sub)
	if err != nil {
		return TokenPair{}, ErrInvalidRefresh
	}
	if user.Banned {
		return TokenPair{}, ErrInvalidRefresh
	}

	pair, err := s.IssueTokens(user)
	if err != nil {
		return TokenPair{}, err
	}
	s.revokeClaims(ctx, claims)
	return pair, nil
}

// Logout revokes the refresh token so it cannot mint new access tokens.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := sharedauth.VerifyToken(refreshToken, sharedauth.TokenTypeRefresh)
	if err != nil {
		return ErrInvalidRefresh
	}
	s.revokeClaims(ctx, claims)
	return nil
}

func (s *Service) revokeClaims(ctx context.Context, claims sharedauth.Claims) {
	if s.Revocations == nil || claims.JTI == "" {
		return
	}
	ttl := s.RefreshTTL
	if claims.Exp > 0 {
		ttl = time.Unix(claims.Exp, 0).Sub(s.now())
	}
	if ttl <= 0 {
		return
	}
	if err := s.Revocations.Revoke(ctx, claims.JTI, ttl); err != nil {
		telemetry.Warn("auth.revoke_failed", map[string]any{"error": err.Error()})
	}
}
