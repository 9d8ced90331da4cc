package users

import (
	"context"
	"time"
)

var (
	ErrNotFound   = errNotFound{}
	ErrEmailTaken = errEmailTaken{}
)

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

type errEmailTaken struct{}

func (errEmailTaken) Error() string { return "email already registered" }

type Repo interface {
	Create(ctx context.Context, user User) error
	Upsert(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	UpdateLoginState(ctx context.Context, userID string, failedLogins int, lastFailedAt, lockoutUntil *time.Time) error
	SetRole(ctx context.Context, userID, role string) error
	SetBanned(ctx context.Context, userID string, banned bool) error
	SetPlan(ctx context.Context, userID, plan string) error
	List(ctx context.Context, limit, offset int) ([]User, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, userID string) error
}
