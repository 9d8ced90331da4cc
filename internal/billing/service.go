package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veriglow-backend/internal/audit"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/usage"
	"veriglow-backend/internal/users"
)

// Service owns the subscription lifecycle. Every plan change flows through
// applyPlan so the user record and the quota window always move together.
type Service struct {
	Repo     Repo
	Provider Provider
	Users    *users.Service
	Usage    *usage.Service
	Audit    *audit.Service
	now      func() time.Time
}

// NewService wires the billing service.
func NewService(repo Repo, provider Provider, usersSvc *users.Service, usageSvc *usage.Service, auditSvc *audit.Service) *Service {
	return &Service{
		Repo:     repo,
		Provider: provider,
		Users:    usersSvc,
		Usage:    usageSvc,
		Audit:    auditSvc,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe puts the user on plan. An existing subscription on the same plan
// is returned unchanged; a different plan is traded in: the old provider
// subscription is canceled before the new one is created.
func (s *Service) Subscribe(ctx context.Context, userID, plan, ip string) (Subscription, error) {
	if !usage.KnownPlan(plan) {
		return Subscription{}, ErrUnknownPlan
	}
	if plan == usage.PlanFree {
		return Subscription{}, ErrFreePlan
	}

	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return Subscription{}, fmt.Errorf("billing: load user: %w", err)
	}

	current, err := s.Repo.CurrentByUser(ctx, userID)
	switch {
	case err == nil:
		if current.Plan == plan {
			return current, nil
		}
		if current.ProviderID != "" {
			if err := s.Provider.Cancel(ctx, current.ProviderID); err != nil {
				return Subscription{}, fmt.Errorf("%w: cancel previous: %v", ErrProvider, err)
			}
		}
		current.Status = StatusCanceled
		current.UpdatedAt = s.now()
		if err := s.Repo.Update(ctx, current); err != nil {
			return Subscription{}, fmt.Errorf("billing: retire previous subscription: %w", err)
		}
	case errors.Is(err, ErrNotFound):
	default:
		return Subscription{}, fmt.Errorf("billing: load subscription: %w", err)
	}

	ps, err := s.Provider.Create(ctx, user.Email, userID, plan)
	if err != nil {
		return Subscription{}, fmt.Errorf("%w: create: %v", ErrProvider, err)
	}

	now := s.now()
	sub := Subscription{
		ID:         uuid.NewString(),
		UserID:     userID,
		Plan:       plan,
		Status:     StatusActive,
		ProviderID: ps.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ps.Status != "" {
		sub.Status = ps.Status
	}
	if !ps.PeriodEnd.IsZero() {
		end := ps.PeriodEnd
		sub.CurrentPeriodEnd = &end
	}
	if err := s.Repo.Create(ctx, sub); err != nil {
		return Subscription{}, fmt.Errorf("billing: save subscription: %w", err)
	}

	if err := s.applyPlan(ctx, userID, plan); err != nil {
		return Subscription{}, err
	}
	s.Audit.LogDataModification(ctx, userID, "subscription", sub.ID, map[string]any{
		"plan":        plan,
		"provider_id": ps.ID,
	}, ip)
	telemetry.Info("billing.subscribed", map[string]any{
		"user_id": userID,
		"plan":    plan,
	})
	return sub, nil
}

// Cancel ends the current subscription and moves the user back to free.
func (s *Service) Cancel(ctx context.Context, userID, ip string) error {
	sub, err := s.Repo.CurrentByUser(ctx, userID)
	if err != nil {
		return err
	}
	if sub.ProviderID != "" {
		if err := s.Provider.Cancel(ctx, sub.ProviderID); err != nil {
			return fmt.Errorf("%w: cancel: %v", ErrProvider, err)
		}
	}

	sub.Status = StatusCanceled
	sub.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, sub); err != nil {
		return fmt.Errorf("billing: mark canceled: %w", err)
	}
	if err := s.applyPlan(ctx, userID, usage.PlanFree); err != nil {
		return err
	}
	s.Audit.LogDataModification(ctx, userID, "subscription", sub.ID, map[string]any{
		"plan":     usage.PlanFree,
		"canceled": true,
	}, ip)
	telemetry.Info("billing.canceled", map[string]any{
		"user_id": userID,
		"plan":    sub.Plan,
	})
	return nil
}

// Current returns the user's subscription, or ErrNotFound.
func (s *Service) Current(ctx context.Context, userID string) (Subscription, error) {
	return s.Repo.CurrentByUser(ctx, userID)
}

// HandleEvent applies one verified webhook notification. Events for
// subscriptions this deployment does not know are acknowledged and dropped,
// since redelivery cannot make them resolvable.
func (s *Service) HandleEvent(ctx context.Context, ev WebhookEvent) error {
	sub, err := s.Repo.ByProviderID(ctx, ev.Data.ProviderID)
	if errors.Is(err, ErrNotFound) {
		telemetry.Warn("billing.webhook_unknown_subscription", map[string]any{
			"type":        ev.Type,
			"provider_id": ev.Data.ProviderID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("billing: load subscription: %w", err)
	}

	switch ev.Type {
	case EventSubscriptionUpdated:
		if ev.Data.Plan != "" && usage.KnownPlan(ev.Data.Plan) && ev.Data.Plan != sub.Plan {
			sub.Plan = ev.Data.Plan
			if err := s.applyPlan(ctx, sub.UserID, sub.Plan); err != nil {
				return err
			}
		}
		if ev.Data.Status != "" {
			sub.Status = ev.Data.Status
		}
		if ev.Data.CurrentPeriodEnd > 0 {
			end := time.Unix(ev.Data.CurrentPeriodEnd, 0).UTC()
			sub.CurrentPeriodEnd = &end
		}
	case EventSubscriptionDeleted:
		sub.Status = StatusCanceled
		if err := s.applyPlan(ctx, sub.UserID, usage.PlanFree); err != nil {
			return err
		}
	case EventPaymentFailed:
		sub.Status = StatusPastDue
		telemetry.Warn("billing.payment_failed", map[string]any{
			"user_id":     sub.UserID,
			"provider_id": sub.ProviderID,
		})
	default:
		telemetry.Info("billing.webhook_ignored", map[string]any{"type": ev.Type})
		return nil
	}

	sub.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, sub); err != nil {
		return fmt.Errorf("billing: apply webhook: %w", err)
	}
	s.Audit.LogDataModification(ctx, sub.UserID, "subscription", sub.ID, map[string]any{
		"event":  ev.Type,
		"plan":   sub.Plan,
		"status": sub.Status,
	}, "")
	return nil
}

func (s *Service) applyPlan(ctx context.Context, userID, plan string) error {
	if err := s.Users.SetPlan(ctx, userID, plan); err != nil {
		return fmt.Errorf("billing: set user plan: %w", err)
	}
	if _, err := s.Usage.SetPlan(ctx, userID, plan); err != nil {
		return fmt.Errorf("billing: reset usage window: %w", err)
	}
	return nil
}
