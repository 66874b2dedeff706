package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crono-backend/internal/activity/domain"
	"crono-backend/internal/activity/repository"
	"crono-backend/internal/notification"

	"go.uber.org/zap"
)

// Outcome is the result of processing one candidate. The four transition
// kinds are outcomes too.
type Outcome string

const (
	OutcomeArchived   = Outcome(TransitionArchive)
	OutcomeAbandoned  = Outcome(TransitionAbandon)
	OutcomeRolledOver = Outcome(TransitionRollover)
	OutcomeNotified   = Outcome(TransitionNotify)
)

const (
	OutcomeIneligible  Outcome = "ineligible"
	OutcomeNoRecipient Outcome = "no_recipient"
	OutcomeInFlight    Outcome = "in_flight"
	OutcomeFailed      Outcome = "failed"
)

// ItemResult reports what happened to one candidate
type ItemResult struct {
	Ref         domain.ActivityRef
	Outcome     Outcome
	Delivery    notification.DeliveryResult
	DispatchErr error // send failed, writes may still have been committed
	Err         error // set when Outcome is OutcomeFailed
}

// Processor applies exactly one transition to an eligible activity
type Processor struct {
	activities repository.ActivityRepository
	owners     repository.OwnerRepository
	snapshots  repository.SnapshotRepository
	cards      *repository.CardResolver
	composer   *notification.Composer
	notifier   notification.Notifier
	policy     Policy
	planner    Planner
	dispatch   DispatchPolicy
	opTimeout  time.Duration
	logger     *zap.Logger
}

// Process never panics and never returns an error; failures are reported in
// the result. Once started, an item runs to completion even if ctx is
// cancelled, so a sent notification is always followed by its commit.
func (p *Processor) Process(ctx context.Context, a *domain.Activity, now time.Time) (res ItemResult) {
	res.Ref = a.Ref()
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("panic while processing activity: %v", r)
		}
	}()

	if !p.policy.Eligible(a, now) {
		res.Outcome = OutcomeIneligible
		return res
	}

	var owner *domain.Owner
	err := p.do(ctx, func(ctx context.Context) (err error) {
		owner, err = p.owners.FindOwner(ctx, a.OwnerID)
		return err
	})
	if err != nil {
		return failed(res, fmt.Errorf("load owner %s: %w", a.OwnerID, err))
	}
	if owner == nil || strings.TrimSpace(owner.Email) == "" {
		res.Outcome = OutcomeNoRecipient
		return res
	}

	var card *domain.Card
	if err := p.do(ctx, func(ctx context.Context) (err error) {
		card, err = p.cards.Resolve(ctx, a)
		return err
	}); err != nil {
		p.logger.Warn("card lookup failed, using legacy card",
			zap.String("activity_id", a.ID), zap.Error(err))
	}

	t := p.planner.Plan(a, card, now)

	cardTitle := ""
	if card != nil {
		cardTitle = card.Title
	}
	msg, err := p.composer.Compose(*owner, a, cardTitle)
	if err != nil {
		return failed(res, err)
	}

	sendErr := p.do(ctx, func(ctx context.Context) error {
		var err error
		res.Delivery, err = p.notifier.Send(ctx, msg)
		return err
	})
	if sendErr != nil {
		res.DispatchErr = sendErr
		if t.Kind == TransitionArchive || p.dispatch == DispatchRetry {
			return failed(res, fmt.Errorf("dispatch %s notification: %w", msg.Kind, sendErr))
		}
		p.logger.Warn("dispatch failed, committing transition anyway",
			zap.String("activity_id", a.ID),
			zap.String("transition", t.String()),
			zap.Error(sendErr))
	}

	if err := p.apply(ctx, a, t); err != nil {
		return failed(res, err)
	}
	res.Outcome = Outcome(t.Kind)
	return res
}

// apply persists t. Archive appends the snapshot before deleting.
func (p *Processor) apply(ctx context.Context, a *domain.Activity, t Transition) error {
	ref := a.Ref()
	switch t.Kind {
	case TransitionArchive:
		if err := p.do(ctx, func(ctx context.Context) error {
			return p.snapshots.AppendSnapshot(ctx, a.OwnerID, *t.Snapshot)
		}); err != nil {
			return fmt.Errorf("append snapshot: %w", err)
		}
		if err := p.do(ctx, func(ctx context.Context) error {
			return p.activities.Delete(ctx, ref)
		}); err != nil {
			// the activity stays due; drop the snapshot so a retry does not duplicate it
			if rbErr := p.do(ctx, func(ctx context.Context) error {
				return p.snapshots.RemoveSnapshotsByActivityID(ctx, a.OwnerID, a.ID)
			}); rbErr != nil {
				p.logger.Error("failed to roll back snapshot", zap.String("activity_id", a.ID), zap.Error(rbErr))
			}
			return fmt.Errorf("delete archived activity: %w", err)
		}
		return nil

	case TransitionAbandon:
		if err := p.do(ctx, func(ctx context.Context) error {
			return p.activities.Delete(ctx, ref)
		}); err != nil {
			return fmt.Errorf("delete abandoned activity: %w", err)
		}
		return nil

	case TransitionRollover, TransitionNotify:
		if err := p.do(ctx, func(ctx context.Context) error {
			return p.activities.Update(ctx, ref, t.Patch)
		}); err != nil {
			return fmt.Errorf("update activity after %s: %w", t.Kind, err)
		}
		return nil
	}
	return fmt.Errorf("unknown transition %q", t.Kind)
}

// do runs one store or notifier call under the per-operation timeout
func (p *Processor) do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()
	return fn(ctx)
}

func failed(res ItemResult, err error) ItemResult {
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}
