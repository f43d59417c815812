// Package worker replays queued movement mutations against the ledger. It
// is the single consumer of the mutation queue, so replay order matches
// publish order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pocketfin/internal/core"
	"pocketfin/internal/ledger"
	"pocketfin/internal/queue"
)

// Ledger is the slice of the ledger service the replayer needs.
type Ledger interface {
	AddMovement(ctx context.Context, in ledger.AddInput) (core.Movement, error)
	UpdateMovement(ctx context.Context, id string, patch ledger.UpdatePatch) (core.Movement, error)
	DeleteMovement(ctx context.Context, id string) (bool, error)
}

// Replayer applies mutations one at a time with a fixed pause between
// items, which keeps a long backlog from hammering the backing store's
// rate limits.
type Replayer struct {
	ledger Ledger
	delay  time.Duration
}

func NewReplayer(l Ledger, delay time.Duration) *Replayer {
	return &Replayer{ledger: l, delay: delay}
}

// HandleMutation applies one mutation. A nil return acks the delivery; an
// error requeues it. Permanent failures (bad payloads, unknown ids) are
// acked and logged so the queue never wedges on one poisoned message, while
// retryable ones (store down, writes disabled) are returned for requeue.
func (r *Replayer) HandleMutation(ctx context.Context, m *queue.Mutation) error {
	slog.InfoContext(ctx, "Replaying mutation", "op", m.Op, "id", m.ID, "queued_at", m.QueuedAt)

	var err error
	switch m.Op {
	case queue.OpAdd:
		_, err = r.ledger.AddMovement(ctx, addInput(m.Movement))
	case queue.OpUpdate:
		_, err = r.ledger.UpdateMovement(ctx, m.ID, updatePatch(m.Patch))
	case queue.OpDelete:
		var found bool
		found, err = r.ledger.DeleteMovement(ctx, m.ID)
		if err == nil && !found {
			slog.WarnContext(ctx, "Queued delete matched nothing, acking", "id", m.ID)
		}
	default:
		slog.ErrorContext(ctx, "Unknown mutation op, acking", "op", m.Op)
		return nil
	}

	switch {
	case err == nil:
	case ledger.IsValidation(err), errors.Is(err, ledger.ErrNotFound):
		// Retrying cannot fix these.
		slog.WarnContext(ctx, "Mutation permanently rejected, acking",
			"op", m.Op, "id", m.ID, "error", err)
	default:
		return fmt.Errorf("replay %s: %w", m.Op, err)
	}

	r.pause(ctx)
	return nil
}

func (r *Replayer) pause(ctx context.Context) {
	if r.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(r.delay):
	}
}

func addInput(p *queue.AddPayload) ledger.AddInput {
	if p == nil {
		return ledger.AddInput{}
	}
	return ledger.AddInput{
		Amount:          p.Amount,
		Type:            p.Type,
		RawCategory:     p.RawCategory,
		Date:            p.Date,
		AccountingMonth: p.AccountingMonth,
		Note:            p.Note,
	}
}

func updatePatch(p *queue.PatchPayload) ledger.UpdatePatch {
	if p == nil {
		return ledger.UpdatePatch{}
	}
	return ledger.UpdatePatch{
		Date:            p.Date,
		AccountingMonth: p.AccountingMonth,
		Type:            p.Type,
		RawCategory:     p.RawCategory,
		Amount:          p.Amount,
		Note:            p.Note,
	}
}
