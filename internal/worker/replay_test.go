package worker

import (
	"context"
	"testing"
	"time"

	"pocketfin/internal/core"
	"pocketfin/internal/ledger"
	"pocketfin/internal/queue"
	"pocketfin/internal/tabular"
	"pocketfin/internal/tabular/memory"
)

func newReplayer(store *memory.Store) *Replayer {
	return NewReplayer(ledger.New(store, time.UTC), 0)
}

func TestReplayAddUpdateDelete(t *testing.T) {
	store := memory.NewWithDefaults()
	r := newReplayer(store)
	svc := ledger.New(store, time.UTC)
	ctx := context.Background()

	err := r.HandleMutation(ctx, queue.NewAddMutation(queue.AddPayload{
		Amount: 50, RawCategory: "Supermercado", Date: "2026-01-05",
	}))
	if err != nil {
		t.Fatalf("replay add: %v", err)
	}

	movs, err := svc.GetMovements(ctx, "")
	if err != nil || len(movs) != 1 {
		t.Fatalf("after add: movs=%v err=%v", movs, err)
	}
	id := movs[0].ID

	note := "groceries"
	if err := r.HandleMutation(ctx, queue.NewUpdateMutation(id, queue.PatchPayload{Note: &note})); err != nil {
		t.Fatalf("replay update: %v", err)
	}
	movs, _ = svc.GetMovements(ctx, "")
	if movs[0].Note != "groceries" {
		t.Errorf("note = %q after replayed update", movs[0].Note)
	}

	if err := r.HandleMutation(ctx, queue.NewDeleteMutation(id)); err != nil {
		t.Fatalf("replay delete: %v", err)
	}
	movs, _ = svc.GetMovements(ctx, "")
	if len(movs) != 0 {
		t.Errorf("movement survived replayed delete: %v", movs)
	}
}

func TestReplayDeleteMissingIsAcked(t *testing.T) {
	r := newReplayer(memory.NewWithDefaults())
	if err := r.HandleMutation(context.Background(), queue.NewDeleteMutation("nope")); err != nil {
		t.Errorf("delete of a missing id must ack, got %v", err)
	}
}

func TestReplayPermanentFailuresAreAcked(t *testing.T) {
	r := newReplayer(memory.NewWithDefaults())
	ctx := context.Background()

	if err := r.HandleMutation(ctx, queue.NewAddMutation(queue.AddPayload{Amount: -5})); err != nil {
		t.Errorf("validation failure must ack, got %v", err)
	}
	note := "x"
	if err := r.HandleMutation(ctx, queue.NewUpdateMutation("nope", queue.PatchPayload{Note: &note})); err != nil {
		t.Errorf("update of unknown id must ack, got %v", err)
	}
	if err := r.HandleMutation(ctx, &queue.Mutation{Op: "upsert"}); err != nil {
		t.Errorf("unknown op must ack, got %v", err)
	}
}

func TestReplayRetryableFailuresRequeue(t *testing.T) {
	ctx := context.Background()

	t.Run("writes disabled", func(t *testing.T) {
		store := memory.NewWithDefaults()
		store.Seed(tabular.TableSettings, []string{"Key", "Value"}, []tabular.Row{
			{"Key": core.SettingWritesEnabled, "Value": "FALSE"},
		})
		r := newReplayer(store)
		if err := r.HandleMutation(ctx, queue.NewAddMutation(queue.AddPayload{Amount: 5})); err == nil {
			t.Error("writes disabled must requeue, not ack")
		}
	})

	t.Run("store structurally broken", func(t *testing.T) {
		store := memory.NewWithDefaults()
		store.Drop(tabular.TableSettings)
		r := newReplayer(store)
		if err := r.HandleMutation(ctx, queue.NewDeleteMutation("1")); err == nil {
			t.Error("structural failure must requeue, not ack")
		}
	})
}
