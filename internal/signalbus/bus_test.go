package signalbus

import (
	"context"
	"errors"
	"testing"
)

func TestSweepRunsActionOncePerBurst(t *testing.T) {
	ctx := context.Background()
	bus := New(NewMemoryStore())

	var runs int
	bus.Register(KindConfig, func(ctx context.Context) error {
		runs++
		return nil
	})

	for i := 0; i < 10; i++ {
		bus.Queue(ctx, KindConfig)
	}
	bus.Sweep(ctx)
	if runs != 1 {
		t.Fatalf("runs = %d, want 1 after burst of queues", runs)
	}

	bus.Sweep(ctx)
	if runs != 1 {
		t.Fatalf("runs = %d, sweep without queue must be a no-op", runs)
	}
}

func TestSweepOnlyTouchesQueuedKinds(t *testing.T) {
	ctx := context.Background()
	bus := New(NewMemoryStore())

	var configRuns, rulesRuns int
	bus.Register(KindConfig, func(ctx context.Context) error { configRuns++; return nil })
	bus.Register(KindRules, func(ctx context.Context) error { rulesRuns++; return nil })

	bus.Queue(ctx, KindRules)
	bus.Sweep(ctx)

	if configRuns != 0 {
		t.Errorf("config action ran without being queued")
	}
	if rulesRuns != 1 {
		t.Errorf("rules runs = %d, want 1", rulesRuns)
	}
}

func TestForceRunsImmediatelyAndConsumesFlag(t *testing.T) {
	ctx := context.Background()
	bus := New(NewMemoryStore())

	var runs int
	bus.Register(KindRules, func(ctx context.Context) error { runs++; return nil })

	bus.Queue(ctx, KindRules)
	if err := bus.Force(ctx, KindRules); err != nil {
		t.Fatalf("force: %v", err)
	}
	if runs != 1 {
		t.Fatalf("runs = %d after force", runs)
	}

	// the pending flag was consumed by Force; a sweep must not repeat
	bus.Sweep(ctx)
	if runs != 1 {
		t.Fatalf("runs = %d, sweep repeated forced work", runs)
	}
}

func TestForceReturnsActionError(t *testing.T) {
	ctx := context.Background()
	bus := New(NewMemoryStore())
	boom := errors.New("boom")
	bus.Register(KindURLs, func(ctx context.Context) error { return boom })

	if err := bus.Force(ctx, KindURLs); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestMemoryStoreClearReportsPriorState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	was, err := store.Clear(ctx, KindConfig)
	if err != nil || was {
		t.Fatalf("clear on empty = (%v, %v)", was, err)
	}
	if err := store.Set(ctx, KindConfig); err != nil {
		t.Fatal(err)
	}
	was, err = store.Clear(ctx, KindConfig)
	if err != nil || !was {
		t.Fatalf("clear after set = (%v, %v)", was, err)
	}
}
