package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/registry"
	"github.com/promfleet/promfleet/internal/util"
)

type scriptedNotifier struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (n *scriptedNotifier) Send(ctx context.Context, target string, data *model.WebhookMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var err error
	if n.calls < len(n.errs) {
		err = n.errs[n.calls]
	}
	n.calls++
	return err
}

func newTestDispatcher(n Notifier, store AlertWriter) *Dispatcher {
	reg := NewRegistry()
	reg.Register("test", n)
	d := NewDispatcher(reg, store, 16, 3, time.Millisecond)
	d.sleepFn = func(ctx context.Context, dur time.Duration) {}
	return d
}

func delivery(alertID string) Delivery {
	return Delivery{AlertID: alertID, Kind: "test", Target: "dest", Data: &model.WebhookMessage{}}
}

func TestDeliverRetriesTransientThenSucceeds(t *testing.T) {
	store := registry.NewMemStore()
	store.Alerts["a1"] = &model.Alert{ID: "a1"}

	n := &scriptedNotifier{errs: []error{
		&util.StatusError{Code: 503, URL: "http://dest"},
		&util.StatusError{Code: 429, URL: "http://dest"},
		nil,
	}}
	d := newTestDispatcher(n, store)

	d.deliver(context.Background(), delivery("a1"))

	if n.calls != 3 {
		t.Fatalf("calls = %d, want 3", n.calls)
	}
	if store.Alerts["a1"].SentCount != 1 {
		t.Errorf("sent_count = %d, want 1", store.Alerts["a1"].SentCount)
	}
	if store.Alerts["a1"].ErrorCount != 0 {
		t.Errorf("error_count = %d, want 0", store.Alerts["a1"].ErrorCount)
	}
}

func TestDeliverPermanentFailureNoRetry(t *testing.T) {
	store := registry.NewMemStore()
	store.Alerts["a1"] = &model.Alert{ID: "a1"}

	n := &scriptedNotifier{errs: []error{
		&util.StatusError{Code: 400, URL: "http://dest", Body: "bad payload"},
	}}
	d := newTestDispatcher(n, store)

	d.deliver(context.Background(), delivery("a1"))

	if n.calls != 1 {
		t.Fatalf("calls = %d, 4xx must not retry", n.calls)
	}
	if store.Alerts["a1"].ErrorCount != 1 {
		t.Errorf("error_count = %d, want 1", store.Alerts["a1"].ErrorCount)
	}
	if len(store.AlertErrors) != 1 {
		t.Fatalf("alert errors = %d, want 1", len(store.AlertErrors))
	}
	e := store.AlertErrors[0]
	if e.Kind != "test" || e.Target != "dest" || e.AlertID != "a1" {
		t.Errorf("alert error fields = %+v", e)
	}
}

func TestDeliverExhaustsRetries(t *testing.T) {
	store := registry.NewMemStore()
	store.Alerts["a1"] = &model.Alert{ID: "a1"}

	n := &scriptedNotifier{errs: []error{
		&util.StatusError{Code: 503},
		&util.StatusError{Code: 503},
		&util.StatusError{Code: 503},
		&util.StatusError{Code: 503},
	}}
	d := newTestDispatcher(n, store)

	d.deliver(context.Background(), delivery("a1"))

	if n.calls != 3 {
		t.Fatalf("calls = %d, want maxAttempts", n.calls)
	}
	if store.Alerts["a1"].ErrorCount != 1 {
		t.Errorf("error_count = %d, want 1 after exhaustion", store.Alerts["a1"].ErrorCount)
	}
}

func TestDeliverUnknownKind(t *testing.T) {
	store := registry.NewMemStore()
	store.Alerts["a1"] = &model.Alert{ID: "a1"}

	d := NewDispatcher(NewRegistry(), store, 16, 3, time.Millisecond)
	d.deliver(context.Background(), delivery("a1"))

	if store.Alerts["a1"].ErrorCount != 1 {
		t.Errorf("unknown kind must be recorded as a delivery error")
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &util.StatusError{Code: 429}, true},
		{"502", &util.StatusError{Code: 502}, true},
		{"503", &util.StatusError{Code: 503}, true},
		{"504", &util.StatusError{Code: 504}, true},
		{"400", &util.StatusError{Code: 400}, false},
		{"404", &util.StatusError{Code: 404}, false},
		{"500", &util.StatusError{Code: 500}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryable(tc.err); got != tc.want {
				t.Errorf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, registry.NewMemStore(), 1, 1, time.Millisecond)

	if err := d.Enqueue(delivery("a1")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := d.Enqueue(delivery("a2")); err == nil {
		t.Fatal("full queue must surface an error")
	}
}
