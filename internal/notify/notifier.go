// Package notify routes decoded Alertmanager payloads to notification
// channels and dispatches deliveries asynchronously with retries and
// per-alert accounting.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/promfleet/promfleet/internal/model"
)

// Notifier delivers one alert group to one destination. Implementations are
// stateless with respect to the alert; target carries the channel-specific
// destination (address, webhook URL, integration key, chat id).
type Notifier interface {
	Send(ctx context.Context, target string, data *model.WebhookMessage) error
}

// Registry maps sender kinds to notifiers. Kinds are registered at startup;
// lookups are read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

func (r *Registry) Register(kind string, n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[kind] = n
}

func (r *Registry) Get(kind string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[kind]
	if !ok {
		return nil, fmt.Errorf("no notifier registered for kind %q", kind)
	}
	return n, nil
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.notifiers))
	for k := range r.notifiers {
		kinds = append(kinds, k)
	}
	return kinds
}
