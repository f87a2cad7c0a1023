package notify

import (
	"context"
	"testing"
	"time"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/registry"
)

func seedStore() *registry.MemStore {
	store := registry.NewMemStore()
	store.Shards = []model.Shard{{ID: 1, Name: "prom-1", URL: "http://prom-1:9090"}}
	store.Services = []model.Service{{ID: 1, Name: "shop", ShardID: 1}}
	farmID := int64(1)
	store.Farms = []model.Farm{{ID: 1, Name: "checkout-web"}}
	store.Projects = []model.Project{{ID: 1, Name: "checkout", ServiceID: 1, FarmID: &farmID}}
	return store
}

func webhookFor(labels model.KV) *model.WebhookMessage {
	return &model.WebhookMessage{
		Status:       "firing",
		CommonLabels: labels,
		Alerts:       []model.WebhookAlert{{Status: "firing", Labels: labels}},
	}
}

func seedAlert(store *registry.MemStore, id string) {
	store.Alerts[id] = &model.Alert{ID: id, Created: time.Now()}
}

func TestRouteHeartbeatSuppression(t *testing.T) {
	store := seedStore()
	store.Senders = []*model.Sender{
		{ID: 1, Kind: "webhook", Value: "http://hook", Owner: model.ObjectRef{Kind: model.KindProject, ID: 1}, Enabled: true},
	}
	seedAlert(store, "a1")

	router := NewRouter(store, "http://site", map[string][]string{"heartbeat": {"true"}})
	deliveries, err := router.Route(context.Background(), "a1",
		webhookFor(model.KV{"project": "checkout", "heartbeat": "true"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(deliveries) != 0 {
		t.Fatalf("heartbeat produced %d deliveries", len(deliveries))
	}
	if _, ok := store.Alerts["a1"]; ok {
		t.Error("heartbeat alert row was not deleted")
	}
}

func TestRouteProjectIncludesServiceSenders(t *testing.T) {
	store := seedStore()
	store.Senders = []*model.Sender{
		{ID: 1, Kind: "webhook", Value: "http://project-hook", Owner: model.ObjectRef{Kind: model.KindProject, ID: 1}, Enabled: true},
		{ID: 2, Kind: "slack", Value: "http://service-hook", Owner: model.ObjectRef{Kind: model.KindService, ID: 1}, Enabled: true},
	}
	seedAlert(store, "a1")

	router := NewRouter(store, "http://site", nil)
	data := webhookFor(model.KV{"project": "checkout"})
	deliveries, err := router.Route(context.Background(), "a1", data)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("deliveries = %d, want project + service", len(deliveries))
	}
	if data.CommonAnnotations["project"] != "http://site/project/1" {
		t.Errorf("project deep link = %q", data.CommonAnnotations["project"])
	}
	if data.CommonAnnotations["service"] != "http://site/service/1" {
		t.Errorf("service deep link = %q", data.CommonAnnotations["service"])
	}
}

func TestRouteUserExpansionOneLevel(t *testing.T) {
	store := seedStore()
	store.Users = []model.User{{ID: 9, Username: "alice", Email: "alice@example.com"}}
	userRef := model.ObjectRef{Kind: model.KindUser, ID: 9}
	store.Senders = []*model.Sender{
		{ID: 1, Kind: "user", Value: "alice", Owner: model.ObjectRef{Kind: model.KindProject, ID: 1}, Enabled: true},
		{ID: 2, Kind: "email", Value: "alice@example.com", Owner: userRef, Enabled: true},
		{ID: 3, Kind: "slack", Value: "http://alice-slack", Owner: userRef, Enabled: true},
		// nested user subscriptions do not recurse
		{ID: 4, Kind: "user", Value: "bob", Owner: userRef, Enabled: true},
	}
	seedAlert(store, "a1")

	router := NewRouter(store, "http://site", nil)
	deliveries, err := router.Route(context.Background(), "a1", webhookFor(model.KV{"project": "checkout"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("deliveries = %d, want alice's email and slack only", len(deliveries))
	}
	kinds := map[string]bool{}
	for _, d := range deliveries {
		kinds[d.Kind] = true
	}
	if !kinds["email"] || !kinds["slack"] || kinds["user"] {
		t.Errorf("unexpected delivery kinds: %v", kinds)
	}
}

func TestRouteFiltersSkipSilently(t *testing.T) {
	store := seedStore()
	store.Senders = []*model.Sender{
		{
			ID: 1, Kind: "webhook", Value: "http://hook",
			Owner: model.ObjectRef{Kind: model.KindProject, ID: 1}, Enabled: true,
			Filters: []model.Filter{{Name: "severity", Value: "critical"}},
		},
	}
	seedAlert(store, "a1")

	router := NewRouter(store, "http://site", nil)
	deliveries, err := router.Route(context.Background(), "a1",
		webhookFor(model.KV{"project": "checkout", "severity": "warning"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(deliveries) != 0 {
		t.Fatalf("filtered sender still delivered: %v", deliveries)
	}
}

func TestRouteDeduplicatesDestinations(t *testing.T) {
	store := seedStore()
	store.Senders = []*model.Sender{
		{ID: 1, Kind: "webhook", Value: "http://same", Owner: model.ObjectRef{Kind: model.KindProject, ID: 1}, Enabled: true},
		{ID: 2, Kind: "webhook", Value: "http://same", Owner: model.ObjectRef{Kind: model.KindService, ID: 1}, Enabled: true},
	}
	seedAlert(store, "a1")

	router := NewRouter(store, "http://site", nil)
	deliveries, err := router.Route(context.Background(), "a1", webhookFor(model.KV{"project": "checkout"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, duplicate destination not collapsed", len(deliveries))
	}
}

func TestRouteServiceLabelOnly(t *testing.T) {
	store := seedStore()
	store.Senders = []*model.Sender{
		{ID: 1, Kind: "slack", Value: "http://service-hook", Owner: model.ObjectRef{Kind: model.KindService, ID: 1}, Enabled: true},
	}
	seedAlert(store, "a1")

	router := NewRouter(store, "http://site", nil)
	deliveries, err := router.Route(context.Background(), "a1", webhookFor(model.KV{"service": "shop"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(deliveries))
	}
}
