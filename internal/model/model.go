package model

import (
	"time"
)

// ObjectKind tags the owner side of a polymorphic attachment. Rules and
// senders can hang off different entity types; the kind plus the owning id
// resolves the concrete row.
type ObjectKind string

const (
	KindSite    ObjectKind = "site"
	KindService ObjectKind = "service"
	KindProject ObjectKind = "project"
	KindUser    ObjectKind = "user"
)

// ObjectRef is the tagged union used for polymorphic attachment.
type ObjectRef struct {
	Kind ObjectKind
	ID   int64
}

// Shard is a Prometheus server group. Services register against exactly one
// shard; queries can be proxied to shards flagged Proxy.
type Shard struct {
	ID            int64
	Name          string
	URL           string
	Proxy         bool
	Enabled       bool
	Authorization string
}

// Service is a logical application owning projects and notification channels.
type Service struct {
	ID      int64
	Name    string
	Owner   string
	ShardID int64
}

// Project is a deployable unit, optionally linked to a farm of hosts.
type Project struct {
	ID        int64
	Name      string
	ServiceID int64
	FarmID    *int64
}

// Farm is a named, sourced set of hosts.
type Farm struct {
	ID     int64
	Name   string
	Source string
}

// Host is a member of a farm, unique per (name, farm).
type Host struct {
	ID     int64
	Name   string
	FarmID int64
}

// Exporter describes one scrape target attached to a project. Combined with
// the project's farm hosts it produces concrete host:port targets.
type Exporter struct {
	ID        int64
	Job       string
	Port      int
	Path      string
	Scheme    string
	Enabled   bool
	ProjectID int64
}

// URL is a blackbox-probe target attached to a project.
type URL struct {
	ID        int64
	URL       string
	Probe     string
	ProjectID int64
}

// Rule is an alerting rule. Name is globally unique; ParentID links an
// override copy back to the rule it shadows at a broader scope.
type Rule struct {
	ID          int64
	Name        string
	Clause      string
	Duration    string
	Enabled     bool
	ParentID    *int64
	Owner       ObjectRef
	Description string

	// OwnerName is the display name of the owning object, resolved by the
	// store for rendering and macro expansion.
	OwnerName string

	Labels      map[string]string
	Annotations map[string]string

	// Overrides are the child copies of this rule at more specific scopes.
	Overrides []*Rule
}

// Sender binds a notification channel to a service, project, or user.
// Kind selects the registered notifier; Value is channel specific (address,
// webhook URL, integration key, chat id, username for kind "user").
type Sender struct {
	ID           int64
	Kind         string
	Value        string
	Alias        string
	Owner        ObjectRef
	OwnerUserID  *int64
	Enabled      bool
	FilterPolicy string // "all" (default) or "any"
	Filters      []Filter
}

// Filter is one label match condition attached to a sender.
type Filter struct {
	Name  string
	Value string
}

// Matches reports whether the sender's filters accept the given label set.
// A sender with no filters accepts everything. The default policy requires
// every filter to match; policy "any" requires at least one.
func (s *Sender) Matches(labels map[string]string) bool {
	if len(s.Filters) == 0 {
		return true
	}
	if s.FilterPolicy == "any" {
		for _, f := range s.Filters {
			if labels[f.Name] == f.Value {
				return true
			}
		}
		return false
	}
	for _, f := range s.Filters {
		if labels[f.Name] != f.Value {
			return false
		}
	}
	return true
}

// User is the minimal account shape needed to resolve user-attached senders.
type User struct {
	ID       int64
	Username string
	Email    string
}

// Alert is a persisted record of one received webhook payload. The body is
// kept verbatim; only the counters are updated after creation.
type Alert struct {
	ID         string
	Created    time.Time
	Body       string
	SentCount  int
	ErrorCount int
}

// AlertError records one failed delivery attempt for later inspection.
type AlertError struct {
	AlertID string
	Created time.Time
	Kind    string
	Target  string
	Message string
}

// Audit is an append-only log entry referencing a mutated entity.
type Audit struct {
	ID      string
	Created time.Time
	Body    string
	Owner   ObjectRef
	Data    string
	Old     string
}
