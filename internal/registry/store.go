// Package registry is the mutation and query layer over the relational
// model. Mutations go through Service, which records audit entries and makes
// the explicit "does this change require a rewrite" decision before queueing
// work on the signal bus.
package registry

import (
	"context"
	"errors"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/targets"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName indicates a unique-name collision.
	ErrDuplicateName = errors.New("duplicate name")
)

// Store abstracts persistence. PgStore is the production implementation;
// MemStore backs tests.
type Store interface {
	// render sources
	ListShards(ctx context.Context) ([]model.Shard, error)
	ListProxyShards(ctx context.Context) ([]model.Shard, error)
	ListExporterEntries(ctx context.Context) ([]targets.ExporterEntry, error)
	ListURLEntries(ctx context.Context) ([]targets.URLEntry, error)
	ListEnabledRules(ctx context.Context) ([]*model.Rule, error)

	// rules
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	RuleNameExists(ctx context.Context, name string) (bool, error)
	CreateRule(ctx context.Context, r *model.Rule) error
	UpdateRule(ctx context.Context, r *model.Rule) error
	DeleteRule(ctx context.Context, id int64) error
	OverrideFor(ctx context.Context, parentID int64, owner model.ObjectRef) (*model.Rule, error)

	// routing lookups
	FindService(ctx context.Context, name string) (*model.Service, error)
	FindProject(ctx context.Context, name string) (*model.Project, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
	OwnerName(ctx context.Context, ref model.ObjectRef) (string, error)
	SendersFor(ctx context.Context, ref model.ObjectRef) ([]*model.Sender, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateSender(ctx context.Context, s *model.Sender) error

	// trigger support
	ProjectHasHosts(ctx context.Context, projectID int64) (bool, error)
	ProjectHasExporters(ctx context.Context, projectID int64) (bool, error)
	ProjectIDsForFarm(ctx context.Context, farmID int64) ([]int64, error)
	GetExporter(ctx context.Context, id int64) (*model.Exporter, error)
	GetProject(ctx context.Context, id int64) (*model.Project, error)

	// alerts
	CreateAlert(ctx context.Context, a *model.Alert) error
	GetAlert(ctx context.Context, id string) (*model.Alert, error)
	DeleteAlert(ctx context.Context, id string) error
	IncAlertSent(ctx context.Context, id string) error
	IncAlertError(ctx context.Context, id string) error
	InsertAlertError(ctx context.Context, e *model.AlertError) error
	InsertAlertLabels(ctx context.Context, alertID string, labels model.KV) error

	// audit
	InsertAudit(ctx context.Context, a *model.Audit) error
}
