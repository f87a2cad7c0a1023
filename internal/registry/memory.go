package registry

import (
	"context"
	"sync"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/targets"
)

// MemStore is an in-memory Store used by tests. It keeps the same identity
// rules as the database (globally unique rule names, polymorphic owners) but
// skips everything transactional.
type MemStore struct {
	mu sync.Mutex

	Shards      []model.Shard
	Services    []model.Service
	Projects    []model.Project
	Farms       []model.Farm
	Hosts       []model.Host
	Exporters   []model.Exporter
	URLs        []model.URL
	Rules       []*model.Rule
	Senders     []*model.Sender
	Users       []model.User
	Alerts      map[string]*model.Alert
	AlertLabels map[string]model.KV
	AlertErrors []model.AlertError
	Audits      []model.Audit

	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		Alerts:      map[string]*model.Alert{},
		AlertLabels: map[string]model.KV{},
		nextID:      1,
	}
}

func (m *MemStore) nextSeq() int64 {
	id := m.nextID
	m.nextID++
	return id
}

// ---- render sources ----

func (m *MemStore) ListShards(ctx context.Context) ([]model.Shard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Shard(nil), m.Shards...), nil
}

func (m *MemStore) ListProxyShards(ctx context.Context) ([]model.Shard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Shard
	for _, sh := range m.Shards {
		if sh.Proxy {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (m *MemStore) ListExporterEntries(ctx context.Context) ([]targets.ExporterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []targets.ExporterEntry
	for _, e := range m.Exporters {
		if !e.Enabled {
			continue
		}
		p := m.projectByID(e.ProjectID)
		if p == nil || p.FarmID == nil {
			continue
		}
		sv := m.serviceByID(p.ServiceID)
		farm := m.farmByID(*p.FarmID)
		if sv == nil || farm == nil {
			continue
		}
		entry := targets.ExporterEntry{
			Shard:      m.shardName(sv.ShardID),
			Service:    sv.Name,
			Project:    p.Name,
			Farm:       farm.Name,
			FarmSource: farm.Source,
			Job:        e.Job,
			Port:       e.Port,
			Path:       e.Path,
			Scheme:     e.Scheme,
		}
		for _, h := range m.Hosts {
			if h.FarmID == farm.ID {
				entry.Hosts = append(entry.Hosts, h.Name)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *MemStore) ListURLEntries(ctx context.Context) ([]targets.URLEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []targets.URLEntry
	for _, u := range m.URLs {
		p := m.projectByID(u.ProjectID)
		if p == nil {
			continue
		}
		sv := m.serviceByID(p.ServiceID)
		if sv == nil {
			continue
		}
		out = append(out, targets.URLEntry{
			Shard:   m.shardName(sv.ShardID),
			Service: sv.Name,
			Project: p.Name,
			Probe:   u.Probe,
			URL:     u.URL,
		})
	}
	return out, nil
}

func (m *MemStore) ListEnabledRules(ctx context.Context) ([]*model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Rule
	for _, r := range m.Rules {
		if !r.Enabled {
			continue
		}
		cp := *r
		cp.Overrides = nil
		for _, child := range m.Rules {
			if child.ParentID != nil && *child.ParentID == r.ID {
				ccp := *child
				cp.Overrides = append(cp.Overrides, &ccp)
			}
		}
		out = append(out, &cp)
	}
	return out, nil
}

// ---- rules ----

func (m *MemStore) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Rules {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) RuleNameExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Rules {
		if r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) CreateRule(ctx context.Context, r *model.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Rules {
		if existing.Name == r.Name {
			return ErrDuplicateName
		}
	}
	r.ID = m.nextSeq()
	cp := *r
	m.Rules = append(m.Rules, &cp)
	return nil
}

func (m *MemStore) UpdateRule(ctx context.Context, r *model.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.Rules {
		if existing.ID == r.ID {
			cp := *r
			m.Rules[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) DeleteRule(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.Rules[:0]
	for _, r := range m.Rules {
		if r.ID != id && (r.ParentID == nil || *r.ParentID != id) {
			out = append(out, r)
		}
	}
	m.Rules = out
	return nil
}

func (m *MemStore) OverrideFor(ctx context.Context, parentID int64, owner model.ObjectRef) (*model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Rules {
		if r.ParentID != nil && *r.ParentID == parentID && r.Owner == owner {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ---- routing lookups ----

func (m *MemStore) FindService(ctx context.Context, name string) (*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sv := range m.Services {
		if sv.Name == name {
			cp := sv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) FindProject(ctx context.Context, name string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Projects {
		if p.Name == name {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) GetService(ctx context.Context, id int64) (*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sv := m.serviceByID(id); sv != nil {
		cp := *sv
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.projectByID(id); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemStore) OwnerName(ctx context.Context, ref model.ObjectRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ref.Kind {
	case model.KindService:
		if sv := m.serviceByID(ref.ID); sv != nil {
			return sv.Name, nil
		}
	case model.KindProject:
		if p := m.projectByID(ref.ID); p != nil {
			return p.Name, nil
		}
	case model.KindUser:
		for _, u := range m.Users {
			if u.ID == ref.ID {
				return u.Username, nil
			}
		}
	default:
		return string(model.KindSite), nil
	}
	return "", ErrNotFound
}

func (m *MemStore) SendersFor(ctx context.Context, ref model.ObjectRef) ([]*model.Sender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Sender
	for _, sn := range m.Senders {
		if sn.Enabled && sn.Owner == ref {
			cp := *sn
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) CreateSender(ctx context.Context, sn *model.Sender) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sn.ID = m.nextSeq()
	cp := *sn
	m.Senders = append(m.Senders, &cp)
	return nil
}

// ---- trigger support ----

func (m *MemStore) ProjectHasHosts(ctx context.Context, projectID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projectByID(projectID)
	if p == nil || p.FarmID == nil {
		return false, nil
	}
	for _, h := range m.Hosts {
		if h.FarmID == *p.FarmID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) ProjectHasExporters(ctx context.Context, projectID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Exporters {
		if e.ProjectID == projectID && e.Enabled {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) ProjectIDsForFarm(ctx context.Context, farmID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, p := range m.Projects {
		if p.FarmID != nil && *p.FarmID == farmID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *MemStore) GetExporter(ctx context.Context, id int64) (*model.Exporter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Exporters {
		if e.ID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ---- alerts ----

func (m *MemStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.Alerts[a.ID] = &cp
	return nil
}

func (m *MemStore) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) DeleteAlert(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Alerts, id)
	delete(m.AlertLabels, id)
	return nil
}

func (m *MemStore) IncAlertSent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Alerts[id]; ok {
		a.SentCount++
	}
	return nil
}

func (m *MemStore) IncAlertError(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Alerts[id]; ok {
		a.ErrorCount++
	}
	return nil
}

func (m *MemStore) InsertAlertError(ctx context.Context, e *model.AlertError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlertErrors = append(m.AlertErrors, *e)
	return nil
}

func (m *MemStore) InsertAlertLabels(ctx context.Context, alertID string, labels model.KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := model.KV{}
	for k, v := range labels {
		cp[k] = v
	}
	m.AlertLabels[alertID] = cp
	return nil
}

// ---- audit ----

func (m *MemStore) InsertAudit(ctx context.Context, a *model.Audit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Audits = append(m.Audits, *a)
	return nil
}

// ---- internal lookups, caller holds mu ----

func (m *MemStore) projectByID(id int64) *model.Project {
	for i := range m.Projects {
		if m.Projects[i].ID == id {
			return &m.Projects[i]
		}
	}
	return nil
}

func (m *MemStore) serviceByID(id int64) *model.Service {
	for i := range m.Services {
		if m.Services[i].ID == id {
			return &m.Services[i]
		}
	}
	return nil
}

func (m *MemStore) farmByID(id int64) *model.Farm {
	for i := range m.Farms {
		if m.Farms[i].ID == id {
			return &m.Farms[i]
		}
	}
	return nil
}

func (m *MemStore) shardName(id int64) string {
	for _, sh := range m.Shards {
		if sh.ID == id {
			return sh.Name
		}
	}
	return ""
}
