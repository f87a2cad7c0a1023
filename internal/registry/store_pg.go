package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"
	promModel "github.com/prometheus/common/model"

	"github.com/promfleet/promfleet/internal/database"
	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/targets"
)

// PgStore is the PostgreSQL-backed Store implementation.
type PgStore struct {
	DB *database.Database
}

func NewPgStore(db *database.Database) *PgStore { return &PgStore{DB: db} }

// durationToPgInterval converts a rule duration for the INTERVAL column.
func durationToPgInterval(d time.Duration) pgtype.Interval {
	return pgtype.Interval{Microseconds: d.Microseconds(), Valid: true}
}

func parseRuleDuration(s string) (pgtype.Interval, error) {
	if s == "" {
		return pgtype.Interval{Valid: true}, nil
	}
	d, err := promModel.ParseDuration(s)
	if err != nil {
		return pgtype.Interval{}, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return durationToPgInterval(time.Duration(d)), nil
}

func intervalToRuleDuration(iv pgtype.Interval) string {
	us := iv.Microseconds + int64(iv.Days)*24*int64(time.Hour/time.Microsecond)
	if us == 0 {
		return ""
	}
	return promModel.Duration(time.Duration(us) * time.Microsecond).String()
}

// ---- render sources ----

// "authorization" is a reserved word in PostgreSQL and must stay quoted.
const (
	listShardsSQL      = `SELECT id, name, url, proxy, enabled, "authorization" FROM shards ORDER BY name`
	listProxyShardsSQL = `SELECT id, name, url, proxy, enabled, "authorization" FROM shards WHERE proxy ORDER BY name`
)

func (s *PgStore) ListShards(ctx context.Context) ([]model.Shard, error) {
	return s.listShards(ctx, listShardsSQL)
}

func (s *PgStore) ListProxyShards(ctx context.Context) ([]model.Shard, error) {
	return s.listShards(ctx, listProxyShardsSQL)
}

func (s *PgStore) listShards(ctx context.Context, q string) ([]model.Shard, error) {
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	defer rows.Close()
	var out []model.Shard
	for rows.Next() {
		var sh model.Shard
		if err := rows.Scan(&sh.ID, &sh.Name, &sh.URL, &sh.Proxy, &sh.Enabled, &sh.Authorization); err != nil {
			return nil, fmt.Errorf("scan shard: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *PgStore) ListExporterEntries(ctx context.Context) ([]targets.ExporterEntry, error) {
	const q = `
	SELECT sh.name, sv.name, p.name, f.name, f.source, e.job, e.port, e.path, e.scheme,
	       COALESCE(array_agg(h.name ORDER BY h.name) FILTER (WHERE h.name IS NOT NULL), '{}')
	FROM exporters e
	JOIN projects p ON p.id = e.project_id
	JOIN services sv ON sv.id = p.service_id
	JOIN shards sh ON sh.id = sv.shard_id
	JOIN farms f ON f.id = p.farm_id
	LEFT JOIN hosts h ON h.farm_id = f.id
	WHERE e.enabled AND p.farm_id IS NOT NULL
	GROUP BY sh.name, sv.name, p.name, f.name, f.source, e.job, e.port, e.path, e.scheme
	ORDER BY sv.name, p.name, e.job, e.port
	`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list exporter entries: %w", err)
	}
	defer rows.Close()
	var out []targets.ExporterEntry
	for rows.Next() {
		var e targets.ExporterEntry
		if err := rows.Scan(&e.Shard, &e.Service, &e.Project, &e.Farm, &e.FarmSource,
			&e.Job, &e.Port, &e.Path, &e.Scheme, pq.Array(&e.Hosts)); err != nil {
			return nil, fmt.Errorf("scan exporter entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PgStore) ListURLEntries(ctx context.Context) ([]targets.URLEntry, error) {
	const q = `
	SELECT sh.name, sv.name, p.name, u.probe, u.url
	FROM urls u
	JOIN projects p ON p.id = u.project_id
	JOIN services sv ON sv.id = p.service_id
	JOIN shards sh ON sh.id = sv.shard_id
	ORDER BY sv.name, p.name, u.url
	`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list url entries: %w", err)
	}
	defer rows.Close()
	var out []targets.URLEntry
	for rows.Next() {
		var e targets.URLEntry
		if err := rows.Scan(&e.Shard, &e.Service, &e.Project, &e.Probe, &e.URL); err != nil {
			return nil, fmt.Errorf("scan url entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- rules ----

const ruleColumns = `
	r.id, r.name, r.clause, r.duration, r.enabled, r.parent_id,
	r.owner_kind, r.owner_id, r.description,
	CASE r.owner_kind
		WHEN 'service' THEN sv.name
		WHEN 'project' THEN p.name
		ELSE 'site'
	END AS owner_name
`

const ruleJoins = `
	LEFT JOIN services sv ON r.owner_kind = 'service' AND r.owner_id = sv.id
	LEFT JOIN projects p ON r.owner_kind = 'project' AND r.owner_id = p.id
`

func (s *PgStore) ListEnabledRules(ctx context.Context) ([]*model.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM rules r ` + ruleJoins + ` WHERE r.enabled ORDER BY r.name`
	ruleSet, err := s.queryRules(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.attachRuleChildren(ctx, ruleSet); err != nil {
		return nil, err
	}
	return ruleSet, nil
}

func (s *PgStore) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM rules r ` + ruleJoins + ` WHERE r.id = $1`
	ruleSet, err := s.queryRules(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if len(ruleSet) == 0 {
		return nil, fmt.Errorf("rule %d: %w", id, ErrNotFound)
	}
	if err := s.attachRuleChildren(ctx, ruleSet); err != nil {
		return nil, err
	}
	return ruleSet[0], nil
}

func (s *PgStore) queryRules(ctx context.Context, q string, args ...any) ([]*model.Rule, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	var out []*model.Rule
	for rows.Next() {
		var r model.Rule
		var duration pgtype.Interval
		var kind string
		if err := rows.Scan(&r.ID, &r.Name, &r.Clause, &duration, &r.Enabled, &r.ParentID,
			&kind, &r.Owner.ID, &r.Description, &r.OwnerName); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.Owner.Kind = model.ObjectKind(kind)
		r.Duration = intervalToRuleDuration(duration)
		r.Labels = map[string]string{}
		r.Annotations = map[string]string{}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// attachRuleChildren loads labels, annotations, and override copies for the
// given rules.
func (s *PgStore) attachRuleChildren(ctx context.Context, ruleSet []*model.Rule) error {
	if len(ruleSet) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Rule, len(ruleSet))
	ids := make([]int64, 0, len(ruleSet))
	for _, r := range ruleSet {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT rule_id, name, value FROM rule_labels WHERE rule_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query rule labels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name, value string
		if err := rows.Scan(&id, &name, &value); err != nil {
			return fmt.Errorf("scan rule label: %w", err)
		}
		byID[id].Labels[name] = value
	}
	if err := rows.Err(); err != nil {
		return err
	}

	arows, err := s.DB.QueryContext(ctx,
		`SELECT rule_id, name, value FROM rule_annotations WHERE rule_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query rule annotations: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var id int64
		var name, value string
		if err := arows.Scan(&id, &name, &value); err != nil {
			return fmt.Errorf("scan rule annotation: %w", err)
		}
		byID[id].Annotations[name] = value
	}
	if err := arows.Err(); err != nil {
		return err
	}

	q := `SELECT r.parent_id, ` + ruleColumns + ` FROM rules r ` + ruleJoins + ` WHERE r.parent_id = ANY($1)`
	orows, err := s.DB.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query rule overrides: %w", err)
	}
	defer orows.Close()
	for orows.Next() {
		var parentID int64
		var r model.Rule
		var duration pgtype.Interval
		var kind string
		if err := orows.Scan(&parentID, &r.ID, &r.Name, &r.Clause, &duration, &r.Enabled, &r.ParentID,
			&kind, &r.Owner.ID, &r.Description, &r.OwnerName); err != nil {
			return fmt.Errorf("scan rule override: %w", err)
		}
		r.Owner.Kind = model.ObjectKind(kind)
		r.Duration = intervalToRuleDuration(duration)
		byID[parentID].Overrides = append(byID[parentID].Overrides, &r)
	}
	return orows.Err()
}

func (s *PgStore) RuleNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM rules WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("rule name exists: %w", err)
	}
	return exists, nil
}

func (s *PgStore) CreateRule(ctx context.Context, r *model.Rule) error {
	duration, err := parseRuleDuration(r.Duration)
	if err != nil {
		return err
	}
	const q = `
	INSERT INTO rules(name, clause, duration, enabled, parent_id, owner_kind, owner_id, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id
	`
	err = s.DB.QueryRowContext(ctx, q, r.Name, r.Clause, duration, r.Enabled, r.ParentID,
		string(r.Owner.Kind), r.Owner.ID, r.Description).Scan(&r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule %s: %w", r.Name, ErrDuplicateName)
		}
		return fmt.Errorf("create rule: %w", err)
	}
	return s.replaceRulePairs(ctx, r)
}

func (s *PgStore) UpdateRule(ctx context.Context, r *model.Rule) error {
	duration, err := parseRuleDuration(r.Duration)
	if err != nil {
		return err
	}
	const q = `
	UPDATE rules SET name=$2, clause=$3, duration=$4, enabled=$5, description=$6 WHERE id=$1
	`
	if _, err := s.DB.ExecContext(ctx, q, r.ID, r.Name, r.Clause, duration, r.Enabled, r.Description); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule %s: %w", r.Name, ErrDuplicateName)
		}
		return fmt.Errorf("update rule: %w", err)
	}
	return s.replaceRulePairs(ctx, r)
}

func (s *PgStore) replaceRulePairs(ctx context.Context, r *model.Rule) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM rule_labels WHERE rule_id=$1`, r.ID); err != nil {
		return fmt.Errorf("clear rule labels: %w", err)
	}
	for name, value := range r.Labels {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO rule_labels(rule_id, name, value) VALUES ($1, $2, $3)`, r.ID, name, value); err != nil {
			return fmt.Errorf("insert rule label: %w", err)
		}
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM rule_annotations WHERE rule_id=$1`, r.ID); err != nil {
		return fmt.Errorf("clear rule annotations: %w", err)
	}
	for name, value := range r.Annotations {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO rule_annotations(rule_id, name, value) VALUES ($1, $2, $3)`, r.ID, name, value); err != nil {
			return fmt.Errorf("insert rule annotation: %w", err)
		}
	}
	return nil
}

func (s *PgStore) DeleteRule(ctx context.Context, id int64) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM rules WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

func (s *PgStore) OverrideFor(ctx context.Context, parentID int64, owner model.ObjectRef) (*model.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM rules r ` + ruleJoins + `
	WHERE r.parent_id = $1 AND r.owner_kind = $2 AND r.owner_id = $3`
	ruleSet, err := s.queryRules(ctx, q, parentID, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, err
	}
	if len(ruleSet) == 0 {
		return nil, ErrNotFound
	}
	return ruleSet[0], nil
}

// ---- routing lookups ----

func (s *PgStore) FindService(ctx context.Context, name string) (*model.Service, error) {
	var sv model.Service
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, owner, shard_id FROM services WHERE name = $1`, name).
		Scan(&sv.ID, &sv.Name, &sv.Owner, &sv.ShardID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find service: %w", err)
	}
	return &sv, nil
}

func (s *PgStore) FindProject(ctx context.Context, name string) (*model.Project, error) {
	var p model.Project
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, service_id, farm_id FROM projects WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.ServiceID, &p.FarmID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &p, nil
}

func (s *PgStore) GetService(ctx context.Context, id int64) (*model.Service, error) {
	var sv model.Service
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, owner, shard_id FROM services WHERE id = $1`, id).
		Scan(&sv.ID, &sv.Name, &sv.Owner, &sv.ShardID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &sv, nil
}

func (s *PgStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, service_id, farm_id FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.ServiceID, &p.FarmID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PgStore) OwnerName(ctx context.Context, ref model.ObjectRef) (string, error) {
	switch ref.Kind {
	case model.KindService:
		sv, err := s.GetService(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return sv.Name, nil
	case model.KindProject:
		p, err := s.GetProject(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		return p.Name, nil
	case model.KindUser:
		var username string
		err := s.DB.QueryRowContext(ctx, `SELECT username FROM users WHERE id = $1`, ref.ID).Scan(&username)
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("owner name: %w", err)
		}
		return username, nil
	default:
		return string(model.KindSite), nil
	}
}

func (s *PgStore) SendersFor(ctx context.Context, ref model.ObjectRef) ([]*model.Sender, error) {
	const q = `
	SELECT id, kind, value, alias, owner_user_id, enabled, filter_policy
	FROM senders
	WHERE owner_kind = $1 AND owner_id = $2 AND enabled
	ORDER BY id
	`
	rows, err := s.DB.QueryContext(ctx, q, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("query senders: %w", err)
	}
	defer rows.Close()
	var out []*model.Sender
	for rows.Next() {
		sn := &model.Sender{Owner: ref}
		if err := rows.Scan(&sn.ID, &sn.Kind, &sn.Value, &sn.Alias, &sn.OwnerUserID, &sn.Enabled, &sn.FilterPolicy); err != nil {
			return nil, fmt.Errorf("scan sender: %w", err)
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sn := range out {
		frows, err := s.DB.QueryContext(ctx,
			`SELECT name, value FROM filters WHERE sender_id = $1 ORDER BY name, value`, sn.ID)
		if err != nil {
			return nil, fmt.Errorf("query filters: %w", err)
		}
		for frows.Next() {
			var f model.Filter
			if err := frows.Scan(&f.Name, &f.Value); err != nil {
				frows.Close()
				return nil, fmt.Errorf("scan filter: %w", err)
			}
			sn.Filters = append(sn.Filters, f)
		}
		if err := frows.Err(); err != nil {
			frows.Close()
			return nil, err
		}
		frows.Close()
	}
	return out, nil
}

func (s *PgStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, username, email FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.Email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *PgStore) CreateSender(ctx context.Context, sn *model.Sender) error {
	const q = `
	INSERT INTO senders(kind, value, alias, owner_kind, owner_id, owner_user_id, enabled, filter_policy)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id
	`
	policy := sn.FilterPolicy
	if policy == "" {
		policy = "all"
	}
	err := s.DB.QueryRowContext(ctx, q, sn.Kind, sn.Value, sn.Alias,
		string(sn.Owner.Kind), sn.Owner.ID, sn.OwnerUserID, sn.Enabled, policy).Scan(&sn.ID)
	if err != nil {
		return fmt.Errorf("create sender: %w", err)
	}
	for _, f := range sn.Filters {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO filters(sender_id, name, value) VALUES ($1, $2, $3)`, sn.ID, f.Name, f.Value); err != nil {
			return fmt.Errorf("insert filter: %w", err)
		}
	}
	return nil
}

// ---- trigger support ----

func (s *PgStore) ProjectHasHosts(ctx context.Context, projectID int64) (bool, error) {
	const q = `
	SELECT EXISTS(
		SELECT 1 FROM hosts h
		JOIN projects p ON p.farm_id = h.farm_id
		WHERE p.id = $1
	)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, q, projectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("project has hosts: %w", err)
	}
	return exists, nil
}

func (s *PgStore) ProjectHasExporters(ctx context.Context, projectID int64) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM exporters WHERE project_id = $1 AND enabled)`, projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("project has exporters: %w", err)
	}
	return exists, nil
}

func (s *PgStore) ProjectIDsForFarm(ctx context.Context, farmID int64) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM projects WHERE farm_id = $1`, farmID)
	if err != nil {
		return nil, fmt.Errorf("projects for farm: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PgStore) GetExporter(ctx context.Context, id int64) (*model.Exporter, error) {
	var e model.Exporter
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, job, port, path, scheme, enabled, project_id FROM exporters WHERE id = $1`, id).
		Scan(&e.ID, &e.Job, &e.Port, &e.Path, &e.Scheme, &e.Enabled, &e.ProjectID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exporter: %w", err)
	}
	return &e, nil
}

// ---- alerts ----

func (s *PgStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	const q = `
	INSERT INTO alerts(id, created, body, sent_count, error_count)
	VALUES ($1, $2, $3, 0, 0)
	`
	if _, err := s.DB.ExecContext(ctx, q, a.ID, a.Created, a.Body); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (s *PgStore) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	var a model.Alert
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, created, body, sent_count, error_count FROM alerts WHERE id = $1`, id).
		Scan(&a.ID, &a.Created, &a.Body, &a.SentCount, &a.ErrorCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

func (s *PgStore) DeleteAlert(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

func (s *PgStore) IncAlertSent(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx,
		`UPDATE alerts SET sent_count = sent_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("inc alert sent: %w", err)
	}
	return nil
}

func (s *PgStore) IncAlertError(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx,
		`UPDATE alerts SET error_count = error_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("inc alert error: %w", err)
	}
	return nil
}

func (s *PgStore) InsertAlertError(ctx context.Context, e *model.AlertError) error {
	const q = `
	INSERT INTO alert_errors(alert_id, created, kind, target, message)
	VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.DB.ExecContext(ctx, q, e.AlertID, e.Created, e.Kind, e.Target, e.Message); err != nil {
		return fmt.Errorf("insert alert error: %w", err)
	}
	return nil
}

func (s *PgStore) InsertAlertLabels(ctx context.Context, alertID string, labels model.KV) error {
	for name, value := range labels {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT INTO alert_labels(alert_id, name, value) VALUES ($1, $2, $3)`, alertID, name, value); err != nil {
			return fmt.Errorf("insert alert label: %w", err)
		}
	}
	return nil
}

// ---- audit ----

func (s *PgStore) InsertAudit(ctx context.Context, a *model.Audit) error {
	const q = `
	INSERT INTO audits(id, created, body, owner_kind, owner_id, data, old)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.DB.ExecContext(ctx, q, a.ID, a.Created, a.Body,
		string(a.Owner.Kind), a.Owner.ID, a.Data, a.Old); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
