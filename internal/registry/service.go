package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/rules"
	"github.com/promfleet/promfleet/internal/signalbus"
)

// RuleChecker validates a rendered rule document. Satisfied by rules.Checker;
// tests substitute a stub.
type RuleChecker interface {
	Check(ctx context.Context, rendered []byte) error
}

// Bus is the slice of the signal bus the service needs.
type Bus interface {
	Queue(ctx context.Context, kind signalbus.Kind)
	Force(ctx context.Context, kind signalbus.Kind) error
}

// Service is the mutation layer. Every write goes through here so that audit
// entries are recorded and the rewrite triggers stay in one place.
type Service struct {
	Store   Store
	Bus     Bus
	Checker RuleChecker
	SiteURL string
}

func NewService(store Store, bus Bus, checker RuleChecker, siteURL string) *Service {
	return &Service{Store: store, Bus: bus, Checker: checker, SiteURL: siteURL}
}

// ---- rules ----

// SaveRule validates, checks with promtool, and persists a rule. New rules
// have ID zero. A successful save queues a rules rewrite.
func (s *Service) SaveRule(ctx context.Context, r *model.Rule) error {
	if err := model.ValidateRule(r); err != nil {
		return err
	}

	rendered, err := rules.Render([]*model.Rule{r}, s.SiteURL)
	if err != nil {
		return fmt.Errorf("render rule %s: %w", r.Name, err)
	}
	if s.Checker != nil {
		if err := s.Checker.Check(ctx, rendered); err != nil {
			return err
		}
	}

	var old *model.Rule
	if r.ID != 0 {
		old, err = s.Store.GetRule(ctx, r.ID)
		if err != nil {
			return err
		}
	}

	if r.ID == 0 {
		if err := s.Store.CreateRule(ctx, r); err != nil {
			return err
		}
		// The detail URL needs the assigned ID, so the annotation is
		// stamped with a second write on create.
		s.stampDeepLink(r)
		if err := s.Store.UpdateRule(ctx, r); err != nil {
			return err
		}
		s.audit(ctx, fmt.Sprintf("created rule %s", r.Name), r.Owner, r, nil)
	} else {
		s.stampDeepLink(r)
		if err := s.Store.UpdateRule(ctx, r); err != nil {
			return err
		}
		s.audit(ctx, fmt.Sprintf("updated rule %s", r.Name), r.Owner, r, old)
	}

	s.Bus.Queue(ctx, signalbus.KindRules)
	return nil
}

// stampDeepLink stores the rule detail URL in the persisted annotations so
// the stored shape matches what rendering emits.
func (s *Service) stampDeepLink(r *model.Rule) {
	if r.Annotations == nil {
		r.Annotations = map[string]string{}
	}
	r.Annotations["rule"] = fmt.Sprintf("%s/rule/%d", s.SiteURL, r.ID)
}

func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	r, err := s.Store.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, fmt.Sprintf("deleted rule %s", r.Name), r.Owner, nil, r)
	s.Bus.Queue(ctx, signalbus.KindRules)
	return nil
}

// CopyRule creates a disabled override of a rule scoped to the given owner.
// The copy's name derives from the parent and the owner, the clause gains a
// scope matcher ahead of the exclusion macro, and the service/project labels
// are replaced with the new owner's. If the owner already has an override of
// this rule the existing copy is returned unchanged.
func (s *Service) CopyRule(ctx context.Context, parentID int64, owner model.ObjectRef) (*model.Rule, error) {
	if existing, err := s.Store.OverrideFor(ctx, parentID, owner); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	parent, err := s.Store.GetRule(ctx, parentID)
	if err != nil {
		return nil, err
	}
	ownerName, err := s.Store.OwnerName(ctx, owner)
	if err != nil {
		return nil, err
	}

	name := copyName(parent.Name, ownerName)
	if taken, err := s.Store.RuleNameExists(ctx, name); err != nil {
		return nil, err
	} else if taken {
		name = uniqueCopyName(name)
	}

	copy := &model.Rule{
		Name:        name,
		Clause:      rules.InjectScope(parent.Clause, owner.Kind, ownerName),
		Duration:    parent.Duration,
		Enabled:     false,
		ParentID:    &parent.ID,
		Owner:       owner,
		Description: parent.Description,
		OwnerName:   ownerName,
		Labels:      map[string]string{},
		Annotations: map[string]string{},
	}
	for k, v := range parent.Labels {
		if k == string(model.KindService) || k == string(model.KindProject) {
			continue
		}
		copy.Labels[k] = v
	}
	copy.Labels[string(owner.Kind)] = ownerName
	for k, v := range parent.Annotations {
		copy.Annotations[k] = v
	}

	err = s.Store.CreateRule(ctx, copy)
	if errors.Is(err, ErrDuplicateName) {
		// Raced with another copy of the same parent. Retry once with a
		// random suffix.
		copy.Name = uniqueCopyName(name)
		err = s.Store.CreateRule(ctx, copy)
	}
	if err != nil {
		return nil, err
	}
	// Replace the parent's detail link now that the copy has its own ID.
	s.stampDeepLink(copy)
	if err := s.Store.UpdateRule(ctx, copy); err != nil {
		return nil, err
	}

	s.audit(ctx, fmt.Sprintf("copied rule %s to %s", parent.Name, ownerName), owner, copy, nil)
	s.Bus.Queue(ctx, signalbus.KindRules)
	return copy, nil
}

// ImportRules bulk-creates rules and forces one immediate rewrite instead of
// queueing per rule.
func (s *Service) ImportRules(ctx context.Context, ruleSet []*model.Rule) error {
	for _, r := range ruleSet {
		if err := model.ValidateRule(r); err != nil {
			return err
		}
	}
	for _, r := range ruleSet {
		if err := s.Store.CreateRule(ctx, r); err != nil {
			return fmt.Errorf("import rule %s: %w", r.Name, err)
		}
	}
	s.audit(ctx, fmt.Sprintf("imported %d rules", len(ruleSet)), model.ObjectRef{Kind: model.KindSite}, nil, nil)
	return s.Bus.Force(ctx, signalbus.KindRules)
}

func copyName(parent, owner string) string {
	return parent + "_" + strings.ReplaceAll(owner, "-", "_")
}

func uniqueCopyName(base string) string {
	return base + "_" + strings.Split(uuid.NewString(), "-")[0]
}

// ---- senders ----

// SaveSender persists a notification channel binding. When the new sender
// points at a user who has no personal channels, a default email sender is
// created from the user's address so the subscription is not a dead end.
func (s *Service) SaveSender(ctx context.Context, sn *model.Sender) error {
	if sn.Kind == "user" {
		u, err := s.Store.FindUserByUsername(ctx, sn.Value)
		if err != nil {
			return fmt.Errorf("sender user %q: %w", sn.Value, err)
		}
		sn.OwnerUserID = &u.ID

		personal, err := s.Store.SendersFor(ctx, model.ObjectRef{Kind: model.KindUser, ID: u.ID})
		if err != nil {
			return err
		}
		if len(personal) == 0 && u.Email != "" {
			fallback := &model.Sender{
				Kind:    "email",
				Value:   u.Email,
				Owner:   model.ObjectRef{Kind: model.KindUser, ID: u.ID},
				Enabled: true,
			}
			if err := s.Store.CreateSender(ctx, fallback); err != nil {
				return err
			}
			log.Info().Str("user", u.Username).Msg("created default email sender")
		}
	}

	if err := s.Store.CreateSender(ctx, sn); err != nil {
		return err
	}
	s.audit(ctx, fmt.Sprintf("created %s sender", sn.Kind), sn.Owner, sn, nil)
	return nil
}

// ---- rewrite triggers ----
//
// Each mutation kind maps to an explicit decision about which artifacts need
// rewriting. Host and exporter changes only matter when the other half of the
// scrape pairing exists; everything else would write an unchanged file.

// HostsChanged queues a config rewrite when any project on the farm has an
// enabled exporter.
func (s *Service) HostsChanged(ctx context.Context, farmID int64) error {
	ids, err := s.Store.ProjectIDsForFarm(ctx, farmID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		has, err := s.Store.ProjectHasExporters(ctx, id)
		if err != nil {
			return err
		}
		if has {
			s.Bus.Queue(ctx, signalbus.KindConfig)
			return nil
		}
	}
	return nil
}

// ExporterChanged queues a config rewrite when the owning project has farm
// hosts to scrape.
func (s *Service) ExporterChanged(ctx context.Context, exporterID int64) error {
	e, err := s.Store.GetExporter(ctx, exporterID)
	if err != nil {
		return err
	}
	has, err := s.Store.ProjectHasHosts(ctx, e.ProjectID)
	if err != nil {
		return err
	}
	if has {
		s.Bus.Queue(ctx, signalbus.KindConfig)
	}
	return nil
}

// ProjectChanged queues a config rewrite after a farm link change, but only
// when the project now has both hosts and enabled exporters.
func (s *Service) ProjectChanged(ctx context.Context, projectID int64) error {
	hosts, err := s.Store.ProjectHasHosts(ctx, projectID)
	if err != nil {
		return err
	}
	if !hosts {
		return nil
	}
	exporters, err := s.Store.ProjectHasExporters(ctx, projectID)
	if err != nil {
		return err
	}
	if exporters {
		s.Bus.Queue(ctx, signalbus.KindConfig)
	}
	return nil
}

// URLsChanged queues a blackbox target rewrite.
func (s *Service) URLsChanged(ctx context.Context) {
	s.Bus.Queue(ctx, signalbus.KindURLs)
}

// ShardsChanged queues everything; a shard rename or URL change shifts every
// artifact that names it.
func (s *Service) ShardsChanged(ctx context.Context) {
	s.Bus.Queue(ctx, signalbus.KindConfig)
	s.Bus.Queue(ctx, signalbus.KindURLs)
}

// ---- audit ----

func (s *Service) audit(ctx context.Context, body string, owner model.ObjectRef, data, old any) {
	entry := &model.Audit{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Body:    body,
		Owner:   owner,
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			entry.Data = string(b)
		}
	}
	if old != nil {
		if b, err := json.Marshal(old); err == nil {
			entry.Old = string(b)
		}
	}
	if err := s.Store.InsertAudit(ctx, entry); err != nil {
		log.Error().Err(err).Str("body", body).Msg("failed to record audit entry")
	}
}
