package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/registry"
)

// Delivery is one independent obligation: send this alert group to this
// destination via this channel kind. Deliveries fail independently.
type Delivery struct {
	AlertID string
	Kind    string
	Target  string
	Data    *model.WebhookMessage
}

// Router resolves a webhook payload into delivery obligations by walking the
// sender bindings of the objects named in the alert's common labels.
type Router struct {
	Store     registry.Store
	SiteURL   string
	Blacklist map[string][]string
}

func NewRouter(store registry.Store, siteURL string, blacklist map[string][]string) *Router {
	return &Router{Store: store, SiteURL: siteURL, Blacklist: blacklist}
}

// blacklisted reports whether the payload's common labels hit the configured
// drop list. An empty value list drops on label presence alone.
func (r *Router) blacklisted(labels model.KV) bool {
	for name, values := range r.Blacklist {
		got, ok := labels[name]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if got == v {
				return true
			}
		}
	}
	return false
}

// Route produces the deliveries for one persisted alert. Blacklisted payloads
// (heartbeats, synthetic checks) delete the alert row and produce nothing.
func (r *Router) Route(ctx context.Context, alertID string, data *model.WebhookMessage) ([]Delivery, error) {
	data.Normalize()

	if r.blacklisted(data.CommonLabels) {
		log.Debug().Str("alert", alertID).Msg("dropping blacklisted alert")
		if err := r.Store.DeleteAlert(ctx, alertID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var senders []*model.Sender

	if project, ok := data.CommonLabels["project"]; ok {
		p, err := r.Store.FindProject(ctx, project)
		switch {
		case errors.Is(err, registry.ErrNotFound):
			log.Warn().Str("project", project).Msg("alert names unknown project")
		case err != nil:
			return nil, err
		default:
			data.CommonAnnotations["project"] = fmt.Sprintf("%s/project/%d", r.SiteURL, p.ID)
			ps, err := r.Store.SendersFor(ctx, model.ObjectRef{Kind: model.KindProject, ID: p.ID})
			if err != nil {
				return nil, err
			}
			senders = append(senders, ps...)

			sv, err := r.Store.GetService(ctx, p.ServiceID)
			if err != nil {
				return nil, err
			}
			data.CommonAnnotations["service"] = fmt.Sprintf("%s/service/%d", r.SiteURL, sv.ID)
			ss, err := r.Store.SendersFor(ctx, model.ObjectRef{Kind: model.KindService, ID: sv.ID})
			if err != nil {
				return nil, err
			}
			senders = append(senders, ss...)
		}
	} else if service, ok := data.CommonLabels["service"]; ok {
		sv, err := r.Store.FindService(ctx, service)
		switch {
		case errors.Is(err, registry.ErrNotFound):
			log.Warn().Str("service", service).Msg("alert names unknown service")
		case err != nil:
			return nil, err
		default:
			data.CommonAnnotations["service"] = fmt.Sprintf("%s/service/%d", r.SiteURL, sv.ID)
			ss, err := r.Store.SendersFor(ctx, model.ObjectRef{Kind: model.KindService, ID: sv.ID})
			if err != nil {
				return nil, err
			}
			senders = append(senders, ss...)
		}
	}

	var deliveries []Delivery
	seen := map[[2]string]bool{}

	add := func(kind, target string) {
		key := [2]string{kind, target}
		if seen[key] {
			return
		}
		seen[key] = true
		deliveries = append(deliveries, Delivery{
			AlertID: alertID,
			Kind:    kind,
			Target:  target,
			Data:    data,
		})
	}

	for _, sn := range senders {
		if !sn.Matches(data.CommonLabels) {
			log.Debug().Str("kind", sn.Kind).Str("target", sn.Value).
				Msg("sender filters reject alert")
			continue
		}
		if sn.Kind != "user" {
			add(sn.Kind, sn.Value)
			continue
		}

		// A user sender expands to that user's personal channels, one
		// level deep. A personal channel of kind user stays unexpanded.
		personal, err := r.expandUser(ctx, sn.Value)
		if err != nil {
			log.Warn().Err(err).Str("user", sn.Value).Msg("cannot expand user sender")
			continue
		}
		for _, p := range personal {
			if p.Kind == "user" {
				continue
			}
			if !p.Matches(data.CommonLabels) {
				continue
			}
			add(p.Kind, p.Value)
		}
	}

	return deliveries, nil
}

func (r *Router) expandUser(ctx context.Context, username string) ([]*model.Sender, error) {
	u, err := r.Store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return r.Store.SendersFor(ctx, model.ObjectRef{Kind: model.KindUser, ID: u.ID})
}
