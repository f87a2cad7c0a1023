package notify

import (
	"context"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/util"
)

type forwardedAlert struct {
	Labels       model.KV `json:"labels"`
	Annotations  model.KV `json:"annotations,omitempty"`
	StartsAt     string   `json:"startsAt,omitempty"`
	EndsAt       string   `json:"endsAt,omitempty"`
	GeneratorURL string   `json:"generatorURL,omitempty"`
}

// Alertmanager forwards the individual alerts of a group to another
// Alertmanager instance, keeping only the fields its ingest API accepts.
type Alertmanager struct{}

func (Alertmanager) Send(ctx context.Context, target string, data *model.WebhookMessage) error {
	forwarded := make([]forwardedAlert, 0, len(data.Alerts))
	for _, a := range data.Alerts {
		forwarded = append(forwarded, forwardedAlert{
			Labels:       a.Labels,
			Annotations:  a.Annotations,
			StartsAt:     a.StartsAt,
			EndsAt:       a.EndsAt,
			GeneratorURL: a.GeneratorURL,
		})
	}
	return util.PostJSON(ctx, target, forwarded)
}
