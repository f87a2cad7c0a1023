package notify

import (
	"context"
	"fmt"

	promModel "github.com/prometheus/common/model"

	"github.com/promfleet/promfleet/internal/config"
	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/util"
)

const pagerDutySummaryLimit = 1024

type pagerDutyPayload struct {
	Summary       string   `json:"summary"`
	Source        string   `json:"source"`
	Severity      string   `json:"severity"`
	CustomDetails model.KV `json:"custom_details,omitempty"`
}

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

// PagerDuty sends Events API v2 events. The target is the integration
// routing key; the dedup key derives from the group's common labels so a
// firing and its later resolve land on the same incident.
type PagerDuty struct {
	cfg config.PagerDutyConfig
}

func NewPagerDuty(cfg config.PagerDutyConfig) *PagerDuty {
	if cfg.URL == "" {
		cfg.URL = "https://events.pagerduty.com/v2/enqueue"
	}
	return &PagerDuty{cfg: cfg}
}

// DedupKey is the stable incident key for a label set.
func DedupKey(labels model.KV) string {
	set := make(promModel.LabelSet, len(labels))
	for k, v := range labels {
		set[promModel.LabelName(k)] = promModel.LabelValue(v)
	}
	return "promfleet/" + set.Fingerprint().String()
}

func (p *PagerDuty) severity(labels model.KV) string {
	if mapped, ok := p.cfg.SeverityMap[labels["severity"]]; ok {
		return mapped
	}
	return "error"
}

func (p *PagerDuty) Send(ctx context.Context, target string, data *model.WebhookMessage) error {
	action := "trigger"
	if data.Status == "resolved" {
		action = "resolve"
	}

	summary := fmt.Sprintf("%s %s %s", data.CommonLabels["alertname"],
		data.CommonLabels["service"], data.CommonLabels["project"])
	if summary == "  " {
		summary = data.Status
	}
	if len(summary) > pagerDutySummaryLimit {
		summary = summary[:pagerDutySummaryLimit]
	}

	event := pagerDutyEvent{
		RoutingKey:  target,
		EventAction: action,
		DedupKey:    DedupKey(data.CommonLabels),
		Payload: pagerDutyPayload{
			Summary:       summary,
			Source:        data.ExternalURL,
			Severity:      p.severity(data.CommonLabels),
			CustomDetails: data.CommonLabels,
		},
	}
	return util.PostJSON(ctx, p.cfg.URL, event)
}
