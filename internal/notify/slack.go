package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/util"
)

const (
	slackColorFiring   = "#dc3545"
	slackColorResolved = "#36a64f"
)

type slackAttachment struct {
	Color string `json:"color"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

// Slack posts a colored attachment per alert group to an incoming-webhook
// URL. Resolved groups go green, firing groups red.
type Slack struct{}

func (Slack) Send(ctx context.Context, target string, data *model.WebhookMessage) error {
	color := slackColorFiring
	if data.Status == "resolved" {
		color = slackColorResolved
	}

	title := fmt.Sprintf("[%s] %s", data.Status, data.CommonLabels["alertname"])

	var text strings.Builder
	for _, a := range data.Alerts {
		if summary, ok := a.Annotations["summary"]; ok {
			fmt.Fprintf(&text, "%s\n", summary)
		}
		if project, ok := a.Labels["project"]; ok {
			fmt.Fprintf(&text, "project: %s\n", project)
		}
	}
	if link, ok := data.CommonAnnotations["project"]; ok {
		fmt.Fprintf(&text, "%s\n", link)
	}

	payload := slackPayload{Attachments: []slackAttachment{{
		Color: color,
		Title: title,
		Text:  strings.TrimSpace(text.String()),
	}}}
	return util.PostJSON(ctx, target, payload)
}
