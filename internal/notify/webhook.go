package notify

import (
	"context"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/util"
)

// Webhook re-posts the full group payload to an arbitrary URL, letting the
// destination apply its own formatting.
type Webhook struct{}

func (Webhook) Send(ctx context.Context, target string, data *model.WebhookMessage) error {
	return util.PostJSON(ctx, target, data)
}
