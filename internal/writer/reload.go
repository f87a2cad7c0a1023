package writer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/util"
)

// NATSQueue publishes reload requests onto a per-host subject. An agent
// colocated with each Prometheus server subscribes to its own subject and
// performs the local reload. Fire-and-forget; the request body is constant
// so duplicates collapse to the same effect.
type NATSQueue struct {
	nc      *nats.Conn
	subject string
}

func NewNATSQueue(addr, subject string) (*NATSQueue, error) {
	nc, err := nats.Connect(addr, nats.Name("promfleet"))
	if err != nil {
		return nil, fmt.Errorf("connect reload queue: %w", err)
	}
	return &NATSQueue{nc: nc, subject: subject}, nil
}

func (q *NATSQueue) Enqueue(ctx context.Context, shard model.Shard) error {
	host := shardHost(shard)
	return q.nc.Publish(q.subject+"."+host, []byte("reload"))
}

func (q *NATSQueue) Close() {
	q.nc.Close()
}

// HTTPQueue POSTs directly to each server's /-/reload endpoint. Used when no
// queue is configured; Prometheus treats repeated reloads as no-ops.
type HTTPQueue struct{}

func (HTTPQueue) Enqueue(ctx context.Context, shard model.Shard) error {
	target := strings.TrimRight(shard.URL, "/") + "/-/reload"
	return util.Post(ctx, target)
}

func shardHost(shard model.Shard) string {
	if u, err := url.Parse(shard.URL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return shard.Name
}
