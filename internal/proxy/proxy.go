// Package proxy fans a read query out to every proxy-enabled Prometheus
// shard and merges the responses. A single failing shard fails the whole
// request so partial data is never mistaken for complete data.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/api"
	"github.com/rs/zerolog/log"

	"github.com/promfleet/promfleet/internal/model"
	"github.com/promfleet/promfleet/internal/util"
)

// ShardSource yields the shards eligible for proxying.
type ShardSource interface {
	ListProxyShards(ctx context.Context) ([]model.Shard, error)
}

// ShardError is a failed response from one shard, carrying the shard's own
// error body plus the origin URL so the caller can see which backend broke.
type ShardError struct {
	Shard string
	URL   string
	Code  int
	Body  []byte
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %s returned %d for %s", e.Shard, e.Code, e.URL)
}

// ShardResult is one successful shard response body.
type ShardResult struct {
	Shard string
	Body  []byte
}

// Proxy issues one request per shard through a bounded worker pool.
type Proxy struct {
	source  ShardSource
	workers int
	timeout time.Duration

	// newClient is swapped in tests.
	newClient func(shard model.Shard) (api.Client, error)
}

func New(source ShardSource, workers int, timeout time.Duration) *Proxy {
	if workers <= 0 {
		workers = 20
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Proxy{
		source:    source,
		workers:   workers,
		timeout:   timeout,
		newClient: defaultClient,
	}
}

type authTransport struct {
	authorization string
	next          http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", util.UserAgent)
	if t.authorization != "" {
		req.Header.Set("Authorization", t.authorization)
	}
	return t.next.RoundTrip(req)
}

func defaultClient(shard model.Shard) (api.Client, error) {
	return api.NewClient(api.Config{
		Address: shard.URL,
		RoundTripper: &authTransport{
			authorization: shard.Authorization,
			next:          http.DefaultTransport,
		},
	})
}

// Fetch runs path?params against every proxy shard and returns the bodies.
// The first shard failure cancels the remaining calls and is returned as a
// *ShardError.
func (p *Proxy) Fetch(ctx context.Context, path string, params url.Values) ([]ShardResult, error) {
	shards, err := p.source.ListProxyShards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list proxy shards: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		results  []ShardResult
		firstErr error
		wg       sync.WaitGroup
		sem      = make(chan struct{}, p.workers)
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for _, shard := range shards {
		wg.Add(1)
		go func(shard model.Shard) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			body, err := p.fetchOne(ctx, shard, path, params)
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			results = append(results, ShardResult{Shard: shard.Name, Body: body})
			mu.Unlock()
		}(shard)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (p *Proxy) fetchOne(ctx context.Context, shard model.Shard, path string, params url.Values) ([]byte, error) {
	client, err := p.newClient(shard)
	if err != nil {
		return nil, fmt.Errorf("shard %s client: %w", shard.Name, err)
	}

	u := client.URL(path, nil)
	u.RawQuery = params.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("shard %s request: %w", shard.Name, err)
	}

	resp, body, err := client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("shard %s: %w", shard.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn().Str("shard", shard.Name).Int("status", resp.StatusCode).
			Str("url", u.String()).Msg("shard query failed")
		return nil, &ShardError{Shard: shard.Name, URL: u.String(), Code: resp.StatusCode, Body: body}
	}
	return body, nil
}

// ---- merges ----

type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type queryData struct {
	ResultType string            `json:"resultType"`
	Result     []json.RawMessage `json:"result"`
}

// MergeValues unions the string arrays of /api/v1/labels and label-values
// responses, sorted and de-duplicated.
func MergeValues(results []ShardResult) ([]byte, error) {
	seen := map[string]bool{}
	for _, r := range results {
		var resp apiResponse
		if err := json.Unmarshal(r.Body, &resp); err != nil {
			return nil, fmt.Errorf("shard %s: decode response: %w", r.Shard, err)
		}
		var values []string
		if err := json.Unmarshal(resp.Data, &values); err != nil {
			return nil, fmt.Errorf("shard %s: decode values: %w", r.Shard, err)
		}
		for _, v := range values {
			seen[v] = true
		}
	}
	merged := make([]string, 0, len(seen))
	for v := range seen {
		merged = append(merged, v)
	}
	sort.Strings(merged)
	return json.Marshal(map[string]any{"status": "success", "data": merged})
}

// MergeSeries concatenates the series lists of /api/v1/series responses.
func MergeSeries(results []ShardResult) ([]byte, error) {
	var merged []json.RawMessage
	for _, r := range results {
		var resp apiResponse
		if err := json.Unmarshal(r.Body, &resp); err != nil {
			return nil, fmt.Errorf("shard %s: decode response: %w", r.Shard, err)
		}
		var series []json.RawMessage
		if err := json.Unmarshal(resp.Data, &series); err != nil {
			return nil, fmt.Errorf("shard %s: decode series: %w", r.Shard, err)
		}
		merged = append(merged, series...)
	}
	if merged == nil {
		merged = []json.RawMessage{}
	}
	return json.Marshal(map[string]any{"status": "success", "data": merged})
}

// MergeQuery concatenates the result vectors of query and query_range
// responses. Shards agree on the result type for a given query, so the last
// seen type wins.
func MergeQuery(results []ShardResult) ([]byte, error) {
	merged := queryData{Result: []json.RawMessage{}}
	for _, r := range results {
		var resp apiResponse
		if err := json.Unmarshal(r.Body, &resp); err != nil {
			return nil, fmt.Errorf("shard %s: decode response: %w", r.Shard, err)
		}
		var data queryData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, fmt.Errorf("shard %s: decode query data: %w", r.Shard, err)
		}
		if data.ResultType != "" {
			merged.ResultType = data.ResultType
		}
		merged.Result = append(merged.Result, data.Result...)
	}
	return json.Marshal(map[string]any{"status": "success", "data": merged})
}
