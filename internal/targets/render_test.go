package targets

import (
	"bytes"
	"encoding/json"
	"testing"
)

func sampleEntries() []ExporterEntry {
	return []ExporterEntry{
		{
			Shard: "prom-tokyo", Service: "shop", Project: "checkout",
			Farm: "checkout-web", FarmSource: "promfleet",
			Job: "node", Port: 9100,
			Hosts: []string{"h2.example.com", "h1.example.com"},
		},
	}
}

func TestRenderConfigFarmScenario(t *testing.T) {
	out, err := RenderConfig(sampleEntries())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var groups []struct {
		Labels  map[string]string `json:"labels"`
		Targets []string          `json:"targets"`
	}
	if err := json.Unmarshal(out, &groups); err != nil {
		t.Fatalf("output is not valid json: %v\n%s", err, out)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 target group, got %d", len(groups))
	}

	g := groups[0]
	want := []string{"h1.example.com:9100", "h2.example.com:9100"}
	if len(g.Targets) != len(want) {
		t.Fatalf("targets = %v, want %v", g.Targets, want)
	}
	for i := range want {
		if g.Targets[i] != want[i] {
			t.Errorf("targets[%d] = %q, want %q", i, g.Targets[i], want[i])
		}
	}
	if g.Labels["job"] != "node" {
		t.Errorf("job label = %q, want node", g.Labels["job"])
	}
	if g.Labels["service"] != "shop" || g.Labels["project"] != "checkout" {
		t.Errorf("unexpected ownership labels: %v", g.Labels)
	}
	if g.Labels["farm"] != "checkout-web" {
		t.Errorf("farm label = %q", g.Labels["farm"])
	}
}

func TestRenderConfigIdempotent(t *testing.T) {
	first, err := RenderConfig(sampleEntries())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := RenderConfig(sampleEntries())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("identical input produced different bytes")
	}
}

func TestRenderConfigSkipsEmptyFarms(t *testing.T) {
	entries := sampleEntries()
	entries = append(entries, ExporterEntry{
		Shard: "prom-tokyo", Service: "shop", Project: "empty",
		Job: "node", Port: 9100,
	})
	out, err := RenderConfig(entries)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var groups []json.RawMessage
	if err := json.Unmarshal(out, &groups); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected hostless exporter to be skipped, got %d groups", len(groups))
	}
}

func TestRenderConfigMetricsPath(t *testing.T) {
	entries := sampleEntries()
	entries[0].Path = "/probe/metrics"
	entries[0].Scheme = "https"
	out, err := RenderConfig(entries)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var groups []struct {
		Labels map[string]string `json:"labels"`
	}
	if err := json.Unmarshal(out, &groups); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := groups[0].Labels["__metrics_path__"]; got != "/probe/metrics" {
		t.Errorf("__metrics_path__ = %q", got)
	}
	if got := groups[0].Labels["__scheme__"]; got != "https" {
		t.Errorf("__scheme__ = %q", got)
	}
}

func TestRenderURLs(t *testing.T) {
	entries := []URLEntry{
		{Shard: "prom-tokyo", Service: "shop", Project: "checkout", Probe: "http_2xx", URL: "https://example.com/health"},
	}
	out, err := RenderURLs(entries)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var groups []struct {
		Labels  map[string]string `json:"labels"`
		Targets []string          `json:"targets"`
	}
	if err := json.Unmarshal(out, &groups); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Targets) != 1 {
		t.Fatalf("unexpected shape: %s", out)
	}
	if groups[0].Targets[0] != "https://example.com/health" {
		t.Errorf("target = %q", groups[0].Targets[0])
	}
	if groups[0].Labels["__param_module"] != "http_2xx" {
		t.Errorf("probe module label = %q", groups[0].Labels["__param_module"])
	}
}
