// Package targets renders the relational model into Prometheus file_sd style
// scrape-config and blackbox-probe documents. Rendering is deterministic:
// identical input produces byte-identical output so the writer can diff.
package targets

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ExporterEntry is one project exporter joined with its farm hosts, flattened
// by the store for rendering.
type ExporterEntry struct {
	Shard      string
	Service    string
	Project    string
	Farm       string
	FarmSource string
	Job        string
	Port       int
	Path       string
	Scheme     string
	Hosts      []string
}

// URLEntry is one blackbox-probe target joined with its owning project.
type URLEntry struct {
	Shard   string
	Service string
	Project string
	Probe   string
	URL     string
}

type targetGroup struct {
	Labels  map[string]string `json:"labels"`
	Targets []string          `json:"targets"`
}

// RenderConfig produces the scrape-config document: one target group per
// exporter, with host:port targets for every farm host. Entries without
// hosts produce no usable target and are skipped.
func RenderConfig(entries []ExporterEntry) ([]byte, error) {
	groups := make([]targetGroup, 0, len(entries))
	for _, e := range entries {
		if len(e.Hosts) == 0 {
			continue
		}
		labels := map[string]string{
			"__shard":       e.Shard,
			"service":       e.Service,
			"project":       e.Project,
			"farm":          e.Farm,
			"__farm_source": e.FarmSource,
			"job":           e.Job,
		}
		if e.Path != "" {
			labels["__metrics_path__"] = e.Path
		}
		if e.Scheme != "" {
			labels["__scheme__"] = e.Scheme
		}

		hosts := append([]string(nil), e.Hosts...)
		sort.Strings(hosts)
		targets := make([]string, 0, len(hosts))
		for _, h := range hosts {
			targets = append(targets, fmt.Sprintf("%s:%d", h, e.Port))
		}
		groups = append(groups, targetGroup{Labels: labels, Targets: targets})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Labels, groups[j].Labels
		if a["service"] != b["service"] {
			return a["service"] < b["service"]
		}
		if a["project"] != b["project"] {
			return a["project"] < b["project"]
		}
		if a["job"] != b["job"] {
			return a["job"] < b["job"]
		}
		return groups[i].Targets[0] < groups[j].Targets[0]
	})

	return marshal(groups)
}

// RenderURLs produces the blackbox-probe document, grouping probe URLs per
// (project, service, shard, probe module).
func RenderURLs(entries []URLEntry) ([]byte, error) {
	type key struct{ project, service, shard, probe string }
	byGroup := map[key][]string{}
	for _, e := range entries {
		k := key{e.Project, e.Service, e.Shard, e.Probe}
		byGroup[k] = append(byGroup[k], e.URL)
	}

	keys := make([]key, 0, len(byGroup))
	for k := range byGroup {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].project != keys[j].project {
			return keys[i].project < keys[j].project
		}
		if keys[i].service != keys[j].service {
			return keys[i].service < keys[j].service
		}
		if keys[i].shard != keys[j].shard {
			return keys[i].shard < keys[j].shard
		}
		return keys[i].probe < keys[j].probe
	})

	groups := make([]targetGroup, 0, len(keys))
	for _, k := range keys {
		labels := map[string]string{
			"project": k.project,
			"service": k.service,
			"__shard": k.shard,
		}
		if k.probe != "" {
			labels["__param_module"] = k.probe
		}
		urls := append([]string(nil), byGroup[k]...)
		sort.Strings(urls)
		groups = append(groups, targetGroup{Labels: labels, Targets: urls})
	}

	return marshal(groups)
}

func marshal(groups []targetGroup) ([]byte, error) {
	out, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render targets: %w", err)
	}
	return append(out, '\n'), nil
}
