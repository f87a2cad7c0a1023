// Package rules renders alerting rules into the Prometheus rule-file format
// and validates rendered documents with promtool.
package rules

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/promfleet/promfleet/internal/model"
)

type ruleNode struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

type ruleGroup struct {
	Name  string     `yaml:"name"`
	Rules []ruleNode `yaml:"rules"`
}

type ruleDocument struct {
	Groups []ruleGroup `yaml:"groups"`
}

// Render produces the rule document: one group per owning object, groups and
// rules sorted by name so identical input yields byte-identical output.
// siteURL seeds the mandatory "rule" deep-link annotation; it is always
// overwritten here so the link cannot go stale or be removed.
func Render(ruleSet []*model.Rule, siteURL string) ([]byte, error) {
	byGroup := map[string][]ruleNode{}
	for _, r := range ruleSet {
		group := r.OwnerName
		if group == "" {
			group = string(model.KindSite)
		}

		annotations := map[string]string{}
		for k, v := range r.Annotations {
			annotations[k] = v
		}
		if r.ID != 0 {
			annotations["rule"] = fmt.Sprintf("%s/rule/%d", siteURL, r.ID)
		}

		byGroup[group] = append(byGroup[group], ruleNode{
			Alert:       r.Name,
			Expr:        ExpandMacro(r),
			For:         r.Duration,
			Labels:      r.Labels,
			Annotations: annotations,
		})
	}

	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := ruleDocument{}
	for _, name := range names {
		nodes := byGroup[name]
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Alert < nodes[j].Alert })
		doc.Groups = append(doc.Groups, ruleGroup{Name: name, Rules: nodes})
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("render rules: %w", err)
	}
	return out, nil
}
