package model

import (
	"fmt"

	promModel "github.com/prometheus/common/model"
)

// ValidateRule rejects rules that could never render into a loadable rule
// file: bad metric-style names, bad label names, or malformed durations.
func ValidateRule(r *Rule) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !promModel.IsValidMetricName(promModel.LabelValue(r.Name)) {
		return fmt.Errorf("invalid rule name %q", r.Name)
	}
	if r.Clause == "" {
		return fmt.Errorf("rule %s: clause is required", r.Name)
	}
	if r.Duration != "" {
		if _, err := promModel.ParseDuration(r.Duration); err != nil {
			return fmt.Errorf("rule %s: invalid duration %q: %w", r.Name, r.Duration, err)
		}
	}
	for name := range r.Labels {
		if !promModel.LabelName(name).IsValid() {
			return fmt.Errorf("rule %s: invalid label name %q", r.Name, name)
		}
	}
	for name := range r.Annotations {
		if !promModel.LabelName(name).IsValid() {
			return fmt.Errorf("rule %s: invalid annotation name %q", r.Name, name)
		}
	}
	return nil
}
