package rules

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/promfleet/promfleet/internal/model"
)

func int64p(v int64) *int64 { return &v }

func TestExpandMacro(t *testing.T) {
	parent := &model.Rule{
		ID:     1,
		Name:   "HighErrorRate",
		Clause: `rate(errors{<exclude>}[5m]) > 5`,
		Overrides: []*model.Rule{
			{ParentID: int64p(1), Owner: model.ObjectRef{Kind: model.KindProject}, OwnerName: "zulu"},
			{ParentID: int64p(1), Owner: model.ObjectRef{Kind: model.KindProject}, OwnerName: "alpha"},
		},
	}
	got := ExpandMacro(parent)
	want := `rate(errors{project!~"alpha|zulu"}[5m]) > 5`
	if got != want {
		t.Fatalf("expanded clause = %q, want %q", got, want)
	}
}

func TestExpandMacroEveryOccurrence(t *testing.T) {
	parent := &model.Rule{
		ID:     2,
		Name:   "ErrorRatio",
		Clause: `errors{<exclude>} / requests{<exclude>} > 0.1`,
		Overrides: []*model.Rule{
			{ParentID: int64p(2), Owner: model.ObjectRef{Kind: model.KindProject}, OwnerName: "checkout"},
		},
	}
	got := ExpandMacro(parent)
	want := `errors{project!~"checkout"} / requests{project!~"checkout"} > 0.1`
	if got != want {
		t.Fatalf("expanded clause = %q, want %q", got, want)
	}
	if strings.Contains(got, ExclusionMacro) {
		t.Fatalf("macro left unexpanded in %q", got)
	}
}

func TestExpandMacroNoOverrides(t *testing.T) {
	r := &model.Rule{Clause: `up{<exclude>} == 0`}
	if got := ExpandMacro(r); got != `up{} == 0` {
		t.Fatalf("expanded clause = %q", got)
	}
}

func TestInjectScope(t *testing.T) {
	got := InjectScope(`up{<exclude>} == 0`, model.KindProject, "checkout")
	want := `up{project="checkout",<exclude>} == 0`
	if got != want {
		t.Fatalf("scoped clause = %q, want %q", got, want)
	}
}

func TestInjectScopeEveryOccurrence(t *testing.T) {
	got := InjectScope(`foo{<exclude>} / bar{<exclude>} > 5`, model.KindProject, "checkout")
	want := `foo{project="checkout",<exclude>} / bar{project="checkout",<exclude>} > 5`
	if got != want {
		t.Fatalf("scoped clause = %q, want %q", got, want)
	}
}

func TestRenderGroupsAndDeepLink(t *testing.T) {
	ruleSet := []*model.Rule{
		{
			ID: 7, Name: "InstanceDown", Clause: `up{<exclude>} == 0`, Duration: "5m",
			OwnerName: "shop",
			Labels:    map[string]string{"severity": "critical"},
		},
		{
			ID: 3, Name: "DiskFull", Clause: `disk_free < 0.1`,
			OwnerName:   "infra",
			Annotations: map[string]string{"summary": "disk almost full"},
		},
	}

	out, err := Render(ruleSet, "https://promfleet.example.com")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var doc struct {
		Groups []struct {
			Name  string `yaml:"name"`
			Rules []struct {
				Alert       string            `yaml:"alert"`
				Expr        string            `yaml:"expr"`
				For         string            `yaml:"for"`
				Annotations map[string]string `yaml:"annotations"`
			} `yaml:"rules"`
		} `yaml:"groups"`
	}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid yaml: %v\n%s", err, out)
	}

	if len(doc.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(doc.Groups))
	}
	// groups sorted by name
	if doc.Groups[0].Name != "infra" || doc.Groups[1].Name != "shop" {
		t.Fatalf("groups out of order: %s, %s", doc.Groups[0].Name, doc.Groups[1].Name)
	}

	infra := doc.Groups[0].Rules[0]
	if infra.Annotations["rule"] != "https://promfleet.example.com/rule/3" {
		t.Errorf("deep link = %q", infra.Annotations["rule"])
	}
	if infra.Annotations["summary"] != "disk almost full" {
		t.Errorf("summary annotation lost: %v", infra.Annotations)
	}

	shop := doc.Groups[1].Rules[0]
	if shop.Expr != "up{} == 0" {
		t.Errorf("expr = %q", shop.Expr)
	}
	if shop.For != "5m" {
		t.Errorf("for = %q", shop.For)
	}
}

func TestRenderIdempotent(t *testing.T) {
	ruleSet := []*model.Rule{
		{ID: 1, Name: "B", Clause: "x > 1", OwnerName: "s"},
		{ID: 2, Name: "A", Clause: "y > 1", OwnerName: "s"},
	}
	first, err := Render(ruleSet, "http://localhost")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := Render(ruleSet, "http://localhost")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("identical input produced different bytes")
	}
	if strings.Index(string(first), "alert: A") > strings.Index(string(first), "alert: B") {
		t.Fatal("rules not sorted by name within group")
	}
}
