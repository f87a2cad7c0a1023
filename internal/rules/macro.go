package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/promfleet/promfleet/internal/model"
)

// ExclusionMacro is the placeholder inside a rule clause that expands to a
// label selector excluding every child override of the rule. A parent rule at
// service scope must not fire for projects that carry their own copy.
const ExclusionMacro = "<exclude>"

// ExpandMacro replaces the exclusion macro in a rule clause with negative
// matchers built from the rule's overrides, grouped per owner kind:
//
//	foo{<exclude>} > 5            parent at service scope
//	foo{project="A",<exclude>} > 3  child override for project A
//
// renders the parent as foo{project!~"A"} > 5. Matchers are sorted so the
// expansion is stable across renders.
func ExpandMacro(r *model.Rule) string {
	byKind := map[string][]string{}
	for _, child := range r.Overrides {
		kind := string(child.Owner.Kind)
		byKind[kind] = append(byKind[kind], child.OwnerName)
	}

	matchers := make([]string, 0, len(byKind))
	for kind, names := range byKind {
		sort.Strings(names)
		matchers = append(matchers, fmt.Sprintf("%s!~\"%s\"", kind, strings.Join(names, "|")))
	}
	sort.Strings(matchers)

	// A clause may reference the macro more than once, e.g. a ratio of two
	// selectors. Every occurrence gets the same expansion.
	return strings.ReplaceAll(r.Clause, ExclusionMacro, strings.Join(matchers, ","))
}

// InjectScope narrows a clause to one owning object while keeping the macro
// in place so the copy can itself be overridden later. Used when copying a
// rule to a more specific scope.
func InjectScope(clause string, kind model.ObjectKind, name string) string {
	return strings.ReplaceAll(clause, ExclusionMacro,
		fmt.Sprintf("%s=\"%s\",%s", kind, name, ExclusionMacro))
}
