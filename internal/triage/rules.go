package triage

import (
	"cmp"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
)

// RuleIDPrefix starts every generated rule id.
const RuleIDPrefix = "rule-"

// NewRuleID returns a collision-resistant rule id. ulid.Make uses monotonic entropy
// and is safe for concurrent use, so rapid back-to-back creations stay distinct.
func NewRuleID() string {
	return RuleIDPrefix + ulid.Make().String()
}

// OrderRules returns a copy of rules sorted ascending by priority. The sort is stable:
// equal priorities keep their relative order from the source list.
func OrderRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r.Clone()
	}
	slices.SortStableFunc(out, func(a, b Rule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}

// MatchMode selects how a condition value is compared to a fact.
type MatchMode int

const (
	// MatchEquals holds when the fact equals one of the listed values.
	MatchEquals MatchMode = iota
)

// Matches reports whether every condition of the rule holds for facts. Missing facts
// never match; an empty condition list matches everything.
func (r Rule) Matches(facts map[string]string, mode MatchMode) bool {
	for _, c := range r.Conditions {
		fact, ok := facts[c.Field]
		if !ok || !c.Value.matches(fact, mode) {
			return false
		}
	}
	return true
}

func (v ConditionValue) matches(fact string, mode MatchMode) bool {
	fact = strings.TrimSpace(fact)
	switch mode {
	case MatchEquals:
		for _, want := range v.values {
			if strings.TrimSpace(want) == fact {
				return true
			}
		}
	}
	return false
}

// Resolve walks the rules in priority order and returns the first rule for requestType
// whose conditions all hold. It is a dry run of the routing the LLM is asked to perform.
func Resolve(cfg *Config, requestType string, facts map[string]string) (*Rule, bool) {
	if cfg == nil {
		return nil, false
	}
	for _, r := range OrderRules(cfg.Rules) {
		if r.RequestType != requestType {
			continue
		}
		if r.Matches(facts, MatchEquals) {
			return &r, true
		}
	}
	return nil, false
}
