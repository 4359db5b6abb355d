package triage

import (
	"context"
	"time"
)

// ChangeAction names the kind of configuration change.
type ChangeAction string

const (
	ActionRuleAdded     ChangeAction = "rule_added"
	ActionRuleUpdated   ChangeAction = "rule_updated"
	ActionRuleDeleted   ChangeAction = "rule_deleted"
	ActionConfigUpdated ChangeAction = "config_updated"
)

// ChangeEvent describes one successful mutation of the routing document.
type ChangeEvent struct {
	Action    ChangeAction
	RuleID    string
	Rule      *Rule // nil for deletions and whole-document saves
	RuleCount int
	At        time.Time
}

// Notifier is told about configuration changes after they are persisted.
// Delivery failures never affect the mutation that triggered them.
type Notifier interface {
	NotifyConfigChange(ctx context.Context, ev *ChangeEvent) error
}

// Hooks are optional callbacks for instrumentation. Nil fields are skipped.
type Hooks struct {
	OnChange func(action ChangeAction, ruleCount int)
	OnFailed func(op string, kind Kind)
	OnPrompt func(bytes int, rules int, duration float64)
}
