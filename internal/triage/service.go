package triage

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Stable client-facing messages for service failures.
const (
	msgLoad   = "Failed to load triage configuration"
	msgSave   = "Failed to save triage configuration"
	msgAdd    = "Failed to add triage rule"
	msgUpdate = "Failed to update triage rule"
	msgDelete = "Failed to delete triage rule"
	msgPrompt = "Failed to build system prompt"
)

const notifyTimeout = 10 * time.Second

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithHooks installs instrumentation callbacks.
func WithHooks(h Hooks) ServiceOption {
	return func(s *Service) { s.hooks = h }
}

// WithNotifier sends change events to n after every successful mutation.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithPromptOptions sets the organization and fallback contact used in prompts.
func WithPromptOptions(o PromptOptions) ServiceOption {
	return func(s *Service) { s.prompt = o }
}

// Service is the business boundary for triage configuration. It validates input,
// delegates to the ConfigStore and translates storage failures into *Error values
// carrying a stable message.
type Service struct {
	store    *ConfigStore
	logger   log.Logger
	hooks    Hooks
	notifier Notifier
	prompt   PromptOptions
	now      func() time.Time
}

// NewService creates a new triage service.
func NewService(store *ConfigStore, logger log.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetConfig returns the current routing document.
func (s *Service) GetConfig(ctx context.Context) (*Config, error) {
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, s.fail(ctx, "get_config", msgLoad, err)
	}
	return cfg, nil
}

// SaveConfig validates and replaces the whole document, returning what was stored.
func (s *Service) SaveConfig(ctx context.Context, cfg *Config) (*Config, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return nil, s.fail(ctx, "save_config", msgSave, err)
	}
	out := cfg.Clone()
	out.normalize()
	s.changed(ctx, &ChangeEvent{Action: ActionConfigUpdated, RuleCount: len(out.Rules)})
	return out, nil
}

// AddRule appends a rule, generating its id when empty.
func (s *Service) AddRule(ctx context.Context, rule Rule) (*Config, error) {
	if err := ValidateRule(rule, false); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		rule.ID = NewRuleID()
	}
	cfg, err := s.store.AddRule(ctx, rule)
	if err != nil {
		return nil, s.fail(ctx, "add_rule", msgAdd, err)
	}
	s.changed(ctx, &ChangeEvent{Action: ActionRuleAdded, RuleID: rule.ID, Rule: ruleRef(rule), RuleCount: len(cfg.Rules)})
	return cfg, nil
}

// UpdateRule replaces the rule stored under id. The id argument selects the rule;
// the body must carry an id of its own but it is stored as given.
func (s *Service) UpdateRule(ctx context.Context, id string, rule Rule) (*Config, error) {
	if err := ValidateRule(rule, true); err != nil {
		return nil, err
	}
	cfg, err := s.store.UpdateRule(ctx, id, rule)
	if err != nil {
		return nil, s.fail(ctx, "update_rule", msgUpdate, err)
	}
	s.changed(ctx, &ChangeEvent{Action: ActionRuleUpdated, RuleID: id, Rule: ruleRef(rule), RuleCount: len(cfg.Rules)})
	return cfg, nil
}

// DeleteRule removes the rule stored under id.
func (s *Service) DeleteRule(ctx context.Context, id string) (*Config, error) {
	cfg, err := s.store.DeleteRule(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "delete_rule", msgDelete, err)
	}
	s.changed(ctx, &ChangeEvent{Action: ActionRuleDeleted, RuleID: id, RuleCount: len(cfg.Rules)})
	return cfg, nil
}

// BuildSystemPrompt renders the prompt for the current document.
func (s *Service) BuildSystemPrompt(ctx context.Context) (string, error) {
	start := s.now()
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return "", s.fail(ctx, "build_prompt", msgPrompt, err)
	}
	prompt := RenderPrompt(cfg, s.prompt)
	if s.hooks.OnPrompt != nil {
		s.hooks.OnPrompt(len(prompt), len(cfg.Rules), s.now().Sub(start).Seconds())
	}
	return prompt, nil
}

// Resolve runs the rule set against known facts without involving the LLM.
func (s *Service) Resolve(ctx context.Context, requestType string, facts map[string]string) (*Rule, bool, error) {
	cfg, err := s.store.GetConfig(ctx)
	if err != nil {
		return nil, false, s.fail(ctx, "resolve", msgLoad, err)
	}
	r, ok := Resolve(cfg, requestType, facts)
	return r, ok, nil
}

// Summary describes the loaded document for startup logging.
func (s *Service) Summary(ctx context.Context) (requestTypes, fields, rules int, err error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	return len(cfg.RequestTypes), len(cfg.ConditionFields), len(cfg.Rules), nil
}

// fail logs the cause and returns the translated error.
func (s *Service) fail(ctx context.Context, op, msg string, err error) error {
	var nf *RuleNotFoundError
	if errors.As(err, &nf) {
		if s.hooks.OnFailed != nil {
			s.hooks.OnFailed(op, KindNotFound)
		}
		return &Error{Kind: KindNotFound, Msg: "Rule with id " + nf.ID + " not found", Err: err}
	}

	s.logger.Error(ctx, err, "triage config operation failed", "op", op)
	if s.hooks.OnFailed != nil {
		s.hooks.OnFailed(op, KindInternal)
	}
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

func (s *Service) changed(ctx context.Context, ev *ChangeEvent) {
	ev.At = s.now()

	s.logger.Info(ctx, "configuration change",
		"action", ev.Action,
		"rule_id", ev.RuleID,
		"rule_count", ev.RuleCount,
	)
	if s.hooks.OnChange != nil {
		s.hooks.OnChange(ev.Action, ev.RuleCount)
	}
	if s.notifier == nil {
		return
	}

	// detach from the request so delivery outlives it
	nctx := context.WithoutCancel(ctx)
	go func() {
		nctx, cancel := context.WithTimeout(nctx, notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyConfigChange(nctx, ev); err != nil {
			s.logger.Warn(nctx, "config change notification failed", "action", ev.Action, "error", err)
		}
	}()
}

func ruleRef(r Rule) *Rule {
	c := r.Clone()
	return &c
}
