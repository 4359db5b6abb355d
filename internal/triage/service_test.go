package triage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

type mockNotifier struct {
	events chan *ChangeEvent
	err    error
}

func (m *mockNotifier) NotifyConfigChange(_ context.Context, ev *ChangeEvent) error {
	m.events <- ev
	return m.err
}

func newTestService(b *mockBackend, opts ...ServiceOption) *Service {
	return NewService(NewConfigStore(b, nil), log.Nop(), opts...)
}

func TestService_AddRuleGeneratesID(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockBackend{doc: validConfig()})
	r := validRule()
	r.ID = ""

	cfg, err := svc.AddRule(context.Background(), r)
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	added := cfg.Rules[len(cfg.Rules)-1]
	if !strings.HasPrefix(added.ID, RuleIDPrefix) || len(added.ID) <= len(RuleIDPrefix) {
		t.Errorf("generated id = %q", added.ID)
	}
}

func TestService_AddRuleKeepsGivenID(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockBackend{})
	r := validRule()
	r.ID = "custom"

	cfg, err := svc.AddRule(context.Background(), r)
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if cfg.Rules[0].ID != "custom" {
		t.Errorf("ID = %q, want custom", cfg.Rules[0].ID)
	}
}

func TestService_ValidationPassesThrough(t *testing.T) {
	t.Parallel()

	b := &mockBackend{doc: validConfig()}
	svc := newTestService(b)
	ctx := context.Background()

	bad := validRule()
	bad.Priority = 0

	var ve *ValidationError
	if _, err := svc.AddRule(ctx, bad); !errors.As(err, &ve) {
		t.Errorf("AddRule err = %v, want *ValidationError", err)
	}
	if _, err := svc.UpdateRule(ctx, "rule-1", bad); !errors.As(err, &ve) {
		t.Errorf("UpdateRule err = %v, want *ValidationError", err)
	}
	noID := validRule()
	noID.ID = ""
	if _, err := svc.UpdateRule(ctx, "rule-1", noID); !errors.As(err, &ve) {
		t.Errorf("UpdateRule without body id err = %v, want *ValidationError", err)
	}
	if _, err := svc.SaveConfig(ctx, &Config{Rules: []Rule{bad}}); !errors.As(err, &ve) {
		t.Errorf("SaveConfig err = %v, want *ValidationError", err)
	}
	if b.saves != 0 {
		t.Errorf("saves = %d, want 0 for invalid input", b.saves)
	}
}

func TestService_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockBackend{doc: validConfig()})
	ctx := context.Background()

	r := validRule()
	r.ID = "ghost"
	for name, call := range map[string]func() error{
		"update": func() error { _, err := svc.UpdateRule(ctx, "ghost", r); return err },
		"delete": func() error { _, err := svc.DeleteRule(ctx, "ghost"); return err },
	} {
		err := call()
		var se *Error
		if !errors.As(err, &se) {
			t.Fatalf("%s: expected *Error, got %T", name, err)
		}
		if se.Kind != KindNotFound {
			t.Errorf("%s: Kind = %v, want not_found", name, se.Kind)
		}
		if se.Msg != "Rule with id ghost not found" {
			t.Errorf("%s: Msg = %q", name, se.Msg)
		}
		if !IsNotFound(err) {
			t.Errorf("%s: IsNotFound = false", name)
		}
	}
}

func TestService_InternalMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name string
		b    *mockBackend
		call func(*Service) error
		msg  string
	}{
		{
			name: "get", b: &mockBackend{loadErr: boom}, msg: "Failed to load triage configuration",
			call: func(s *Service) error { _, err := s.GetConfig(ctx); return err },
		},
		{
			name: "save", b: &mockBackend{saveErr: boom}, msg: "Failed to save triage configuration",
			call: func(s *Service) error { _, err := s.SaveConfig(ctx, validConfig()); return err },
		},
		{
			name: "add", b: &mockBackend{saveErr: boom}, msg: "Failed to add triage rule",
			call: func(s *Service) error { _, err := s.AddRule(ctx, validRule()); return err },
		},
		{
			name: "update", b: &mockBackend{loadErr: boom}, msg: "Failed to update triage rule",
			call: func(s *Service) error { _, err := s.UpdateRule(ctx, "rule-1", validRule()); return err },
		},
		{
			name: "delete", b: &mockBackend{loadErr: boom}, msg: "Failed to delete triage rule",
			call: func(s *Service) error { _, err := s.DeleteRule(ctx, "rule-1"); return err },
		},
		{
			name: "prompt", b: &mockBackend{loadErr: boom}, msg: "Failed to build system prompt",
			call: func(s *Service) error { _, err := s.BuildSystemPrompt(ctx); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var failedOp string
			svc := newTestService(tt.b, WithHooks(Hooks{
				OnFailed: func(op string, kind Kind) {
					if kind != KindInternal {
						t.Errorf("hook kind = %v", kind)
					}
					failedOp = op
				},
			}))

			err := tt.call(svc)
			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if se.Kind != KindInternal {
				t.Errorf("Kind = %v, want internal", se.Kind)
			}
			if se.Msg != tt.msg {
				t.Errorf("Msg = %q, want %q", se.Msg, tt.msg)
			}
			if !errors.Is(err, boom) {
				t.Error("cause not preserved")
			}
			if failedOp == "" {
				t.Error("OnFailed hook not called")
			}
		})
	}
}

func TestService_BuildSystemPromptEndToEnd(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockBackend{})
	ctx := context.Background()

	_, err := svc.SaveConfig(ctx, &Config{
		RequestTypes:    []string{"Sales Contract"},
		ConditionFields: []ConditionField{{Name: "location", Label: "Location", Type: FieldText}},
	})
	if err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if _, err := svc.AddRule(ctx, Rule{
		RequestType: "Sales Contract",
		Conditions:  []Condition{{Field: "location", Value: Single("Australia")}},
		Assignee:    "john@acme.corp",
		Priority:    1,
	}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	prompt, err := svc.BuildSystemPrompt(ctx)
	if err != nil {
		t.Fatalf("BuildSystemPrompt: %v", err)
	}
	want := `1. Sales Contract when location is "Australia" → john@acme.corp`
	if !strings.Contains(prompt, want) {
		t.Errorf("prompt missing %q:\n%s", want, prompt)
	}
}

func TestService_PromptOptions(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockBackend{doc: validConfig()},
		WithPromptOptions(PromptOptions{Organization: "Initech"}))

	prompt, err := svc.BuildSystemPrompt(context.Background())
	if err != nil {
		t.Fatalf("BuildSystemPrompt: %v", err)
	}
	if !strings.Contains(prompt, "assistant for Initech.") {
		t.Error("organization option not applied")
	}
}

func TestService_HooksAndNotifier(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		actions []ChangeAction
		prompts int
	)
	n := &mockNotifier{events: make(chan *ChangeEvent, 4), err: errors.New("slack down")}
	svc := newTestService(&mockBackend{doc: validConfig()},
		WithNotifier(n),
		WithHooks(Hooks{
			OnChange: func(a ChangeAction, _ int) {
				mu.Lock()
				actions = append(actions, a)
				mu.Unlock()
			},
			OnPrompt: func(bytes, rules int, _ float64) {
				if bytes == 0 || rules != 1 {
					t.Errorf("OnPrompt(%d, %d)", bytes, rules)
				}
				prompts++
			},
		}),
	)
	ctx := context.Background()

	if _, err := svc.DeleteRule(ctx, "rule-1"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}

	select {
	case ev := <-n.events:
		if ev.Action != ActionRuleDeleted || ev.RuleID != "rule-1" || ev.RuleCount != 0 {
			t.Errorf("event = %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("event time not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notifier not called")
	}

	mu.Lock()
	if len(actions) != 1 || actions[0] != ActionRuleDeleted {
		t.Errorf("OnChange actions = %v", actions)
	}
	mu.Unlock()

	// a failed notification never fails the mutation that triggered it
	if _, err := svc.AddRule(ctx, validRule()); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	<-n.events

	if _, err := svc.BuildSystemPrompt(ctx); err != nil {
		t.Fatalf("BuildSystemPrompt: %v", err)
	}
	if prompts != 1 {
		t.Errorf("OnPrompt calls = %d, want 1", prompts)
	}
}

func TestService_Resolve(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockBackend{doc: validConfig()})
	r, ok, err := svc.Resolve(context.Background(), "Sales Contract", map[string]string{"location": "Australia"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ok || r.Assignee != "john@acme.corp" {
		t.Errorf("Resolve = %+v, %v", r, ok)
	}
}

func TestService_Summary(t *testing.T) {
	t.Parallel()

	svc := NewService(NewConfigStore(&mockBackend{}, DefaultConfig()), nil)
	types, fields, rules, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if types == 0 || fields == 0 || rules == 0 {
		t.Errorf("Summary = %d, %d, %d", types, fields, rules)
	}
}
