// Package slack posts triage configuration changes to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/intake/internal/triage"
)

const (
	maxSectionLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends configuration change events to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, NotifyConfigChange is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// NotifyConfigChange implements triage.Notifier.
func (n *Notifier) NotifyConfigChange(ctx context.Context, ev *triage.ChangeEvent) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(ev))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "action", ev.Action, "rule_id", ev.RuleID)
	return nil
}

func buildMessage(ev *triage.ChangeEvent) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(ev),
			{"type": "divider"},
			fieldsBlock(ev),
			{"type": "divider"},
			ruleBlock(ev),
			contextBlock(ev),
		},
	}
}

func headerBlock(ev *triage.ChangeEvent) map[string]any {
	text := fmt.Sprintf("%s %s", actionEmoji(ev.Action), actionTitle(ev.Action))
	if ev.RuleID != "" {
		text += ": " + ev.RuleID
	}

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(ev *triage.ChangeEvent) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Action:* %s", ev.Action),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Rules:* %d", ev.RuleCount),
		},
	}
	if ev.Rule != nil {
		fields = append(fields,
			map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Assignee:* %s", ev.Rule.Assignee),
			},
			map[string]any{
				"type": "mrkdwn",
				"text": "*Priority:* " + strconv.Itoa(ev.Rule.Priority),
			},
		)
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func ruleBlock(ev *triage.ChangeEvent) map[string]any {
	var text string
	switch {
	case ev.Rule != nil:
		text = "*Rule*\n\n" + truncate(triage.DescribeRule(*ev.Rule), maxSectionLen)
	case ev.Action == triage.ActionRuleDeleted:
		text = "_Rule removed from the routing configuration._"
	default:
		text = "_Routing configuration replaced._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(ev *triage.ChangeEvent) map[string]any {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("intake • %s • %s", ev.Action, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func actionTitle(a triage.ChangeAction) string {
	switch a {
	case triage.ActionRuleAdded:
		return "Triage rule added"
	case triage.ActionRuleUpdated:
		return "Triage rule updated"
	case triage.ActionRuleDeleted:
		return "Triage rule deleted"
	default:
		return "Triage configuration updated"
	}
}

func actionEmoji(a triage.ChangeAction) string {
	switch a {
	case triage.ActionRuleAdded:
		return "\U0001f7e2" // green circle
	case triage.ActionRuleUpdated:
		return "\U0001f7e1" // yellow circle
	case triage.ActionRuleDeleted:
		return "\U0001f534" // red circle
	default:
		return "\U0001f535" // blue circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
