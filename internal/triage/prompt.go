package triage

import (
	"strconv"
	"strings"
)

const (
	DefaultOrganization    = "Acme Corp"
	DefaultFallbackContact = "legal@acme.corp"
)

// PromptOptions holds the deployment-specific parts of the system prompt.
type PromptOptions struct {
	Organization    string
	FallbackContact string
}

func (o PromptOptions) withDefaults() PromptOptions {
	if o.Organization == "" {
		o.Organization = DefaultOrganization
	}
	if o.FallbackContact == "" {
		o.FallbackContact = DefaultFallbackContact
	}
	return o
}

// RenderPrompt turns a validated document into the system prompt handed to the LLM.
// Output depends only on cfg and opts: identical input yields byte-identical text.
func RenderPrompt(cfg *Config, opts PromptOptions) string {
	opts = opts.withDefaults()
	if cfg == nil {
		cfg = &Config{}
	}

	rules := renderRules(OrderRules(cfg.Rules))

	labels := make([]string, 0, len(cfg.ConditionFields))
	for _, f := range cfg.ConditionFields {
		labels = append(labels, f.Label)
	}

	// the model is told to name an email only when some rule actually routes to one
	contact := "the appropriate contact"
	if strings.Contains(rules, "@") {
		contact = "[assignee email]"
	}

	var b strings.Builder
	b.WriteString("You are a legal request triage assistant for ")
	b.WriteString(opts.Organization)
	b.WriteString(".\n\n")

	b.WriteString("Your task:\n")
	b.WriteString("1. Understand the user's legal request through natural conversation\n")
	b.WriteString("2. Ask ONLY the necessary clarifying questions to match their request to a triage rule\n")
	b.WriteString("3. Once you have enough information, provide the appropriate team member's email\n\n")

	b.WriteString("Available Request Types:\n")
	for i, t := range cfg.RequestTypes {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(t)
	}
	b.WriteString("\n\n")

	b.WriteString("Triage Rules (in priority order):\n")
	b.WriteString(rules)
	b.WriteString("\n\n")

	b.WriteString("Guidelines:\n")
	b.WriteString("- Be conversational and friendly\n")
	b.WriteString("- Ask one question at a time\n")
	b.WriteString("- Only ask about fields that affect routing: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString("\n")
	b.WriteString(`- When you've identified the correct assignee, clearly state: "Please email `)
	b.WriteString(contact)
	b.WriteString(` for help with your request."`)
	b.WriteString("\n")
	b.WriteString("- If no rules match exactly, suggest they contact ")
	b.WriteString(opts.FallbackContact)
	b.WriteString("\n")
	b.WriteString("- Be helpful and guide the user to the right person\n\n")

	b.WriteString("Start by understanding what type of legal request they have.")
	return b.String()
}

// RenderRule renders one rule line at 1-based rank i:
// `{i}. {requestType}{conditionClause} → {assignee}`.
func RenderRule(i int, r Rule) string {
	return strconv.Itoa(i) + ". " + DescribeRule(r)
}

// DescribeRule is the unranked form of a rule line.
func DescribeRule(r Rule) string {
	return r.RequestType + conditionClause(r.Conditions) + " → " + r.Assignee
}

func renderRules(ordered []Rule) string {
	lines := make([]string, len(ordered))
	for i, r := range ordered {
		lines[i] = RenderRule(i+1, r)
	}
	return strings.Join(lines, "\n")
}

func conditionClause(conds []Condition) string {
	if len(conds) == 0 {
		return " (any conditions)"
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.Field + ` is "` + c.Value.Text() + `"`
	}
	return " when " + strings.Join(parts, " AND ")
}
