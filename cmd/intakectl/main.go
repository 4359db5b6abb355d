// Intakectl checks and converts triage routing documents offline, without a running server.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/intake/internal/triage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intakectl",
		Short: "Inspect and convert legal-intake routing documents",
		Long: `Intakectl works on routing documents (JSON or YAML) outside the server:
validate them, render the assistant system prompt, dry-run routing decisions,
and convert between formats. A path of "-" reads JSON from stdin.`,
		SilenceUsage: true,
	}

	root.AddCommand(validateCmd())
	root.AddCommand(renderCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(convertCmd())
	root.AddCommand(defaultCmd())
	return root
}

// load reads and validates the document named by path.
func load(cmd *cobra.Command, path string) (*triage.Config, error) {
	cfg, err := readDocument(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if err := triage.ValidateConfig(cfg); err != nil {
		printValidation(cmd.ErrOrStderr(), err)
		return nil, err
	}
	return cfg, nil
}

func printValidation(w io.Writer, err error) {
	var ve *triage.ValidationError
	if !errors.As(err, &ve) {
		return
	}
	for _, fe := range ve.Errors {
		if fe.Field == "" {
			_, _ = fmt.Fprintf(w, "  - %s\n", fe.Message)
			continue
		}
		_, _ = fmt.Fprintf(w, "  - %s: %s\n", fe.Field, fe.Message)
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a routing document against the document rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d request types, %d condition fields, %d rules\n",
				len(cfg.RequestTypes), len(cfg.ConditionFields), len(cfg.Rules))
			return err
		},
	}
}

func renderCmd() *cobra.Command {
	var opts triage.PromptOptions

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Print the assistant system prompt built from a routing document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), triage.RenderPrompt(cfg, opts))
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "organization", triage.DefaultOrganization, "organization named in the prompt")
	cmd.Flags().StringVar(&opts.FallbackContact, "fallback-contact", triage.DefaultFallbackContact, "contact used when no rule matches")
	return cmd
}

func resolveCmd() *cobra.Command {
	var (
		requestType string
		facts       []string
	)

	cmd := &cobra.Command{
		Use:   "resolve [file]",
		Short: "Show which rule a request would be routed by",
		Example: `  intakectl resolve rules.yaml --type "Sales Contract" --fact location=Australia`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestType == "" {
				return errors.New("--type is required")
			}
			parsed, err := parseFacts(facts)
			if err != nil {
				return err
			}
			cfg, err := load(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rule, ok := triage.Resolve(cfg, requestType, parsed)
			if !ok {
				_, err = fmt.Fprintln(out, "no matching rule")
				return err
			}
			_, err = fmt.Fprintf(out, "%s (priority %d): %s\n", rule.ID, rule.Priority, triage.DescribeRule(*rule))
			return err
		},
	}

	cmd.Flags().StringVar(&requestType, "type", "", "request type to route")
	cmd.Flags().StringArrayVar(&facts, "fact", nil, "known fact as field=value (repeatable)")
	return cmd
}

func parseFacts(kvs []string) (map[string]string, error) {
	facts := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid fact %q (want field=value)", kv)
		}
		facts[k] = v
	}
	return facts, nil
}

func convertCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert a routing document between JSON and YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if to == "" {
				to = formatYAML
				if formatOf(args[0]) == formatYAML {
					to = formatJSON
				}
			}
			return encodeDocument(cmd.OutOrStdout(), cfg, to)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "output format json|yaml (default: the other one)")
	return cmd
}

func defaultCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "default",
		Short: "Print the built-in starter routing document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return encodeDocument(cmd.OutOrStdout(), triage.DefaultConfig(), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatJSON, "output format json|yaml")
	return cmd
}
