package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/dyluth/hri/internal/pattern"
	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/server"
	"github.com/dyluth/hri/pkg/hri"
	"github.com/spf13/cobra"
)

var matchTemplate string

var matchCmd = &cobra.Command{
	Use:   "match <text>",
	Short: "Show which handler a text selects and the values it extracts",
	Long: `Match a text against the handlers in hri.yml, or against a single
template given with --template, and print the extracted values.

Examples:
  # Which handler answers this?
  hri match "bring the bottle to bob"

  # Try a template without touching hri.yml
  hri match --template "bring the {object} to {who}" "bring the red bottle to bob"`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVarP(&matchTemplate, "template", "t", "", "Template to match instead of the configured handlers")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	text := args[0]
	out := cmd.OutOrStdout()

	if matchTemplate != "" {
		m, err := pattern.Compile(matchTemplate)
		if err != nil {
			return printer.Error("invalid template", err.Error(), nil)
		}
		values, ok := m.Match(text)
		if !ok {
			return printer.Error(
				"no match",
				fmt.Sprintf("%q does not match %q", text, matchTemplate),
				[]string{"Literal text must match exactly, including case and spacing"},
			)
		}
		printer.Success("matched %s\n", matchTemplate)
		writeValues(out, values)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	components, err := server.Assemble(cfg, server.Deps{})
	if err != nil {
		return printer.Error("failed to assemble pipeline", err.Error(), nil)
	}

	req := &hri.Request{Verbal: &hri.VerbalRequest{RawText: text}}
	t, values, ok := components.Engine.Select(req)
	if !ok {
		return printer.Error(
			"no match",
			fmt.Sprintf("No handler in %s matches %q", settings.GetString(keyConfig), text),
			[]string{"List the handler patterns with:\n  hri validate"},
		)
	}

	printer.Success("matched handler %s (%s)\n", t.Name, t.Matcher.Template())
	writeValues(out, values)
	return nil
}

func writeValues(w io.Writer, values map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %q\n", k, values[k])
	}
}
