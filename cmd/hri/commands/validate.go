package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/hri/internal/config"
	"github.com/dyluth/hri/internal/handler"
	"github.com/dyluth/hri/internal/printer"
	"github.com/dyluth/hri/internal/server"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check hri.yml and list its handlers",
	Long: `Validate the configuration the way 'hri serve' loads it: the file
structure, every handler kind and pattern, continuation references and
cycles, and the reasoning backends.

Examples:
  hri validate
  hri validate --config robots/lab.yml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	components, err := server.Assemble(cfg, server.Deps{})
	if err != nil {
		return printer.ErrorWithContext(
			"invalid handler configuration",
			err.Error(),
			map[string]string{"Config": settings.GetString(keyConfig)},
			nil,
		)
	}

	printer.Success("%s is valid\n\n", settings.GetString(keyConfig))
	writeTemplates(cmd.OutOrStdout(), cfg, components.Engine.Templates())
	return nil
}

func writeTemplates(w io.Writer, cfg *config.HRIConfig, templates []*handler.Template) {
	fmt.Fprintf(w, "selection: %s, decision policy: %s\n\n", cfg.Selection, cfg.Decision.Policy)
	fmt.Fprintf(w, "%-20s  %-18s  %-40s  %s\n", "NAME", "KIND", "TRIGGER", "CONTINUATIONS")
	for _, t := range templates {
		trigger := "-"
		switch {
		case t.Matcher != nil:
			trigger = fmt.Sprintf("%q", t.Matcher.Template())
		case t.Gesture != "":
			trigger = "gesture " + t.Gesture
		}
		fmt.Fprintf(w, "%-20s  %-18s  %-40s  %s\n", t.Name, t.Kind, trigger, continuations(t))
	}
	fmt.Fprintf(w, "\n%d handlers, %d continuations\n", len(cfg.Handlers), len(cfg.Continuations))
}

func continuations(t *handler.Template) string {
	var refs []string
	for _, c := range []struct {
		field string
		t     *handler.Template
	}{
		{"ack", t.Ack},
		{"on_success", t.OnSuccess},
		{"on_failure", t.OnFailure},
		{"planner", t.Planner},
	} {
		if c.t != nil {
			refs = append(refs, c.field+"="+c.t.Name)
		}
	}
	if len(refs) == 0 {
		return "-"
	}
	return strings.Join(refs, " ")
}
