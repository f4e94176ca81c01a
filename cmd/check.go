package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"overseer/internal/config"
	"overseer/internal/launcher"
	"overseer/internal/servertype"
	"overseer/pkg/logging"
	ostrings "overseer/pkg/strings"
)

var (
	checkConfigPath   string
	checkOutputFormat string
)

// serverReport is one row of the check output.
type serverReport struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	Mode         string `json:"mode" yaml:"mode"`
	AutoStart    bool   `json:"autoStart" yaml:"autoStart"`
	Command      string `json:"command,omitempty" yaml:"command,omitempty"`
	DeployFolder string `json:"deployFolder,omitempty" yaml:"deployFolder,omitempty"`
	Deployables  int    `json:"deployables" yaml:"deployables"`
	Status       string `json:"status" yaml:"status"`
	Problem      string `json:"problem,omitempty" yaml:"problem,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and show the configured servers",
	Long: `Loads config.yaml, validates it and reports for every server the rendered start
command, the deployment folder and whether it could be started right now.

Examples:
  overseer check
  overseer check --config-path ./dev -o json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Long += "\n\nServer types:" + serverTypesHelp()

	checkCmd.Flags().StringVar(&checkConfigPath, "config-path", "", "Configuration directory (default ~/.config/overseer)")
	checkCmd.Flags().StringVarP(&checkOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
}

func serverTypesHelp() string {
	var b strings.Builder
	for _, id := range servertype.Types() {
		preset, _ := servertype.Lookup(id)
		fmt.Fprintf(&b, "\n  %-8s %s", id, preset.Description)
	}
	return b.String()
}

func runCheck(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	path := checkConfigPath
	if path == "" {
		var err error
		if path, err = config.GetDefaultConfigPath(); err != nil {
			return err
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	validationErr := config.Validate(cfg, servertype.KnownType)

	reports := make([]serverReport, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		reports = append(reports, checkServer(sc))
	}

	out := cmd.OutOrStdout()
	switch checkOutputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	case "yaml":
		if err := yaml.NewEncoder(out).Encode(reports); err != nil {
			return err
		}
	case "table", "":
		renderReports(out, reports)
	default:
		return fmt.Errorf("unknown output format %q (table, json, yaml)", checkOutputFormat)
	}

	if validationErr != nil {
		return fmt.Errorf("configuration in %s is invalid: %w", path, validationErr)
	}
	return nil
}

func checkServer(sc config.ServerConfig) serverReport {
	r := serverReport{
		Name:        sc.Name,
		Type:        sc.Type,
		Mode:        sc.Mode,
		AutoStart:   sc.AutoStart,
		Deployables: len(sc.Deployables),
		Status:      "ok",
	}

	srv, err := servertype.New(sc, servertype.Options{})
	if err != nil {
		r.Status = "invalid"
		r.Problem = err.Error()
		return r
	}
	effective := srv.Config()
	attrs := config.NewAttributes(effective.Attributes)

	if len(effective.Start) > 0 {
		l := launcher.NewCommandLauncher(effective.Name, attrs, effective.Start, effective.Stop)
		if specs, err := l.Render(effective.Start, effective.Mode); err == nil {
			r.Command = strings.TrimSpace(specs[0].Command + " " + strings.Join(specs[0].Args, " "))
		}
	}
	if preset, ok := servertype.Lookup(effective.Type); ok && preset.DeployFolder != nil {
		if folder, err := preset.DeployFolder(attrs); err == nil {
			r.DeployFolder = folder
		}
	}
	r.Deployables = len(srv.Deployables())

	if st := srv.CanStart(effective.Mode); !st.IsOK() {
		r.Status = string(st.Severity)
		r.Problem = st.Message
	}
	return r
}

func renderReports(out io.Writer, reports []serverReport) {
	if len(reports) == 0 {
		fmt.Fprintln(out, text.FgYellow.Sprint("No servers configured"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("TYPE"),
		text.FgHiCyan.Sprint("MODE"),
		text.FgHiCyan.Sprint("AUTOSTART"),
		text.FgHiCyan.Sprint("COMMAND"),
		text.FgHiCyan.Sprint("DEPLOY FOLDER"),
		text.FgHiCyan.Sprint("DEPLOYABLES"),
		text.FgHiCyan.Sprint("STATUS"),
	})
	for _, r := range reports {
		status := text.FgGreen.Sprint(r.Status)
		if r.Problem != "" {
			status = text.FgRed.Sprint(ostrings.Cell(r.Problem))
		}
		t.AppendRow(table.Row{r.Name, r.Type, r.Mode, r.AutoStart, ostrings.Cell(r.Command), r.DeployFolder, r.Deployables, status})
	}
	t.Render()
}
