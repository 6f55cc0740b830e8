// Package output renders deployment results for humans and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/pipeline"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

type Options struct {
	Format string
	Color  bool
	// HideCredentials leaves generated secrets out of the printout, e.g. when they were sealed to a file.
	HideCredentials bool
}

// Render writes the results to w. A single result is rendered on its own, several as a list.
func Render(w io.Writer, results []*pipeline.Result, opts Options) error {
	if opts.HideCredentials {
		results = withoutCredentials(results)
	}

	switch opts.Format {
	case FormatJSON:
		return renderJSON(w, results)
	case FormatTable, "":
		for i, result := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := renderTable(w, result, opts); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("output format '%s' is not recognized", opts.Format)
	}
}

func renderJSON(w io.Writer, results []*pipeline.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if len(results) == 1 {
		return encoder.Encode(results[0])
	}
	return encoder.Encode(results)
}

func renderTable(w io.Writer, result *pipeline.Result, opts Options) error {
	colorize := colorizer(opts.Color)

	summary := [][]string{
		{"Deployment", result.DeploymentID},
		{"Domain", result.Domain},
		{"Status", colorize(statusColor(string(result.Status)), string(result.Status))},
		{"Duration", result.Duration.String()},
	}
	if result.Succeeded() {
		summary = append(summary,
			[]string{"Site", result.SiteURL},
			[]string{"Admin", result.AdminURL},
		)
	}
	if creds := result.Credentials; creds != nil {
		summary = append(summary,
			[]string{"Database", creds.DatabaseName},
			[]string{"Database user", creds.DatabaseUser},
			[]string{"Database password", creds.DatabasePassword},
			[]string{"Admin user", creds.AdminUser},
			[]string{"Admin password", creds.AdminPassword},
			[]string{"Table prefix", creds.TablePrefix},
		)
	}
	if failure := result.Failure(); failure != nil {
		summary = append(summary, []string{"Failed stage", fmt.Sprintf("%s (%s)", failure.Name, failure.Kind)})
	}

	table, err := Table(nil, summary, tw.AlignRight, tw.AlignLeft)
	if err != nil {
		return fmt.Errorf("printing deployment summary: %w", err)
	}
	fmt.Fprint(w, table)
	fmt.Fprintln(w)

	stages := make([][]string, 0, len(result.Stages))
	for _, stage := range result.Stages {
		message := stage.Message
		if stage.Detail != "" {
			message = fmt.Sprintf("%s: %s", message, stage.Detail)
		}
		stages = append(stages, []string{
			string(stage.State),
			stage.Name,
			colorize(stageColor(stage), string(stage.Status)),
			message,
			stage.Duration.String(),
		})
	}

	table, err = Table([]string{"State", "Stage", "Status", "Message", "Duration"}, stages)
	if err != nil {
		return fmt.Errorf("printing stage log: %w", err)
	}
	fmt.Fprint(w, table)
	return nil
}

// Table renders rows without borders. Alignments apply per column.
func Table(header []string, data [][]string, alignment ...tw.Align) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: alignment},
			},
		}))

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

func colorizer(enabled bool) func(color.Attribute, string) string {
	if !enabled || color.NoColor {
		return func(_ color.Attribute, s string) string {
			return s
		}
	}
	return func(attribute color.Attribute, s string) string {
		return color.New(attribute).Sprint(s)
	}
}

func statusColor(status string) color.Attribute {
	switch status {
	case string(pipeline.StatusSucceeded):
		return color.FgGreen
	case string(pipeline.StatusFailed):
		return color.FgRed
	default:
		return color.FgYellow
	}
}

func stageColor(stage pipeline.StageResult) color.Attribute {
	if stage.Status == pipeline.StageFailed && stage.Kind == deployerr.KindBestEffort {
		return color.FgYellow
	}
	return statusColor(string(stage.Status))
}

func withoutCredentials(results []*pipeline.Result) []*pipeline.Result {
	stripped := make([]*pipeline.Result, 0, len(results))
	for _, result := range results {
		copied := *result
		copied.Credentials = nil
		stripped = append(stripped, &copied)
	}
	return stripped
}
