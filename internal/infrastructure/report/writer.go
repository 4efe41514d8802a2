package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/mattn/go-isatty"
)

// SkipLine is printed instead of a comparison when the build is red.
const SkipLine = "skip, build is red"

type Writer struct{}

var (
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04")).Bold(true)
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func (Writer) Write(w io.Writer, result application.CompareResult, format application.OutputFormat) error {
	switch format {
	case application.OutputJSON:
		return writeJSON(w, result)
	case application.OutputBrief:
		return writeBrief(w, result)
	case application.OutputText, "":
		return writeText(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteCollect renders the per-report table of a collection.
func (Writer) WriteCollect(w io.Writer, result application.CollectResult, format application.OutputFormat) error {
	switch format {
	case application.OutputJSON:
		return writeJSON(w, result)
	case application.OutputBrief:
		_, err := fmt.Fprintf(w, "%s | %d reports | %s%s\n",
			domain.FormatWholeNoSign(result.Coverage), len(result.Measurements), result.Policy, skippedSuffix(result.Skipped))
		return err
	case application.OutputText, "":
		if err := writeMeasurements(w, result); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "Coverage %s (%s of %d reports)\n",
			domain.FormatWholeNoSign(result.Coverage), result.Policy, len(result.Measurements))
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeText(w io.Writer, result application.CompareResult) error {
	if result.Skipped {
		_, err := fmt.Fprintln(w, SkipLine)
		return err
	}

	if err := writeMeasurements(w, result.Collect); err != nil {
		return err
	}

	colorize := colorEnabled(w)
	console := result.Console
	if colorize {
		console = styleFor(result.Color).Render(console)
	}
	fmt.Fprintln(w, console)

	source := result.ReferenceSource
	if colorize {
		source = dimStyle.Render(source)
	}
	fmt.Fprintf(w, "Reference: %s (%s)\n", domain.FormatWholeNoSign(result.Reference), source)

	if result.Published != nil {
		action := "updated"
		if result.Published.Created {
			action = "created"
		}
		fmt.Fprintf(w, "Comment %s: %s\n", action, commentRef(result.Published))
	}
	return nil
}

func writeMeasurements(w io.Writer, result application.CollectResult) error {
	if len(result.Measurements) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "Report\tFormat\tCoverage")
		for _, m := range result.Measurements {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", m.Path, m.Format, m.Ratio*100)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped reports:")
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "  - %s: %s\n", s.Path, s.Reason)
		}
	}
	if len(result.Measurements) > 0 || len(result.Skipped) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

func commentRef(p *application.PRCommentResult) string {
	if p.CommentURL != "" {
		return p.CommentURL
	}
	return fmt.Sprintf("#%d", p.CommentID)
}

func styleFor(color string) lipgloss.Style {
	switch color {
	case "red":
		return redStyle
	case "yellow":
		return yellowStyle
	default:
		return greenStyle
	}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// writeBrief outputs a single-line summary optimized for LLM/agent consumption.
// Format: COLOR | XX% vs LABEL YY% | CHANGE [| N skipped]
func writeBrief(w io.Writer, result application.CompareResult) error {
	if result.Skipped {
		_, err := fmt.Fprintf(w, "SKIP | %s\n", SkipLine)
		return err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s | %s vs %s %s | %s",
		strings.ToUpper(result.Color),
		domain.FormatWholeNoSign(result.Coverage),
		result.Label,
		domain.FormatWholeNoSign(result.Reference),
		domain.FormatChange(result.Change)))
	sb.WriteString(skippedSuffix(result.Collect.Skipped))
	sb.WriteString("\n")
	_, err := w.Write([]byte(sb.String()))
	return err
}

func skippedSuffix(skipped []application.SkippedReport) string {
	if len(skipped) == 0 {
		return ""
	}
	return fmt.Sprintf(" | %d skipped", len(skipped))
}
