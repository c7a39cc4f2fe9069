package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sbctool/sbctool/internal/doctor"
	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/ui"
)

var (
	doctorJSON bool
	doctorFix  bool
)

// newDoctorChecks is swapped in tests.
var newDoctorChecks = doctor.NewChecks

// doctorCmd runs local diagnostics
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local setup for SSH and ADB",
	Long: `Check everything sbctool needs on this machine before it can reach a
board: the config file, SSH keys and agent, the ssh client, the adb server
and the adb key. No board is contacted.

Examples:
  sbctool doctor
  sbctool doctor --fix
  sbctool doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand implements the doctor command logic. It fails only when a
// check fails; warnings leave the exit code at zero.
func doctorCommand(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// A broken config is reported by the config check itself.
	cfg, _ := loadConfig()

	checks := newDoctorChecks(cfgFile, cfg)
	results := doctor.RunAllParallel(ctx, checks)
	if doctorFix {
		results = doctor.Fix(ctx, checks, results)
	}

	var err error
	if doctorJSON {
		err = outputDoctorJSON(w, checks, results)
	} else {
		outputDoctorText(w, checks, results)
	}
	if err != nil {
		return err
	}

	if doctor.HasFailures(results) {
		return errors.New(errors.ErrConfig,
			doctor.Summary(results),
			"Fix the failing checks above, then run 'sbctool doctor' again.")
	}
	return nil
}

// groupResults orders results by category.
func groupResults(checks []doctor.Check, results []doctor.CheckResult) []CategoryOutput {
	grouped := make(map[string][]doctor.CheckResult)
	for i, check := range checks {
		grouped[check.Category()] = append(grouped[check.Category()], results[i])
	}

	out := make([]CategoryOutput, 0, len(grouped))
	for _, cat := range doctor.CategoryOrder {
		if len(grouped[cat]) > 0 {
			out = append(out, CategoryOutput{Name: cat, Results: grouped[cat]})
		}
	}
	return out
}

// outputDoctorJSON outputs results in JSON format.
func outputDoctorJSON(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) error {
	counts := doctor.CountByStatus(results)
	output := DoctorOutput{
		Categories: groupResults(checks, results),
		Summary: SummaryOutput{
			Pass:     counts[doctor.StatusPass],
			Warn:     counts[doctor.StatusWarn],
			Fail:     counts[doctor.StatusFail],
			Fixable:  doctor.FixableCount(results),
			AllClear: !doctor.HasIssues(results),
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// outputDoctorText outputs results in human-readable format.
func outputDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) {
	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	warnStyle := lipgloss.NewStyle().Foreground(ui.ColorWarning)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("sbctool Diagnostic Report"))
	fmt.Fprintln(w)

	for _, category := range groupResults(checks, results) {
		fmt.Fprintln(w, headerStyle.Render(category.Name))
		for _, result := range category.Results {
			symbol, style := ui.SymbolComplete, successStyle
			switch result.Status {
			case doctor.StatusWarn:
				style = warnStyle // Still usable, but worth a look
			case doctor.StatusFail:
				symbol, style = ui.SymbolFail, errorStyle
			}

			fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), result.Message)
			if result.Suggestion != "" && result.Status != doctor.StatusPass {
				for _, line := range strings.Split(result.Suggestion, "\n") {
					fmt.Fprintf(w, "    %s\n", mutedStyle.Render(line))
				}
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintln(w)

	if !doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", successStyle.Render(ui.SymbolComplete), doctor.Summary(results))
	} else {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render(ui.SymbolFail), doctor.Summary(results))
		if doctor.FixableCount(results) > 0 && !doctorFix {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  Run with %s to attempt automatic fixes where possible.\n", mutedStyle.Render("--fix"))
		}
	}
	fmt.Fprintln(w)
}

