package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
)

// Global flags
var (
	cfgFile   string
	noColor   bool
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "sbctool",
	Short: "Live diagnostics dashboard for single-board computers",
	Long: `sbctool connects to a single-board computer over SSH or ADB and shows
a live dashboard of its hardware identity and recent system logs.

Examples:
  sbctool ssh pi@192.168.1.4
  sbctool ssh khadas
  sbctool adb
  sbctool adb -s 192.168.1.15:5555`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyGlobalFlags()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/sbctool/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "print debug logs (same as "+logger.DebugEnv+"=1)")
}

// Execute runs the root command and exits non-zero on failure. SIGINT and
// SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// applyGlobalFlags turns the persistent flags into process-wide settings.
func applyGlobalFlags() {
	if noColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if debugMode {
		os.Setenv(logger.DebugEnv, "1")
	}
}

// loadConfig reads the config selected by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// printError renders err the way structured errors render themselves.
func printError(w io.Writer, err error) {
	var sErr *errors.Error
	if stderrors.As(err, &sErr) {
		fmt.Fprint(w, sErr.Error())
		return
	}
	fmt.Fprintf(w, "✗ %s\n", err)
}

// isHelpArg reports whether a positional argument asks for usage.
func isHelpArg(arg string) bool {
	switch arg {
	case "help", "--help", "-h":
		return true
	}
	return false
}
