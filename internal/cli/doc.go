// Package cli implements the sbctool command-line interface.
//
// Each Cobra command resolves its target, connects with a progress line on
// stderr and then hands the open session to the dashboard:
//
//	sbctool ssh <user@host|alias>   - Monitor a Linux board over SSH
//	sbctool adb [SERIAL]            - Monitor an Android board over ADB
//	sbctool doctor                  - Check the local SSH and ADB setup
//	sbctool config                  - Print the effective configuration
//	sbctool completion <shell>      - Generate shell completion
//	sbctool version                 - Print version information
//
// # Connection Flow
//
// Resolution and authentication failures are reported before the terminal
// switches to the alternate screen, so the user sees them in plain text.
// Interactive prompts (SSH password, ADB device choice) pause the spinner
// and only run when stdin is a terminal.
//
// # Dashboard Lifetime
//
// runDashboard owns the session. It starts the collector supervisor, runs
// the Bubble Tea program and on exit cancels the collectors and waits for
// them, bounded by the configured shutdown timeout. While the dashboard is
// up, the standard logger writes to SBCTOOL_LOG_FILE or is discarded.
package cli
