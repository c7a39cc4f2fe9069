// Package monitor implements the live TUI dashboard for one board.
//
// The dashboard shows a system information pane next to a scrolling log
// pane, both fed by the background collectors.
//
// # Architecture
//
// The package uses the Bubble Tea framework, which follows The Elm Architecture
// (Model-Update-View pattern):
//
//   - Model: Holds the telemetry state, the log viewport and layout size
//   - Update: Processes messages (keystrokes, ticks, collector updates)
//   - View: Renders the current state to a string for display
//
// # Message Flow
//
// Collectors never touch the model. Each one writes telemetry.Update values
// to its own channel:
//
//  1. Init starts one waiting command per channel
//  2. The command returns an updateMsg with the next value
//  3. Update applies it to the state and re-arms the waiter
//  4. A 100ms tickMsg keeps the "last update" clock moving
//
// When a channel closes its waiter stops and is not re-armed.
//
// # Keyboard Shortcuts
//
//	q, Esc, Ctrl+C  - Quit (cancels the collectors)
//	r               - Refresh now (throttled to once per second)
//	j/k, ↑/↓        - Scroll the log pane
//	PgUp/PgDn       - Page the log pane
//	Home/End        - Jump to newest / oldest entry
//	?               - Toggle help overlay
package monitor
