// Package ui provides the terminal components sbctool shows before the
// dashboard takes over the screen.
//
//	Spinner    - Animated "Connecting to ..." line with a final status
//	HostPicker - Interactive choice of an alias from ~/.ssh/config
//
// # Spinner Usage
//
//	s := ui.NewSpinner(os.Stderr, "Connecting to pi@rock:22 via SSH")
//	s.Start()
//	// ... dial ...
//	s.Success() // or s.Fail()
//
// The spinner clears its own line and appends the elapsed time.
package ui
