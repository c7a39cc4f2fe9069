// Package collector gathers telemetry from a remote board in the
// background. Each collector owns one goroutine and publishes
// telemetry.Update values on its own channel; it never touches the
// dashboard state directly.
package collector
