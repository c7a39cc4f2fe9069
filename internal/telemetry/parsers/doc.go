// Package parsers turns raw command output from a target into telemetry
// values. Every function here is pure: no I/O, no clocks, and malformed
// input yields a zero value or ok=false rather than an error.
package parsers
