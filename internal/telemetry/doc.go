// Package telemetry holds the data the dashboard shows: a SystemInfo
// snapshot and a bounded buffer of recent log entries.
//
// State has a single owner. Collectors never touch it directly; they send
// Update values over their own channels and the owner applies them in
// arrival order. This keeps SystemInfo replacement atomic and log appends
// ordered without any locking.
package telemetry
