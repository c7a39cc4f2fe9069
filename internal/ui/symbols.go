package ui

// Unicode symbols for status indicators.
const (
	SymbolComplete = "●" // Finished successfully
	SymbolFail     = "✗" // Failed
	SymbolPending  = "○" // Not started
)
