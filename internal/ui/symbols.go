package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Command or host succeeded
	SymbolFail     = "✗" // Command or host failed
	SymbolPending  = "○" // Not yet started
	SymbolProgress = "◐" // Reconnecting / in progress
	SymbolComplete = "●" // Connected
	SymbolSkipped  = "⊘" // Dry run, nothing executed
)
