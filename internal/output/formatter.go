// Package output interleaves the console output of several hosts line by
// line, each line labelled with the host it came from.
package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/rig/internal/ui"
)

// Formatter processes command output lines for display.
type Formatter interface {
	// ProcessLine transforms a single line of output.
	// ANSI codes should pass through unchanged.
	ProcessLine(line string) string
}

// GenericFormatter highlights lines that look like errors.
type GenericFormatter struct {
	errorStyle lipgloss.Style
}

// NewGenericFormatter creates a formatter with default error styling.
func NewGenericFormatter() *GenericFormatter {
	return &GenericFormatter{
		errorStyle: lipgloss.NewStyle().Foreground(ui.ColorError),
	}
}

// ProcessLine highlights error lines in red.
func (f *GenericFormatter) ProcessLine(line string) string {
	if isErrorLine(line) {
		return f.errorStyle.Render(line)
	}
	return line
}

// isErrorLine checks if a line appears to be an error message from the
// tools rig usually drives: apt, yum, mkfs, mount, sudo.
func isErrorLine(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))

	errorPrefixes := []string{
		"error:",
		"e: ", // apt
		"fatal:",
		"failed:",
		"sudo: ",
		"mount: ",
		"mkfs.ext4: ",
	}
	for _, prefix := range errorPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}

	return strings.Contains(line, "ERROR") ||
		strings.Contains(trimmed, "permission denied") ||
		strings.Contains(trimmed, "command not found")
}

// PassthroughFormatter passes all lines through unchanged.
type PassthroughFormatter struct{}

// ProcessLine returns the line unchanged.
func (PassthroughFormatter) ProcessLine(line string) string {
	return line
}
