package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	hostStyle      = lipgloss.NewStyle().Foreground(ColorSecondary)
	commandStyle   = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	connectedStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(ColorError)
)

// HostCommand prints the line shown before a command runs:
//
//	user@host sudo apt-get -y install htop
func HostCommand(w io.Writer, host, msg string) {
	fmt.Fprintf(w, "%s %s\n", hostStyle.Render(host), commandStyle.Render(msg))
}

// Connected prints the confirmation line for a new connection. An empty
// resolved address prints only user@name.
func Connected(w io.Writer, user, name, resolved string) {
	line := fmt.Sprintf("%s@%s", user, name)
	if resolved != "" {
		line = fmt.Sprintf("%s (%s)", line, resolved)
	}
	fmt.Fprintln(w, connectedStyle.Render(line))
}

// ReconnectAttempt starts a reconnect progress line. The result is appended
// by ReconnectFailed or HandshakeNotice.
func ReconnectAttempt(w io.Writer) {
	fmt.Fprint(w, noticeStyle.Render(SymbolProgress+" Attempt Reconnect ... "))
}

// ReconnectFailed completes a reconnect line after a failed dial.
func ReconnectFailed(w io.Writer) {
	fmt.Fprintln(w, noticeStyle.Render("failed, retrying"))
}

// HandshakeNotice reports that TCP is back and the SSH handshake is starting.
func HandshakeNotice(w io.Writer) {
	fmt.Fprintln(w, noticeStyle.Render("TCP connected, doing SSH handshake"))
}

// KeyRejected reports a key that did not authenticate while searching for one.
func KeyRejected(w io.Writer, keyPath, reason string) {
	fmt.Fprintf(w, "  %s %s %s\n",
		MutedStyle().Render(SymbolPending),
		keyPath,
		MutedStyle().Render(reason),
	)
}

// DryRunNotice prints a line for an action that was skipped in dry-run mode.
func DryRunNotice(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", WarningStyle().Render(SymbolSkipped), msg)
}
