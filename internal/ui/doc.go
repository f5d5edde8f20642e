// Package ui renders rig's line-oriented terminal output.
//
// Every remote command is announced before it runs, so someone watching a
// long setup script sees what is happening on which host:
//
//	alice@node1 sudo apt-get -y install htop
//
// Connection and reconnect progress uses the same palette:
//
//	alice@node1 (10.0.0.5:22)
//	◐ Attempt Reconnect ... failed, retrying
//	◐ Attempt Reconnect ... TCP connected, doing SSH handshake
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Connected, host succeeded
//	ColorError     (red)    - Failures and reconnect notices
//	ColorWarning   (yellow) - Command text, dry-run notices
//	ColorSecondary (blue)   - Host identity
//	ColorMuted     (gray)   - Timing, secondary detail
//
// ConfigureColor selects the profile from the output writer and NO_COLOR;
// DisableColors forces monochrome output.
//
// # Tables
//
// RenderSimpleTable prints static tables such as the block device listing
// from `rig devices`.
package ui
