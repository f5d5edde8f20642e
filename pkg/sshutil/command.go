package sshutil

import "fmt"

// Command describes one remote invocation and how to run it.
//
// A Command is immutable: every builder method returns a copy with exactly
// one field changed, so builder calls commute and two commands built from
// the same calls compare equal with ==.
//
//	cmd := sshutil.NewCommand("make -j8").Cwd("/src/linux").AllowError()
type Command struct {
	text       string
	cwd        string
	useBash    bool
	allowError bool
	dryRun     bool
	noPty      bool
}

// NewCommand returns a command running text with the defaults: no working
// directory, no bash wrapping, non-zero exits are errors, not a dry run,
// and a pty is requested.
func NewCommand(text string) Command {
	return Command{text: text}
}

// Cmd formats text with fmt.Sprintf and returns it as a new Command.
func Cmd(format string, args ...any) Command {
	return NewCommand(fmt.Sprintf(format, args...))
}

// MakeCommand sets every field at once. An empty cwd means none. Mostly
// useful in tests that spell out an expected command sequence.
func MakeCommand(text, cwd string, useBash, allowError, dryRun, noPty bool) Command {
	return Command{
		text:       text,
		cwd:        cwd,
		useBash:    useBash,
		allowError: allowError,
		dryRun:     dryRun,
		noPty:      noPty,
	}
}

// Cwd runs the command from dir.
func (c Command) Cwd(dir string) Command {
	c.cwd = dir
	return c
}

// UseBash runs the command through `bash -c`.
func (c Command) UseBash() Command {
	c.useBash = true
	return c
}

// AllowError tolerates a non-zero exit status.
func (c Command) AllowError() Command {
	c.allowError = true
	return c
}

// DryRun prints the command instead of executing it when on is true.
func (c Command) DryRun(on bool) Command {
	c.dryRun = on
	return c
}

// NoPty skips the pseudo-terminal request.
func (c Command) NoPty() Command {
	c.noPty = true
	return c
}

// Text returns the command line as given, before any rewriting.
func (c Command) Text() string { return c.text }

// Dir returns the working directory and whether one is set.
func (c Command) Dir() (string, bool) { return c.cwd, c.cwd != "" }

// UsesBash reports whether the command is wrapped in `bash -c`.
func (c Command) UsesBash() bool { return c.useBash }

// AllowsError reports whether a non-zero exit is tolerated.
func (c Command) AllowsError() bool { return c.allowError }

// IsDryRun reports whether the command is only printed.
func (c Command) IsDryRun() bool { return c.dryRun }

// WantsPty reports whether a pseudo-terminal is requested before exec.
func (c Command) WantsPty() bool { return !c.noPty }

// String formats every field for debug output and test failure messages.
func (c Command) String() string {
	return fmt.Sprintf("Command{text=%q cwd=%q bash=%t allow_error=%t dry_run=%t no_pty=%t}",
		c.text, c.cwd, c.useBash, c.allowError, c.dryRun, c.noPty)
}

// resolved applies the working directory and bash wrapping, returning the
// exact string sent to the remote side.
func (c Command) resolved() string {
	text := c.text
	if c.useBash {
		text = "bash -c " + EscapeForBash(text)
	}
	if c.cwd != "" {
		text = fmt.Sprintf("cd %s ; %s", c.cwd, text)
	}
	return text
}
