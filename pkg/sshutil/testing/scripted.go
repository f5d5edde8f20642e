package testing

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/rileyhilliard/rig/pkg/sshutil"
)

// Response defines a canned response for commands matching a pattern.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Error    error
}

type rule struct {
	match func(text string) bool
	resp  Response
}

// ScriptedShell is an sshutil.Executor that records every command and
// answers from canned responses. Rules are checked in the order they were
// added; the first match wins and unmatched commands succeed with no output.
//
// Dry-run commands are recorded but produce no output, and a non-zero
// ExitCode fails unless the command allows errors, as with a real Shell.
type ScriptedShell struct {
	mu           sync.Mutex
	rules        []rule
	commands     []sshutil.Command
	reconnects   int
	reconnectErr error
	closed       bool
}

// NewScriptedShell creates a shell with no rules.
func NewScriptedShell() *ScriptedShell {
	return &ScriptedShell{}
}

// On answers commands whose text contains substr.
func (s *ScriptedShell) On(substr string, resp Response) *ScriptedShell {
	return s.addRule(func(text string) bool { return strings.Contains(text, substr) }, resp)
}

// OnPattern answers commands whose text matches the regular expression.
func (s *ScriptedShell) OnPattern(pattern string, resp Response) *ScriptedShell {
	re := regexp.MustCompile(pattern)
	return s.addRule(re.MatchString, resp)
}

func (s *ScriptedShell) addRule(match func(string) bool, resp Response) *ScriptedShell {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{match: match, resp: resp})
	return s
}

// FailReconnect makes every later Reconnect return err.
func (s *ScriptedShell) FailReconnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectErr = err
}

// Run records cmd and returns the first matching response.
func (s *ScriptedShell) Run(cmd sshutil.Command) (sshutil.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return sshutil.Output{}, errors.New("connection closed")
	}
	s.commands = append(s.commands, cmd)

	if cmd.IsDryRun() {
		return sshutil.Output{}, nil
	}

	for _, r := range s.rules {
		if !r.match(cmd.Text()) {
			continue
		}
		if r.resp.Error != nil {
			return sshutil.Output{}, r.resp.Error
		}
		if r.resp.ExitCode != 0 && !cmd.AllowsError() {
			return sshutil.Output{}, &sshutil.NonZeroExitError{
				Cmd:    cmd.Text(),
				Exit:   r.resp.ExitCode,
				Stdout: r.resp.Stdout,
				Stderr: r.resp.Stderr,
			}
		}
		return sshutil.Output{Stdout: r.resp.Stdout, Stderr: r.resp.Stderr}, nil
	}
	return sshutil.Output{}, nil
}

// Spawn runs cmd in the background through Run.
func (s *ScriptedShell) Spawn(cmd sshutil.Command) (*sshutil.SpawnHandle, error) {
	return sshutil.Go(func() (sshutil.Output, error) { return s.Run(cmd) }), nil
}

// Reconnect counts the call and returns the error set by FailReconnect.
func (s *ScriptedShell) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.reconnects++
	return s.reconnectErr
}

// Close makes later commands fail.
func (s *ScriptedShell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Commands returns the commands run so far, in order.
func (s *ScriptedShell) Commands() []sshutil.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sshutil.Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// Reconnects returns how many times Reconnect was called.
func (s *ScriptedShell) Reconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

// Reset forgets recorded commands and reconnects, keeping the rules.
func (s *ScriptedShell) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
	s.reconnects = 0
}

// NewBlockDeviceShell returns a ScriptedShell answering lsblk and blkid the
// way a host with these block devices would:
//
//	foobar (partitions foo, bar, baz; foo at /mnt/foo, bar at /mnt/bar)
//	sda 477G, sdb 400G, sdc 500G (sdb and sdc unpartitioned)
func NewBlockDeviceShell() *ScriptedShell {
	return NewScriptedShell().
		On("blkid", Response{Stdout: "UUID=1fb958bf-de7e-428a-a0b7-a598f22e96fa\n"}).
		On("KNAME /dev/foobar", Response{Stdout: "KNAME\nfoobar\nfoo\nbar\nbaz\n"}).
		On("KNAME /dev/sd", Response{Stdout: "KNAME\nsdb"}).
		On("KNAME /dev/", Response{Stdout: "KNAME\nfoo"}).
		On("KNAME,MOUNTPOINT", Response{Stdout: "KNAME MOUNTPOINT\nfoobar\nfoo  /mnt/foo\nbar  /mnt/bar\nbaz\nsdb\nsdc"}).
		On("KNAME", Response{Stdout: "KNAME\nfoobar\nfoo\nbar\nbaz\nsdb\nsdc"}).
		On("SIZE /dev/sda", Response{Stdout: "SIZE\n477G"}).
		On("SIZE /dev/sdb", Response{Stdout: "SIZE\n400G"}).
		On("SIZE /dev/sdc", Response{Stdout: "SIZE\n500G"})
}

var _ sshutil.Executor = (*ScriptedShell)(nil)
