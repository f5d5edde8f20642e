package cli

import (
	"bytes"
	stderrors "errors"
	"runtime"
	"testing"

	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersCommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"run", "install", "reboot", "devices", "format-ext4", "copy", "init", "host", "version", "completion"} {
		assert.Contains(t, names, want)
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{name: "nil", err: nil, wantCode: 0},
		{name: "remote exit code is silent", err: errors.NewExitError(3), wantCode: 3},
		{
			name:     "structured error is printed",
			err:      errors.New(errors.ErrConfig, "No host to run on", "Pass --host."),
			wantCode: 1,
			wantOut:  "No host to run on",
		},
		{name: "plain error", err: stderrors.New(`unknown flag: --nope`), wantCode: 1, wantOut: "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.wantCode, handleError(tt.err, &buf))
			if tt.wantOut == "" {
				assert.Empty(t, buf.String())
			} else {
				assert.Contains(t, buf.String(), tt.wantOut)
			}
		})
	}
}

func TestVersionOutput(t *testing.T) {
	originalVersion, originalCommit, originalDate := version, commit, date
	defer SetVersionInfo(originalVersion, originalCommit, originalDate)

	SetVersionInfo("1.2.3", "abc1234", "2025-01-08T12:00:00Z")

	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "rig v1.2.3")
	assert.Contains(t, out, "commit: abc1234")
	assert.Contains(t, out, "built: 2025-01-08T12:00:00Z")
	assert.Contains(t, out, "go: "+runtime.Version())
	assert.Equal(t, "1.2.3", GetVersion())
}

func TestVersionShort(t *testing.T) {
	originalVersion := version
	defer func() { version = originalVersion }()
	version = "1.2.3"

	out, err := execute(t, "version", "--short")

	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"dev", "dev"},
		{"", ""},
		{"1.0.0", "v1.0.0"},
		{"v1.0.0", "v1.0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatVersion(tt.in), tt.in)
	}
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "# bash completion for rig"},
		{"zsh", "#compdef rig"},
		{"fish", "complete -c rig"},
		{"powershell", "Register-ArgumentCompleter"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			out, err := execute(t, "completion", tt.shell)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestCompletion_RejectsUnknownShell(t *testing.T) {
	_, err := execute(t, "completion", "tcsh")
	assert.Error(t, err)
}
