package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Reading package lists... Done", false},
		{"Setting up htop (3.0.5-7build2) ...", false},
		{"E: Unable to locate package htpo", true},
		{"error: cannot open Packages database", true},
		{"mount: /data: special device /dev/sdx1 does not exist.", true},
		{"mkfs.ext4: No such file or directory while trying to determine filesystem size", true},
		{"sudo: a terminal is required to read the password", true},
		{"bash: cpupower: command not found", true},
		{"rsync: opendir \"/data/lost+found\" failed: Permission denied (13)", true},
		{"[ERROR] something broke", true},
		{"errors are fine mid-sentence", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, isErrorLine(tt.line))
		})
	}
}

func TestGenericFormatter_KeepsText(t *testing.T) {
	f := NewGenericFormatter()

	assert.Equal(t, "Done", f.ProcessLine("Done"))
	assert.Contains(t, f.ProcessLine("E: broken"), "E: broken")
}

func TestPassthroughFormatter(t *testing.T) {
	assert.Equal(t, "E: broken", PassthroughFormatter{}.ProcessLine("E: broken"))
}
