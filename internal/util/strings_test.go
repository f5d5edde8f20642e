package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinOrDefault(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		def   string
		want  string
	}{
		{"nil slice", nil, "-", "-"},
		{"empty slice with empty default", []string{}, "", ""},
		{"single item", []string{"lab"}, "-", "lab"},
		{"several items", []string{"lab", "gpu"}, "-", "lab, gpu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinOrDefault(tt.items, tt.def))
		})
	}
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "hosts", Pluralize(0, "host", "hosts"))
	assert.Equal(t, "host", Pluralize(1, "host", "hosts"))
	assert.Equal(t, "hosts", Pluralize(2, "host", "hosts"))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "1 host", Count(1, "host", "hosts"))
	assert.Equal(t, "3 hosts", Count(3, "host", "hosts"))
	assert.Equal(t, "0 devices", Count(0, "device", "devices"))
}
