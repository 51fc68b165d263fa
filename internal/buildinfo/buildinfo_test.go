package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctx     *Context
		version string
		date    string
		commit  string
	}{
		{"nil context", nil, UnknownValue, UnknownValue, UnknownValue},
		{"full", NewContext("1.2.0", "2026-07-01", "abc123"), "1.2.0", "2026-07-01", "abc123"},
		{"empty version", NewContext("", "2026-07-01", "abc123"), UnknownValue, "2026-07-01", "abc123"},
		{"pre-release", NewContext("1.2.0-rc.1", "", "abc123"), "1.2.0-rc.1", UnknownValue, "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.date, tt.ctx.BuildDate())
			assert.Equal(t, tt.commit, tt.ctx.Commit())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()

	s := NewContext("1.2.0", "2026-07-01", "abc123").String()
	assert.Contains(t, s, "pysdr 1.2.0")
	assert.Contains(t, s, "abc123")
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestNilContextString(t *testing.T) {
	t.Parallel()

	var c *Context
	assert.Contains(t, c.String(), "pysdr unknown")
}
