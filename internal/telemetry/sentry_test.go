package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLAB-project/pysdr/internal/buildinfo"
	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/errors"
)

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := sentry.NewEvent()
	event.User = sentry.User{ID: "42", IPAddress: "10.0.0.1"}
	event.ServerName = "groundstation-7"
	event.Contexts = map[string]sentry.Context{
		"os":      {"name": "linux"},
		"device":  {"arch": "arm64"},
		"runtime": {"name": "go"},
		"bins":    {"value": 4096},
	}
	event.Extra = map[string]any{"component": "source", "path": "/home/op/capture.wav"}
	event.Tags = map[string]string{"hostname": "groundstation-7", "category": "sample-source"}

	got := applyPrivacyFilters(event)

	assert.True(t, got.User.IsEmpty())
	assert.Empty(t, got.ServerName)
	assert.Equal(t, []string{"bins"}, keys(got.Contexts))
	assert.Equal(t, map[string]any{"component": "source"}, got.Extra)
	assert.Equal(t, map[string]string{"category": "sample-source"}, got.Tags)
}

func keys(m map[string]sentry.Context) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestInitSentryDisabled(t *testing.T) {
	settings := &conf.Settings{}
	require.NoError(t, InitSentry(settings, buildinfo.NewContext("1.0.0", "", "abc")))
	assert.False(t, initialized.Load())
	Flush()
}

func TestInitSentryRequiresDSN(t *testing.T) {
	settings := &conf.Settings{}
	settings.Sentry.Enabled = true
	err := InitSentry(settings, buildinfo.NewContext("1.0.0", "", "abc"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
