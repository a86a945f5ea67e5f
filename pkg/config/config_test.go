package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 3, cfg.Referral.LoadMinActive)
	assert.Equal(t, 4, cfg.Referral.ChronicMinLogs)
	assert.InDelta(t, 2.0, cfg.Referral.ChronicMaxAvg, 0.0001)
	assert.InDelta(t, 3.0, cfg.Referral.CombinedAvgBelow, 0.0001)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Exports.Enabled)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REFERRAL_LOAD_MIN_ACTIVE", "4")
	t.Setenv("REPORT_CACHE_TTL", "not-a-duration")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, broken ,x-team=mtss")
	t.Setenv("OTEL_SAMPLER_RATIO", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Referral.LoadMinActive)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, map[string]string{"x-api-key": "abc", "x-team": "mtss"}, cfg.Tracing.Headers)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CALENDAR_TIMEZONE", "America/New_Yrok")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "America/New_Yrok")
}

func TestLoadAcceptsKnownTimezone(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CALENDAR_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Calendar.Location().String())
}

func TestCalendarLocation(t *testing.T) {
	assert.Equal(t, time.Local, CalendarConfig{}.Location())
	assert.Equal(t, time.Local, CalendarConfig{Timezone: "local"}.Location())
	assert.NoError(t, CalendarConfig{Timezone: "Local"}.Validate())
	assert.Error(t, CalendarConfig{Timezone: "Nowhere/Invalid"}.Validate())
	assert.Equal(t, "UTC", CalendarConfig{Timezone: "UTC"}.Location().String())
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
