package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"API_URL", "TIMEZONE", "DISTRICTS", "LATLNG", "LIMITS", "FETCH_CAP", "DEDUPLICATE", "CONTINUE_ON_ERROR", "SCHEDULE_TIMES", "POSTGRES_ENABLED", "CONFIG_FILE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultAPIURL, cfg.APIURL)
	require.Equal(t, []string{"praha-1", "praha-2", "praha-3"}, cfg.Districts)
	require.Equal(t, []string{DefaultLatLng}, cfg.LatLngs)
	require.Equal(t, []int{5}, cfg.Limits)
	require.Equal(t, 10000, cfg.FetchCap)
	require.True(t, cfg.Deduplicate)
	require.False(t, cfg.ContinueOnError)
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DISTRICTS", "praha-4, praha-5")
	t.Setenv("LATLNG", "50.1,14.4;50.2,14.5")
	t.Setenv("LIMITS", "7,3")
	t.Setenv("SCHEDULE_TIMES", "07:00,19:30")
	t.Setenv("CONTINUE_ON_ERROR", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"praha-4", "praha-5"}, cfg.Districts)
	require.Equal(t, []string{"50.1,14.4", "50.2,14.5"}, cfg.LatLngs)
	require.Equal(t, []int{7, 3}, cfg.Limits)
	require.True(t, cfg.ContinueOnError)

	sched, err := cfg.Schedule()
	require.NoError(t, err)
	require.Equal(t, []ScheduleTime{{7, 0}, {19, 30}}, sched)
}

func TestMergeFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extractor.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// local overrides
		api_key: "secret",
		districts: ["praha-9"],
		limits: [12],
	}`), 0644))

	cfg := &Config{APIURL: DefaultAPIURL, APIKey: "old", Districts: []string{"praha-1"}, Limits: []int{5}, Timezone: "UTC"}
	require.NoError(t, cfg.MergeFile(path))
	require.Equal(t, "secret", cfg.APIKey)
	require.Equal(t, []string{"praha-9"}, cfg.Districts)
	require.Equal(t, []int{12}, cfg.Limits)
	require.Equal(t, DefaultAPIURL, cfg.APIURL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{APIURL: DefaultAPIURL, Timezone: "Europe/Prague", Limits: []int{5}, ScheduleTimes: []string{"07:00"}}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.Timezone = "Mars/Olympus"
	require.Error(t, c.Validate())

	c = base()
	c.Limits = nil
	require.Error(t, c.Validate())

	c = base()
	c.Limits = []int{0}
	require.Error(t, c.Validate())

	c = base()
	c.ScheduleTimes = []string{"25:00"}
	require.Error(t, c.Validate())

	c = base()
	c.Postgres.Enabled = true
	require.Error(t, c.Validate())
}

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		raw     string
		want    ScheduleTime
		wantErr bool
	}{
		{"07:00", ScheduleTime{7, 0}, false},
		{" 23:59 ", ScheduleTime{23, 59}, false},
		{"7", ScheduleTime{}, true},
		{"07:60", ScheduleTime{}, true},
		{"ab:00", ScheduleTime{}, true},
	}
	for _, tt := range tests {
		got, err := ParseScheduleTime(tt.raw)
		if tt.wantErr {
			require.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.want, got)
	}
}

func TestAxesSplitsDistricts(t *testing.T) {
	cfg := &Config{
		Districts: []string{"praha-1", "praha-2"},
		LatLngs:   []string{DefaultLatLng},
		Ranges:    []int{10000},
		Limits:    []int{5},
	}
	axes := cfg.Axes()
	require.Equal(t, [][]string{{"praha-1"}, {"praha-2"}}, axes.Districts)
	require.Equal(t, []int{0}, axes.Offsets)
	require.Equal(t, []string{""}, axes.UpdatedSince)

	empty := (&Config{Limits: []int{5}}).Axes()
	require.Len(t, empty.Districts, 1)
	require.Nil(t, empty.Districts[0])
}

func TestPromptAxes(t *testing.T) {
	in := strings.NewReader("praha-1, praha-7\n\n5000\n3\n\n2020-01-01T00:00:00.000Z\n")
	var out strings.Builder

	axes, err := PromptAxes(in, &out)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"praha-1", "praha-7"}}, axes.Districts)
	require.Equal(t, []string{DefaultLatLng}, axes.LatLngs)
	require.Equal(t, []int{5000}, axes.Ranges)
	require.Equal(t, []int{3}, axes.Limits)
	require.Equal(t, []int{0}, axes.Offsets)
	require.Equal(t, []string{"2020-01-01T00:00:00.000Z"}, axes.UpdatedSince)
	require.Contains(t, out.String(), "Enter districts")
}

func TestPromptAxesDefaults(t *testing.T) {
	axes, err := PromptAxes(strings.NewReader(""), &strings.Builder{})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"praha-1"}}, axes.Districts)
	require.Equal(t, []int{10}, axes.Limits)
}

func TestPromptAxesRejectsBadLimit(t *testing.T) {
	_, err := PromptAxes(strings.NewReader("\n\n\nmany\n"), &strings.Builder{})
	require.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
