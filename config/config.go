package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

const (
	DefaultAPIURL       = "https://api.golemio.cz/v2/municipallibraries"
	DefaultLatLng       = "50.124935,14.457204"
	DefaultUpdatedSince = "2019-05-18T07:38:37.000Z"
)

// Config holds all application configuration. It is built once at process
// start and passed by value into the components that need it.
type Config struct {
	APIURL    string `json:"api_url"`
	APIKey    string `json:"api_key"`
	OutputDir string `json:"output_dir"`
	Timezone  string `json:"timezone"`

	Districts     []string `json:"districts"`
	LatLngs       []string `json:"latlng"`
	Ranges        []int    `json:"ranges"`
	Limits        []int    `json:"limits"`
	Offsets       []int    `json:"offsets"`
	UpdatedSince  []string `json:"updated_since"`
	ScheduleTimes []string `json:"schedule_times"`

	FetchCap               int  `json:"fetch_cap"`
	HTTPTimeoutSec         int  `json:"http_timeout_sec"`
	RateLimitMs            int  `json:"rate_limit_ms"`
	MaxRateLimitRetries    int  `json:"max_rate_limit_retries"`
	RateLimitBackoffCapSec int  `json:"rate_limit_backoff_cap_sec"`
	ContinueOnError        bool `json:"continue_on_error"`
	Deduplicate            bool `json:"deduplicate"`

	LogFile  string `json:"log_file"`
	LogLevel string `json:"log_level"`
	AppName  string `json:"app_name"`

	FluentBit FluentBitConfig `json:"fluentbit"`
	Postgres  PostgresConfig  `json:"postgres"`
}

type FluentBitConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type PostgresConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

// ScheduleTime is one daily wall-clock trigger.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// Load reads the .env file, the environment and the optional JSON5 overlay
// named by CONFIG_FILE, and returns a populated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		APIURL:    getEnv("API_URL", DefaultAPIURL),
		APIKey:    getEnv("API_KEY", ""),
		OutputDir: getEnv("OUTPUT_DIR", "data"),
		Timezone:  getEnv("TIMEZONE", "Europe/Prague"),

		Districts:     getEnvList("DISTRICTS", ",", []string{"praha-1", "praha-2", "praha-3"}),
		LatLngs:       getEnvList("LATLNG", ";", []string{DefaultLatLng}),
		Ranges:        getEnvIntList("RANGES", []int{10000}),
		Limits:        getEnvIntList("LIMITS", []int{5}),
		Offsets:       getEnvIntList("OFFSETS", []int{0}),
		UpdatedSince:  getEnvList("UPDATED_SINCE", ",", []string{DefaultUpdatedSince}),
		ScheduleTimes: getEnvList("SCHEDULE_TIMES", ",", []string{"07:00"}),

		FetchCap:               getEnvInt("FETCH_CAP", 10000),
		HTTPTimeoutSec:         getEnvInt("HTTP_TIMEOUT_SEC", 15),
		RateLimitMs:            getEnvInt("RATE_LIMIT_MS", 0),
		MaxRateLimitRetries:    getEnvInt("MAX_RATE_LIMIT_RETRIES", 0),
		RateLimitBackoffCapSec: getEnvInt("RATE_LIMIT_BACKOFF_CAP_SEC", 0),
		ContinueOnError:        getEnvBool("CONTINUE_ON_ERROR", false),
		Deduplicate:            getEnvBool("DEDUPLICATE", true),

		LogFile:  getEnv("LOG_FILE", "golemio_extractor.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		AppName:  getEnv("APP_NAME", "golemio-extractor"),

		FluentBit: FluentBitConfig{
			Enabled: getEnvBool("FLUENTBIT_ENABLED", false),
			Host:    getEnv("FLUENTBIT_HOST", ""),
			Port:    getEnvInt("FLUENTBIT_PORT", 24224),
		},
		Postgres: PostgresConfig{
			Enabled: getEnvBool("POSTGRES_ENABLED", false),
			DSN:     getEnv("POSTGRES_DSN", ""),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the JSON5 file at path onto c. Non-zero values in the
// file win; booleans can only be switched on this way.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	var overlay Config
	if err := json5.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := mergo.Merge(c, overlay, mergo.WithOverride); err != nil {
		return fmt.Errorf("config: merge %q: %w", path, err)
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("config: API_URL is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if len(c.Limits) == 0 {
		return fmt.Errorf("config: at least one limit is required")
	}
	for _, l := range c.Limits {
		if l <= 0 {
			return fmt.Errorf("config: limit must be positive, got %d", l)
		}
	}
	if c.FetchCap < 0 {
		return fmt.Errorf("config: FETCH_CAP must not be negative")
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("config: POSTGRES_DSN is required when POSTGRES_ENABLED is set")
	}
	if c.FluentBit.Enabled && c.FluentBit.Host == "" {
		log.Println("[config] FLUENTBIT_ENABLED is true but FLUENTBIT_HOST is not set, disabling Fluent Bit")
		c.FluentBit.Enabled = false
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Schedule parses ScheduleTimes ("HH:MM").
func (c *Config) Schedule() ([]ScheduleTime, error) {
	out := make([]ScheduleTime, 0, len(c.ScheduleTimes))
	for _, raw := range c.ScheduleTimes {
		st, err := ParseScheduleTime(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// ParseScheduleTime parses "HH:MM" into a ScheduleTime.
func ParseScheduleTime(raw string) (ScheduleTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return ScheduleTime{}, fmt.Errorf("config: schedule time %q must be HH:MM", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ScheduleTime{}, fmt.Errorf("config: invalid hour in schedule time %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ScheduleTime{}, fmt.Errorf("config: invalid minute in schedule time %q", raw)
	}
	return ScheduleTime{Hour: h, Minute: m}, nil
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *Config) RateLimitInterval() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

func (c *Config) RateLimitBackoffCap() time.Duration {
	return time.Duration(c.RateLimitBackoffCapSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("[config] %s=%q is not an integer, using %d", key, val, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
		log.Printf("[config] %s=%q is not a boolean, using %t", key, val, fallback)
	}
	return fallback
}

func getEnvList(key, sep string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return SplitList(val, sep)
}

func getEnvIntList(key string, fallback []int) []int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []int
	for _, part := range SplitList(val, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Printf("[config] %s contains non-integer %q, using defaults", key, part)
			return fallback
		}
		out = append(out, n)
	}
	return out
}

// SplitList splits s on sep, trimming blanks and dropping empty items.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
