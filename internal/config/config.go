// Package config loads process configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/Sternrassler/lunch-meetups/pkg/client"
	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/logging"
)

// Defaults.
const (
	DefaultPort             = "8080"
	DefaultUserAgent        = "lunch-meetups/0.1.0"
	DefaultMaxConcurrency   = 4
	DefaultPartitionTimeout = 15 * time.Second
	DefaultRequestTimeout   = 30 * time.Second
	DefaultMaxRetries       = 2
	DefaultTimezone         = "Asia/Tokyo"
	DefaultLanguage         = "ja"
)

// Config is the process configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// APIURL is the events directory endpoint.
	APIURL string
	// APIKey is the optional directory credential. Empty means anonymous.
	APIKey    string
	UserAgent string

	// PartitionMode is "ymd" (exact-date batches) or "ym" (year-month buckets).
	PartitionMode    string
	DatesPerBatch    int
	MaxSpanDays      int
	MaxConcurrency   int
	PartitionTimeout time.Duration
	RequestTimeout   time.Duration
	MaxRetries       int

	// Timezone is the IANA zone fallback events are authored in.
	Timezone string
	// Language selects caller-facing messages ("ja" or "en").
	Language string

	// RedisURL enables the upstream health tracker when set.
	RedisURL string

	LogLevel  string
	LogPretty bool
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	c := &Config{MaxRetries: DefaultMaxRetries}
	c.Normalize()
	return c
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.APIURL == "" {
		c.APIURL = client.DefaultBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.PartitionMode == "" {
		c.PartitionMode = string(daterange.ModeExactDate)
	}
	if c.DatesPerBatch <= 0 {
		c.DatesPerBatch = daterange.DefaultDatesPerBatch
	}
	if c.MaxSpanDays <= 0 {
		c.MaxSpanDays = daterange.DefaultMaxSpanDays
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.PartitionTimeout <= 0 {
		c.PartitionTimeout = DefaultPartitionTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.LogLevel == "" {
		c.LogLevel = string(logging.LevelInfo)
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := daterange.ParseMode(c.PartitionMode); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.DatesPerBatch > daterange.MaxDatesPerBatch {
		return fmt.Errorf("invalid DATES_PER_BATCH %d: the directory accepts at most %d dates per query", c.DatesPerBatch, daterange.MaxDatesPerBatch)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Mode returns the configured partition mode.
func (c *Config) Mode() daterange.Mode {
	mode, err := daterange.ParseMode(c.PartitionMode)
	if err != nil {
		return daterange.ModeExactDate
	}
	return mode
}

// Load reads the given .env files (default ".env"; missing files are
// ignored), then builds the configuration from the process environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a normalized, validated configuration from lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	env := envReader{lookup: lookup}

	c := &Config{
		Port:             env.str("PORT"),
		APIURL:           env.str("CONNPASS_API_URL"),
		APIKey:           env.str("CONNPASS_API_KEY"),
		UserAgent:        env.str("USER_AGENT"),
		PartitionMode:    env.str("PARTITION_MODE"),
		DatesPerBatch:    env.integer("DATES_PER_BATCH"),
		MaxSpanDays:      env.integer("MAX_SPAN_DAYS"),
		MaxConcurrency:   env.integer("MAX_CONCURRENCY"),
		PartitionTimeout: env.duration("PARTITION_TIMEOUT"),
		RequestTimeout:   env.duration("REQUEST_TIMEOUT"),
		MaxRetries:       DefaultMaxRetries,
		Timezone:         env.str("TIMEZONE"),
		Language:         env.str("LANG_MESSAGES"),
		RedisURL:         env.str("REDIS_URL"),
		LogLevel:         env.str("LOG_LEVEL"),
		LogPretty:        env.boolean("LOG_PRETTY"),
	}
	if _, set := lookup("MAX_RETRIES"); set {
		c.MaxRetries = env.integer("MAX_RETRIES")
	}
	if env.err != nil {
		return nil, env.err
	}

	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// envReader collects the first parse error so FromEnv can report it once.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) str(key string) string {
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

func (e *envReader) integer(key string) int {
	v := e.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return n
}

func (e *envReader) duration(key string) time.Duration {
	v := e.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return d
}

func (e *envReader) boolean(key string) bool {
	v := e.str(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return b
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}
