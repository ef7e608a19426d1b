package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers understood by storage.Open.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config holds client, cache and preference-store configuration.
type Config struct {
	BaseURL           string
	BooksPath         string
	AnnouncementsPath string
	Timeout           time.Duration
	UserAgent         string

	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	StaleTime       time.Duration
	GCTime          time.Duration
	CacheSize       int

	PageSize      int
	DebounceDelay time.Duration
	HistoryLimit  int

	StorageDriver string
	StoragePath   string

	ListenAddr   string
	OutputFormat string // table, csv, json or yaml
	Verbose      bool
}

// DefaultConfig mirrors the defaults of the hosted library front end.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://api-backend-urlr.onrender.com",
		BooksPath:         "/api/books",
		AnnouncementsPath: "/api/announcements",
		Timeout:           30 * time.Second,
		UserAgent:         "librosync/0.1",
		MaxRetries:        3,
		RetryBackoff:      time.Second,
		RetryBackoffMax:   10 * time.Second,
		StaleTime:         5 * time.Minute,
		GCTime:            15 * time.Minute,
		CacheSize:         16,
		PageSize:          20,
		DebounceDelay:     300 * time.Millisecond,
		HistoryLimit:      50,
		StorageDriver:     StorageSQLite,
		StoragePath:       "librosync.db",
		ListenAddr:        ":8080",
		OutputFormat:      "table",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if !strings.HasPrefix(c.BooksPath, "/") || !strings.HasPrefix(c.AnnouncementsPath, "/") {
		return fmt.Errorf("endpoint paths must start with /")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.StaleTime < 0 {
		return fmt.Errorf("stale time cannot be negative")
	}
	if c.GCTime <= 0 {
		return fmt.Errorf("gc time must be positive")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.DebounceDelay < 0 {
		return fmt.Errorf("debounce delay cannot be negative")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	switch c.StorageDriver {
	case StorageMemory:
	case StorageSQLite:
		if c.StoragePath == "" {
			return fmt.Errorf("storage path cannot be empty for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage driver must be memory or sqlite")
	}
	switch c.OutputFormat {
	case "table", "csv", "json", "jsonl", "yaml":
	default:
		return fmt.Errorf("output format must be table, csv, json, jsonl or yaml")
	}

	return nil
}

// Endpoint joins the base URL with an API path.
func (c *Config) Endpoint(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + path
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv applies LIBROSYNC_* overrides on top of cfg.
func FromEnv(cfg *Config) error {
	if v, ok := EnvString("LIBROSYNC_API_BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok, err := EnvDuration("LIBROSYNC_TIMEOUT"); err != nil {
		return fmt.Errorf("invalid LIBROSYNC_TIMEOUT: %w", err)
	} else if ok {
		cfg.Timeout = v
	}
	if v, ok, err := EnvInt("LIBROSYNC_MAX_RETRIES"); err != nil {
		return fmt.Errorf("invalid LIBROSYNC_MAX_RETRIES: %w", err)
	} else if ok {
		cfg.MaxRetries = v
	}
	if v, ok, err := EnvDuration("LIBROSYNC_STALE_TIME"); err != nil {
		return fmt.Errorf("invalid LIBROSYNC_STALE_TIME: %w", err)
	} else if ok {
		cfg.StaleTime = v
	}
	if v, ok, err := EnvInt("LIBROSYNC_PAGE_SIZE"); err != nil {
		return fmt.Errorf("invalid LIBROSYNC_PAGE_SIZE: %w", err)
	} else if ok {
		cfg.PageSize = v
	}
	if v, ok := EnvString("LIBROSYNC_STORAGE_DRIVER"); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v, ok := EnvString("LIBROSYNC_STORAGE_PATH"); ok {
		cfg.StoragePath = v
	}
	if v, ok := EnvString("LIBROSYNC_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	return nil
}

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", false
	}
	return v, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// EnvDuration parses key as a Go duration ("30s") or as milliseconds ("30000").
func EnvDuration(key string) (time.Duration, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, true, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, err
	}
	return d, true, nil
}
