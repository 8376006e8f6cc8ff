package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const (
	DirName         = "jobscan"
	ConfigFileName  = "config.json"
	ProxiesFileName = "proxies.txt"
	DotEnvFileName  = ".env"
	SeenFileName    = "jobs_seen.json"
)

// RateLimit is the per-source admission budget.
type RateLimit struct {
	PerMinute int `json:"per_minute"`
	PerDay    int `json:"per_day"`
}

// SMTP holds mail delivery settings for scan notifications.
type SMTP struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// Eligibility holds the keyword lists used by the scan classifier. Empty
// lists fall back to the built-in defaults.
type Eligibility struct {
	Eligible   []string `json:"eligible"`
	Ineligible []string `json:"ineligible"`
	Preferred  []string `json:"preferred"`
	Excluded   []string `json:"excluded"`
	TermLabel  string   `json:"term_label"`
	TermYear   string   `json:"term_year"`
}

// Config contains credentials and tunables for sources, aggregation and scans.
type Config struct {
	JSearchAPIKey string `json:"jsearch_api_key"`
	JoobleAPIKey  string `json:"jooble_api_key"`
	AdzunaAppID   string `json:"adzuna_app_id"`
	AdzunaAppKey  string `json:"adzuna_app_key"`

	DefaultCountry    string               `json:"default_country"`
	MaxResults        int                  `json:"max_results"`
	MinResultsPrimary int                  `json:"min_results_primary"`
	CacheTTLSeconds   int                  `json:"cache_ttl_seconds"`
	RateLimits        map[string]RateLimit `json:"rate_limits"`
	SourceOrder       []string             `json:"source_order"`
	TimeoutSeconds    int                  `json:"timeout_seconds"`

	AdzunaCountryCode string `json:"adzuna_country_code"`
	JSearchCountry    string `json:"jsearch_country"`
	AdzunaBaseURL     string `json:"adzuna_base_url,omitempty"`
	JoobleBaseURL     string `json:"jooble_base_url,omitempty"`
	JSearchBaseURL    string `json:"jsearch_base_url,omitempty"`

	ScoringRulesPath string `json:"scoring_rules_path,omitempty"`

	DefaultQuery      string      `json:"default_query"`
	SeenPath          string      `json:"seen_path,omitempty"`
	SeenRetentionDays int         `json:"seen_retention_days"`
	RunHoursLocal     string      `json:"run_hours_local,omitempty"`
	GateTZ            string      `json:"gate_tz,omitempty"`
	Eligibility       Eligibility `json:"eligibility"`
	SMTP              SMTP        `json:"smtp"`
}

func DefaultConfig() Config {
	return Config{
		DefaultCountry:    "Canada",
		MaxResults:        100,
		MinResultsPrimary: 40,
		CacheTTLSeconds:   3600,
		RateLimits:        map[string]RateLimit{},
		SourceOrder:       []string{"adzuna", "jooble", "jsearch"},
		TimeoutSeconds:    20,
		AdzunaCountryCode: "ca",
		JSearchCountry:    "ca",
		DefaultQuery:      "software co-op",
		SeenRetentionDays: 30,
		SMTP:              SMTP{Port: 587},
	}
}

func ConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("JOBSCAN_CONFIG_DIR")); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func ProxiesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProxiesFileName), nil
}

// Load reads config.json (json5, comments allowed) and then applies env
// overrides, so secrets can stay out of the file. Variables may also come
// from a .env file in the working directory or the config dir; the process
// environment wins over both.
func Load() (Config, error) {
	cfg := DefaultConfig()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	cfg, err = LoadFile(path)
	if err != nil {
		return cfg, err
	}
	env, err := loadEnviron(DotEnvFileName, filepath.Join(filepath.Dir(path), DotEnvFileName))
	if err != nil {
		return cfg, err
	}
	env.apply(&cfg)
	return cfg, nil
}

// environ resolves variables from the process environment, falling back
// to values read from dotenv files.
type environ map[string]string

// loadEnviron reads dotenv files in order; earlier files win and missing
// files are skipped.
func loadEnviron(paths ...string) (environ, error) {
	env := environ{}
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for key, val := range values {
			if _, ok := env[key]; !ok {
				env[key] = val
			}
		}
	}
	return env, nil
}

func (e environ) lookup(key string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return strings.TrimSpace(e[key])
}

// LoadFile reads a config file on top of the defaults. A missing file is
// not an error.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	if err := json5.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.RateLimits == nil {
		cfg.RateLimits = map[string]RateLimit{}
	}
	return cfg, nil
}

func (e environ) apply(cfg *Config) {
	cfg.JSearchAPIKey = e.str("JSEARCH_API_KEY", cfg.JSearchAPIKey)
	cfg.JoobleAPIKey = e.str("JOOBLE_API_KEY", cfg.JoobleAPIKey)
	cfg.AdzunaAppID = e.str("ADZUNA_APP_ID", e.str("APP_ID", cfg.AdzunaAppID))
	cfg.AdzunaAppKey = e.str("ADZUNA_APP_KEY", e.str("APP_KEY", cfg.AdzunaAppKey))

	cfg.DefaultCountry = e.str("DEFAULT_COUNTRY", cfg.DefaultCountry)
	cfg.MaxResults = e.num("MAX_RESULTS", cfg.MaxResults)
	cfg.MinResultsPrimary = e.num("MIN_RESULTS_PRIMARY", cfg.MinResultsPrimary)
	cfg.CacheTTLSeconds = e.num("CACHE_TTL_SECONDS", cfg.CacheTTLSeconds)
	cfg.AdzunaCountryCode = strings.ToLower(e.str("ADZUNA_COUNTRY_CODE", cfg.AdzunaCountryCode))
	cfg.JSearchCountry = strings.ToLower(e.str("JSEARCH_COUNTRY", cfg.JSearchCountry))

	for source, limit := range ParseRateLimits(e.lookup("RATE_LIMITS_JSON")) {
		cfg.RateLimits[source] = limit
	}
	if order := e.str("JOBSCAN_SOURCES", ""); order != "" {
		cfg.SourceOrder = splitCSV(order)
	}

	cfg.DefaultQuery = e.str("JOBSCAN_QUERY", cfg.DefaultQuery)
	cfg.SeenPath = e.str("JOBSCAN_SEEN_PATH", cfg.SeenPath)
	cfg.SeenRetentionDays = e.num("JOBSCAN_SEEN_RETENTION_DAYS", cfg.SeenRetentionDays)
	cfg.RunHoursLocal = e.str("RUN_HOURS_LOCAL", cfg.RunHoursLocal)
	cfg.GateTZ = e.str("GATE_TZ", cfg.GateTZ)

	cfg.SMTP.Host = e.str("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = e.num("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = e.str("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = e.str("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = e.str("EMAIL_FROM", cfg.SMTP.From)
	if to := e.str("EMAIL_TO", ""); to != "" {
		cfg.SMTP.To = splitCSV(to)
	}
}

// ParseRateLimits decodes {"adzuna": {"per_minute": 30, "per_day": 1000}}.
// Malformed input yields an empty map.
func ParseRateLimits(raw string) map[string]RateLimit {
	out := map[string]RateLimit{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]RateLimit{}
	}
	return out
}

// ResolveSeenPath returns the configured seen-store path or the default
// one inside the config dir.
func (c Config) ResolveSeenPath() (string, error) {
	if strings.TrimSpace(c.SeenPath) != "" {
		return c.SeenPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SeenFileName), nil
}

// Init writes default config.json and proxies.txt if they don't already exist.
func Init() ([]string, error) {
	var created []string

	dir, err := ConfigDir()
	if err != nil {
		return created, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return created, err
	}

	configPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(configPath, DefaultConfig()); err != nil {
			return created, err
		}
		created = append(created, configPath)
	}

	proxiesPath := filepath.Join(dir, ProxiesFileName)
	if _, err := os.Stat(proxiesPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(proxiesPath, []byte(""), 0o644); err != nil {
			return created, err
		}
		created = append(created, proxiesPath)
	}

	return created, nil
}

func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func LoadProxies(flagValue string) ([]string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return splitCSV(flagValue), nil
	}

	if env := strings.TrimSpace(os.Getenv("JOBSCAN_PROXIES")); env != "" {
		return splitCSV(env), nil
	}

	path, err := ProxiesPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var proxies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}

func (e environ) str(key, fallback string) string {
	if val := e.lookup(key); val != "" {
		return val
	}
	return fallback
}

func (e environ) num(key string, fallback int) int {
	val := e.lookup(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
