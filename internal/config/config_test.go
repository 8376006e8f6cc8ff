package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileJSON5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	data := `{
  // trailing commas and comments are fine
  "adzuna_app_id": "id",
  "max_results": 25,
  "rate_limits": {"jooble": {"per_minute": 5, "per_day": 50}},
  "source_order": ["jsearch", "adzuna"],
}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.AdzunaAppID != "id" || cfg.MaxResults != 25 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MinResultsPrimary != 40 {
		t.Fatalf("defaults should survive partial files, got min=%d", cfg.MinResultsPrimary)
	}
	if got := cfg.RateLimits["jooble"]; got.PerMinute != 5 || got.PerDay != 50 {
		t.Fatalf("unexpected jooble limits: %+v", got)
	}
	if len(cfg.SourceOrder) != 2 || cfg.SourceOrder[0] != "jsearch" {
		t.Fatalf("unexpected source order: %v", cfg.SourceOrder)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.DefaultCountry != "Canada" || cfg.CacheTTLSeconds != 3600 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv("JOBSCAN_CONFIG_DIR", t.TempDir())
	t.Setenv("APP_ID", "legacy-id")
	t.Setenv("ADZUNA_APP_KEY", "key")
	t.Setenv("ADZUNA_COUNTRY_CODE", "GB")
	t.Setenv("MIN_RESULTS_PRIMARY", "not-a-number")
	t.Setenv("RATE_LIMITS_JSON", `{"adzuna": {"per_minute": 1, "per_day": 2}}`)
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AdzunaAppID != "legacy-id" || cfg.AdzunaAppKey != "key" {
		t.Fatalf("unexpected credentials: %q %q", cfg.AdzunaAppID, cfg.AdzunaAppKey)
	}
	if cfg.AdzunaCountryCode != "gb" {
		t.Fatalf("country code should be lower-cased, got %q", cfg.AdzunaCountryCode)
	}
	if cfg.MinResultsPrimary != 40 {
		t.Fatalf("invalid int env should keep default, got %d", cfg.MinResultsPrimary)
	}
	if got := cfg.RateLimits["adzuna"]; got.PerMinute != 1 || got.PerDay != 2 {
		t.Fatalf("unexpected rate limits: %+v", cfg.RateLimits)
	}
	if len(cfg.SMTP.To) != 2 || cfg.SMTP.To[1] != "b@example.com" {
		t.Fatalf("unexpected recipients: %v", cfg.SMTP.To)
	}
}

func TestParseRateLimitsMalformed(t *testing.T) {
	if got := ParseRateLimits("{not json"); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
	if got := ParseRateLimits(""); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestInitWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JOBSCAN_CONFIG_DIR", dir)

	created, err := Init()
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 files created, got %v", created)
	}

	again, err := Init()
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second Init() should create nothing, got %v", again)
	}

	cfg, err := LoadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.MaxResults != 100 {
		t.Fatalf("unexpected written config: %+v", cfg)
	}
}

func TestLoadProxiesFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JOBSCAN_CONFIG_DIR", dir)
	t.Setenv("JOBSCAN_PROXIES", "")
	data := "# comment\nhttp://p1:8080\n\nhttp://p2:8080\n"
	if err := os.WriteFile(filepath.Join(dir, ProxiesFileName), []byte(data), 0o644); err != nil {
		t.Fatalf("write proxies: %v", err)
	}

	proxies, err := LoadProxies("")
	if err != nil {
		t.Fatalf("LoadProxies() error = %v", err)
	}
	if len(proxies) != 2 || proxies[0] != "http://p1:8080" {
		t.Fatalf("unexpected proxies: %v", proxies)
	}

	flagProxies, _ := LoadProxies("http://a, http://b")
	if len(flagProxies) != 2 || flagProxies[1] != "http://b" {
		t.Fatalf("flag value should win: %v", flagProxies)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JOBSCAN_CONFIG_DIR", dir)
	t.Setenv("ADZUNA_APP_KEY", "from-env")
	t.Setenv("JOOBLE_API_KEY", "")

	dotenv := "JOOBLE_API_KEY=from-file\nADZUNA_APP_KEY=ignored\nMAX_RESULTS=25\n"
	if err := os.WriteFile(filepath.Join(dir, DotEnvFileName), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.JoobleAPIKey != "from-file" {
		t.Fatalf("expected dotenv value, got %q", cfg.JoobleAPIKey)
	}
	if cfg.AdzunaAppKey != "from-env" {
		t.Fatalf("process env should win over dotenv, got %q", cfg.AdzunaAppKey)
	}
	if cfg.MaxResults != 25 {
		t.Fatalf("expected max results from dotenv, got %d", cfg.MaxResults)
	}
}
