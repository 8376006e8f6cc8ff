package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MrJJimenez/jobscan/internal/cmd"
)

func TestApplyEnvDefaults(t *testing.T) {
	t.Setenv("JOBSCAN_JSON", "yes")
	t.Setenv("JOBSCAN_VERBOSE", "0")
	t.Setenv("JOBSCAN_COLOR", "never")

	cli := cmd.NewCLI()
	applyEnvDefaults(cli)
	if !cli.JSON || cli.Verbose || cli.Color != "never" {
		t.Fatalf("unexpected cli defaults: json=%v verbose=%v color=%q", cli.JSON, cli.Verbose, cli.Color)
	}
}

func TestBuildVersion(t *testing.T) {
	defer func(v, c, d string) { version, commit, date = v, c, d }(version, commit, date)

	version, commit, date = "1.2.0", "abc123", ""
	if got := buildVersion(); got != "1.2.0 (abc123)" {
		t.Fatalf("buildVersion() = %q", got)
	}
	date = "2025-09-01"
	if got := buildVersion(); got != "1.2.0 (abc123, 2025-09-01)" {
		t.Fatalf("buildVersion() = %q", got)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false, true)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Fatalf("unexpected log output: %q", buf.String())
	}

	buf.Reset()
	t.Setenv("JOBSCAN_LOG_LEVEL", "warn")
	logger = newLogger(&buf, true, true)
	logger.Info().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("JOBSCAN_LOG_LEVEL should override --verbose: %q", buf.String())
	}
}
