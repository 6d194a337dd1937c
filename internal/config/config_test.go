package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.KafkaTopic != "game-events" || cfg.KafkaGroup != "analytics-consumer" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"localhost:9092"}) {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.BotDepth != 6 || cfg.MaxSolveDepth != 12 || cfg.BotMoveDelay != 500*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MatchmakingTimeout != 10*time.Second || cfg.ReconnectWindow != 30*time.Second || cfg.SearchTimeout != 20*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"PORT":                "9000",
		"KAFKA_BROKERS":       "k1:9092, k2:9092,",
		"BOT_DEPTH":           "4",
		"MATCHMAKING_TIMEOUT": "2s",
		"LOG_FORMAT":          "json",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.BotDepth != 4 || cfg.MatchmakingTimeout != 2*time.Second || cfg.LogFormat != "json" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"BOT_DEPTH":       "zero",
		"MAX_SOLVE_DEPTH": "-3",
		"BOT_MOVE_DELAY":  "soon",
		"SEARCH_TIMEOUT":  "-1s",
		"LOG_FORMAT":      "xml",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := load(env(map[string]string{key: value}))
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("error = %v, want one naming %s", err, key)
			}
		})
	}

	_, err := load(env(map[string]string{"BOT_DEPTH": "14"}))
	if err == nil || !strings.Contains(err.Error(), "BOT_DEPTH") {
		t.Fatalf("bot deeper than max depth: error = %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nC4_TEST_A=from-file\nC4_TEST_B = \"quoted\"\nbroken line\nC4_TEST_SET=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("C4_TEST_SET", "env")
	t.Setenv("C4_TEST_A", "")
	os.Unsetenv("C4_TEST_A")
	t.Setenv("C4_TEST_B", "")
	os.Unsetenv("C4_TEST_B")

	LoadEnvFile(path)
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))

	if got := os.Getenv("C4_TEST_A"); got != "from-file" {
		t.Errorf("C4_TEST_A = %q", got)
	}
	if got := os.Getenv("C4_TEST_B"); got != "quoted" {
		t.Errorf("C4_TEST_B = %q", got)
	}
	if got := os.Getenv("C4_TEST_SET"); got != "env" {
		t.Errorf("C4_TEST_SET = %q, existing variable was overwritten", got)
	}
}

func TestSetupLogging(t *testing.T) {
	defer func(l zerolog.Logger, lvl zerolog.Level) {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
	}(log.Logger, zerolog.GlobalLevel())

	var buf bytes.Buffer
	if err := setupLogging(&buf, "warn", "json"); err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("log output = %q", out)
	}

	if err := setupLogging(&buf, "loud", "json"); err == nil {
		t.Fatal("unknown level accepted")
	}
	if err := setupLogging(&buf, "info", "xml"); err == nil {
		t.Fatal("unknown format accepted")
	}
}
