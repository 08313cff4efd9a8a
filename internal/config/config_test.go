package config

import (
	"log/slog"
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	// Clear any env vars that might interfere.
	for _, env := range []string{
		"CHATTERBOX_DATA_DIR", "CHATTERBOX_HTTP_PORT", "CHATTERBOX_VOICE_PORT",
		"CHATTERBOX_LOG_LEVEL", "CHATTERBOX_LOG_FORMAT", "CHATTERBOX_HISTORY_LIMIT",
	} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	os.Args = []string{"chatterbox"}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != defaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, defaultDataDir)
	}
	if cfg.HTTPPort != defaultHTTPPort {
		t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, defaultHTTPPort)
	}
	if cfg.VoicePort != defaultVoicePort {
		t.Errorf("VoicePort = %d, want %d", cfg.VoicePort, defaultVoicePort)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
	if cfg.HistoryLimit != defaultHistoryLimit {
		t.Errorf("HistoryLimit = %d, want %d", cfg.HistoryLimit, defaultHistoryLimit)
	}
	if cfg.FileRetentionDays != defaultFileRetentionDays {
		t.Errorf("FileRetentionDays = %d, want %d", cfg.FileRetentionDays, defaultFileRetentionDays)
	}
}

func TestEnvVarOverride(t *testing.T) {
	os.Args = []string{"chatterbox"}
	t.Setenv("CHATTERBOX_HTTP_PORT", "9090")
	t.Setenv("CHATTERBOX_DATA_DIR", "/tmp/chatterbox-test")
	t.Setenv("CHATTERBOX_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.DataDir != "/tmp/chatterbox-test" {
		t.Errorf("DataDir = %q, want /tmp/chatterbox-test", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestCLIFlagsPrecedence(t *testing.T) {
	// CLI flags should override env vars.
	os.Args = []string{"chatterbox", "--http-port", "3000", "--log-level", "warn"}
	t.Setenv("CHATTERBOX_HTTP_PORT", "9090")
	t.Setenv("CHATTERBOX_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort = %d, want 3000 (CLI should override env)", cfg.HTTPPort)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn (CLI should override env)", cfg.LogLevel)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	os.Args = []string{"chatterbox", "--http-port", "99999"}
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port, got nil")
	}
}

func TestValidatePortCollision(t *testing.T) {
	os.Args = []string{"chatterbox", "--http-port", "5000", "--voice-port", "5000"}
	if _, err := Load(); err == nil {
		t.Fatal("expected error when voice-port equals http-port, got nil")
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	os.Args = []string{"chatterbox", "--log-level", "verbose"}
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestJWTSecretBytes(t *testing.T) {
	t.Run("generated when empty", func(t *testing.T) {
		cfg := &Config{}
		key, err := cfg.JWTSecretBytes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(key) != 32 {
			t.Errorf("key length = %d, want 32", len(key))
		}
		if cfg.JWTSecret == "" {
			t.Error("generated secret was not stored back in config")
		}
	})

	t.Run("rejects short secret", func(t *testing.T) {
		cfg := &Config{JWTSecret: "abcd"}
		if _, err := cfg.JWTSecretBytes(); err == nil {
			t.Fatal("expected error for short secret, got nil")
		}
	})

	t.Run("rejects non-hex secret", func(t *testing.T) {
		cfg := &Config{JWTSecret: "zz"}
		if _, err := cfg.JWTSecretBytes(); err == nil {
			t.Fatal("expected error for non-hex secret, got nil")
		}
	})
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
