package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeBackend is an in-memory ConfigBackend for tests.
type fakeBackend struct {
	strings map[string]string
	ints    map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{strings: make(map[string]string), ints: make(map[string]int)}
}

func (f *fakeBackend) GetString(key string) (string, bool, error) {
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *fakeBackend) GetInt(key string) (int, bool, error) {
	v, ok := f.ints[key]
	return v, ok, nil
}

func (f *fakeBackend) SetString(key, val string) error {
	f.strings[key] = val
	return nil
}

func (f *fakeBackend) SetInt(key string, val int) error {
	f.ints[key] = val
	return nil
}

func (f *fakeBackend) Delete(key string) error {
	delete(f.strings, key)
	delete(f.ints, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(newFakeBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 4601 {
		t.Errorf("Server.MCPPort = %d, want 4601", cfg.Server.MCPPort)
	}
	if cfg.Export.MaxAttempts != 3 {
		t.Errorf("Export.MaxAttempts = %d, want 3", cfg.Export.MaxAttempts)
	}
	if cfg.Export.CacheTTLHours != 24 {
		t.Errorf("Export.CacheTTLHours = %d, want 24", cfg.Export.CacheTTLHours)
	}
	if cfg.Export.CacheStrategy != "lru" {
		t.Errorf("Export.CacheStrategy = %q, want lru", cfg.Export.CacheStrategy)
	}
	if cfg.Quality.PassThreshold != 80 {
		t.Errorf("Quality.PassThreshold = %v, want 80", cfg.Quality.PassThreshold)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestBackendValuesApplied(t *testing.T) {
	clearEnv(t)

	b := newFakeBackend()
	b.ints["server.port"] = 5600
	b.strings["tracker.base_url"] = "https://tracker.example.com"
	b.ints["tracker.board_id"] = 42
	b.strings["export.cache_strategy"] = "adaptive"
	b.strings["quality.pass_threshold"] = "92.5"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5600 {
		t.Errorf("Server.Port = %d, want 5600", cfg.Server.Port)
	}
	if cfg.Tracker.BaseURL != "https://tracker.example.com" {
		t.Errorf("Tracker.BaseURL = %q", cfg.Tracker.BaseURL)
	}
	if cfg.Tracker.BoardID != 42 {
		t.Errorf("Tracker.BoardID = %d, want 42", cfg.Tracker.BoardID)
	}
	if cfg.Export.CacheStrategy != "adaptive" {
		t.Errorf("Export.CacheStrategy = %q", cfg.Export.CacheStrategy)
	}
	if cfg.Quality.PassThreshold != 92.5 {
		t.Errorf("Quality.PassThreshold = %v, want 92.5", cfg.Quality.PassThreshold)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPRINTDECK_SERVER_PORT", "7000")
	t.Setenv("SPRINTDECK_QUALITY_PASS_THRESHOLD", "70")

	b := newFakeBackend()
	b.ints["server.port"] = 5600
	b.strings["quality.pass_threshold"] = "90"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want env override 7000", cfg.Server.Port)
	}
	if cfg.Quality.PassThreshold != 70 {
		t.Errorf("Quality.PassThreshold = %v, want env override 70", cfg.Quality.PassThreshold)
	}
}

func TestSecretsComeFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPRINTDECK_TRACKER_TOKEN", "tok-123")
	t.Setenv("SPRINTDECK_AUTH_TOKEN", "auth-456")

	// A secret sitting in the backend must be ignored.
	b := newFakeBackend()
	b.strings["tracker.token"] = "leaked"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Tracker.Token != "tok-123" {
		t.Errorf("Tracker.Token = %q, want tok-123", cfg.Tracker.Token)
	}
	if cfg.Auth.Token != "auth-456" {
		t.Errorf("Auth.Token = %q, want auth-456", cfg.Auth.Token)
	}
}

func TestInvalidEnvIntFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPRINTDECK_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newFakeBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want default 4600", cfg.Server.Port)
	}
}

func TestSetKey(t *testing.T) {
	b := newFakeBackend()

	if err := setKeyWith(b, "server.port", "5000"); err != nil {
		t.Fatal(err)
	}
	if b.ints["server.port"] != 5000 {
		t.Errorf("server.port = %d, want 5000", b.ints["server.port"])
	}

	if err := setKeyWith(b, "quality.pass_threshold", "85.5"); err != nil {
		t.Fatal(err)
	}
	if b.strings["quality.pass_threshold"] != "85.5" {
		t.Errorf("quality.pass_threshold = %q", b.strings["quality.pass_threshold"])
	}

	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "nope.nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSetKeyRejectsSecrets(t *testing.T) {
	err := setKeyWith(newFakeBackend(), "tracker.token", "tok")
	if err == nil {
		t.Fatal("expected error setting a secret key")
	}
	if !strings.Contains(err.Error(), "SPRINTDECK_TRACKER_TOKEN") {
		t.Errorf("error %q should point at the env var", err)
	}
}

func TestShowAllExcludesSecrets(t *testing.T) {
	infos := ShowAll(defaults())
	for _, info := range infos {
		if info.Key == "tracker.token" || info.Key == "auth.token" {
			t.Errorf("secret key %q exposed by ShowAll", info.Key)
		}
	}
	if len(infos) != len(ValidKeys()) {
		t.Errorf("ShowAll returned %d keys, ValidKeys %d", len(infos), len(ValidKeys()))
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	b := newFileBackend()
	if err := b.SetInt("server.port", 5001); err != nil {
		t.Fatal(err)
	}
	if err := b.SetString("log.level", "debug"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "sprintdeck", "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	// A fresh backend reads the persisted values.
	b2 := newFileBackend()
	port, ok, err := b2.GetInt("server.port")
	if err != nil || !ok || port != 5001 {
		t.Errorf("GetInt = (%d, %v, %v), want (5001, true, nil)", port, ok, err)
	}
	level, ok, err := b2.GetString("log.level")
	if err != nil || !ok || level != "debug" {
		t.Errorf("GetString = (%q, %v, %v), want (debug, true, nil)", level, ok, err)
	}

	if err := b2.Delete("log.level"); err != nil {
		t.Fatal(err)
	}
	b3 := newFileBackend()
	if _, ok, _ := b3.GetString("log.level"); ok {
		t.Error("deleted key still present after reload")
	}
}
