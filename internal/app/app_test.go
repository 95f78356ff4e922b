package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOODREADS_API_KEY", "HjeXmA0cB3OA7KdOvV9wVg")
	t.Setenv("GOODREADS_USER_ID", "21293144")
	t.Setenv("LOG_LEVEL", "")
	for _, name := range []string{"SHELF_NAME", "SHELF_SORT", "SHELF_ORDER", "SHELF_PAGE", "SHELF_PER_PAGE",
		"SHELF_USE_FALLBACK_COVER", "SHELF_CACHE_ENABLED", "SHELF_CACHE_TTL_HOURS", "SHELF_CACHE_PATH",
		"SHELF_FORCE_REFRESH", "SHELF_SOURCE", "GOODREADS_BASE_URL"} {
		t.Setenv(name, "")
	}
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.UserID != "21293144" {
		t.Errorf("UserID = %q, want %q", cfg.UserID, "21293144")
	}

	// グローバルロガーがJSON出力に設定されていること
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("GOODREADS_API_KEY", "")
	t.Setenv("GOODREADS_USER_ID", "")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}
