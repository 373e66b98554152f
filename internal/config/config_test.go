package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.PageSize != 5 {
		t.Fatalf("expected page size 5, got %d", cfg.Server.PageSize)
	}
	if cfg.Source.Timeout != 10*time.Second {
		t.Fatalf("expected 10s source timeout, got %s", cfg.Source.Timeout)
	}
	if got := cfg.RoleOverrides()["employee"]; len(got) != 7 {
		t.Fatalf("unexpected employee permissions: %v", got)
	}
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: 0.0.0.0:9090\n  page_size: 10\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9090" || cfg.Server.PageSize != 10 {
		t.Fatalf("overrides not applied: %+v", cfg.Server)
	}
	if cfg.Source.BaseURL != "https://dummyjson.com" {
		t.Fatalf("default base url lost: %s", cfg.Source.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown role":     "rbac:\n  roles:\n    intern:\n      permissions: [task.read]\n",
		"relative source":  "source:\n  base_url: dummyjson.com\n",
		"bad log format":   "log:\n  format: xml\n",
		"webhook no url":   "webhooks:\n  - secret: s\n",
		"zero page size":   "server:\n  page_size: 0\n",
		"base path no /":   "server:\n  base_path: v0\n",
		"journal no path":  "journal:\n  enabled: true\n  path: \"\"\n",
		"malformed yaml":   "server: [",
		"negative timeout": "webhooks:\n  - url: http://x\n    timeout: -1s\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("expected default base path, got %s", cfg.Server.BasePath)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	doc := strings.Replace(GenerateDefault(), "level: info", "level: debug", 1)
	if err := os.WriteFile(Path(dir), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Log.Level)
	}
	if got := cfg.JournalPath(dir); got != filepath.Join(dir, ".taskboard", "journal.db") {
		t.Fatalf("unexpected journal path %s", got)
	}
}

func TestWebhookActive(t *testing.T) {
	off := false
	if (WebhookConfig{URL: "http://x", Enabled: &off}).Active() {
		t.Fatalf("disabled hook reported active")
	}
	if !(WebhookConfig{URL: "http://x"}).Active() {
		t.Fatalf("hook without enabled flag should be active")
	}
}
