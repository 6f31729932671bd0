package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/database64128/dnspod-ddns/service"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"token":"1,abc","domain":"example.com","sub_domain":"home","auto_create_record":true}`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Token != "1,abc" || cfg.Domain != "example.com" || cfg.SubDomain != "home" || !cfg.AutoCreateRecord {
		t.Errorf("loadConfig() = %+v", cfg)
	}
	if cfg.TTL != service.DefaultTTL || cfg.UpdateInterval != service.DefaultUpdateInterval {
		t.Errorf("defaults not applied: TTL=%d interval=%d", cfg.TTL, cfg.UpdateInterval)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "token: 1,abc\ndomain: example.com\nsub_domain: \"@\"\nttl: 120\nip_urls:\n  - https://api.ipify.org\n")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.SubDomain != "@" || cfg.TTL != 120 || len(cfg.IPURLs) != 1 {
		t.Errorf("loadConfig() = %+v", cfg)
	}
	if cfg.UpdateInterval != service.DefaultUpdateInterval {
		t.Errorf("UpdateInterval = %d, want default", cfg.UpdateInterval)
	}
}

func TestLoadConfigEmptyYAML(t *testing.T) {
	cfg, err := loadConfig(writeFile(t, "config.yaml", ""))
	if err != nil {
		t.Fatalf("loadConfig failed on an empty file: %v", err)
	}
	if cfg.TTL != service.DefaultTTL || cfg.Token != "" {
		t.Errorf("loadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	for _, c := range []struct{ name, content string }{
		{"config.json", `{"token":"1,abc","tokn":"x"}`},
		{"config.yml", "token: 1,abc\ntokn: x\n"},
	} {
		if _, err := loadConfig(writeFile(t, c.name, c.content)); err == nil {
			t.Errorf("loadConfig(%s) accepted an unknown field", c.name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("loadConfig succeeded on a missing file")
	}
}

func TestLoadEnvOverridesToken(t *testing.T) {
	// godotenv does not override variables that are already set.
	t.Setenv(tokenEnv, "")
	os.Unsetenv(tokenEnv)
	path := writeFile(t, ".env", tokenEnv+"=9,fromenv\n")

	cfg := service.DefaultConfig()
	cfg.Token = "1,fromfile"
	if err := loadEnv(path, &cfg); err != nil {
		t.Fatalf("loadEnv failed: %v", err)
	}
	if cfg.Token != "9,fromenv" {
		t.Errorf("Token = %q, want the dotenv value", cfg.Token)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	t.Setenv(tokenEnv, "")
	cfg := service.DefaultConfig()
	cfg.Token = "1,fromfile"
	if err := loadEnv(filepath.Join(t.TempDir(), ".env"), &cfg); err != nil {
		t.Fatalf("loadEnv failed: %v", err)
	}
	if cfg.Token != "1,fromfile" {
		t.Errorf("Token = %q, want the file value", cfg.Token)
	}
}
