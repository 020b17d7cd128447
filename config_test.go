package goGuard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero difficulty", func(c *Config) { c.PoW.Difficulty = 0 }, "PoW Difficulty"},
		{"huge difficulty", func(c *Config) { c.PoW.Difficulty = 65 }, "PoW Difficulty"},
		{"state ttl", func(c *Config) { c.State.TTLs["pow"] = 0 }, "State TTL for pow"},
		{"state prefix", func(c *Config) { c.State.Prefix = "" }, "State Prefix"},
		{"captcha path", func(c *Config) { c.Captcha.DatasetPath = "" }, "Captcha DatasetPath"},
		{"capacity", func(c *Config) { c.RateLimit.Capacity = c.RateLimit.Limit }, "Capacity"},
		{"sources", func(c *Config) {
			c.Reputation.Enabled = true
			c.Reputation.Sources = nil
		}, "Reputation Sources"},
		{"repository", func(c *Config) { c.User.Repository = "sql" }, "User Repository"},
		{"events without audit", func(c *Config) { c.Events.Enabled = true }, "Events requires Audit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigValidateDisabledSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Captcha.Enabled = false
	cfg.Captcha.DatasetPath = ""
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Limit = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled sections must not be validated: %v", err)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goguard.yaml")
	body := `
pow:
  difficulty: 5
ratelimit:
  window: 30s
  limit: 40
  capacity: 45
state:
  ttls:
    pow: 1m
access:
  token: letmein
reputation:
  sources: [ipapi, geoip]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PoW.Difficulty != 5 || cfg.RateLimit.Window != 30*time.Second || cfg.RateLimit.Limit != 40 {
		t.Fatalf("file values not applied: %+v %+v", cfg.PoW, cfg.RateLimit)
	}
	if cfg.State.TTLs["pow"] != time.Minute || cfg.State.TTLs["session"] != 365*24*time.Hour {
		t.Fatalf("unexpected ttls: %v", cfg.State.TTLs)
	}
	if cfg.Access.Token != "letmein" || len(cfg.Reputation.Sources) != 2 {
		t.Fatalf("unexpected values: %+v %+v", cfg.Access, cfg.Reputation.Sources)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("defaults must survive, got %q", cfg.Server.Addr)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goguard.toml")
	body := `
[captcha]
enabled = false

[user]
repository = "file"
file_path = "accounts.json"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Captcha.Enabled || cfg.User.Repository != "file" || cfg.User.FilePath != "accounts.json" {
		t.Fatalf("file values not applied: %+v %+v", cfg.Captcha, cfg.User)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("GOGUARD_POW_DIFFICULTY", "7")
	t.Setenv("GOGUARD_USER_SECRET", "from-env")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PoW.Difficulty != 7 || cfg.User.Secret != "from-env" {
		t.Fatalf("env not applied: %d %q", cfg.PoW.Difficulty, cfg.User.Secret)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("GOGUARD_POW_DIFFICULTY", "0")
	if _, err := LoadConfig(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	clone := cloneConfig(cfg)
	clone.State.TTLs["pow"] = time.Second
	clone.Reputation.Sources[0] = "changed"
	if cfg.State.TTLs["pow"] == time.Second || cfg.Reputation.Sources[0] == "changed" {
		t.Fatal("cloneConfig must copy maps and slices")
	}
}
