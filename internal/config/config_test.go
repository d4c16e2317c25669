package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Contacts = map[string]Contact{"929967673820": {Name: "Ravi", Category: "work"}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Contacts["929967673820"].Name != "Ravi" {
		t.Errorf("Contacts = %+v", loaded.Contacts)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("api_url = \"http://backend:8080\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://backend:8080" || cfg.SocketURL != DefaultSocketURL || cfg.PlatformWaID != DefaultPlatformWaID {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil || cfg.APIURL != DefaultAPIURL {
		t.Errorf("LoadOrDefault() = %+v, %v", cfg, err)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("WACHAT_SOCKET_URL=ws://fromfile:1/ws\nWACHAT_LOG_LEVEL=warn\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WACHAT_API_URL", "http://fromenv:9000")
	t.Setenv("WACHAT_LOG_LEVEL", "debug")
	// godotenv sets variables for the process; reset them afterwards.
	t.Setenv("WACHAT_SOCKET_URL", "")
	os.Unsetenv("WACHAT_SOCKET_URL")

	cfg := Default()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != "http://fromenv:9000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.SocketURL != "ws://fromfile:1/ws" {
		t.Errorf("SocketURL = %q", cfg.SocketURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want process env to win", cfg.LogLevel)
	}

	if err := Default().ApplyEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad url", func(c *Config) { c.APIURL = "not a url" }, "APIURL"},
		{"non numeric platform", func(c *Config) { c.PlatformWaID = "me" }, "PlatformWaID"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"bad interval", func(c *Config) { c.ResyncInterval = "often" }, "ResyncInterval"},
		{"good interval", func(c *Config) { c.ResyncInterval = "5m" }, ""},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "nowhere" }, "MetricsAddr"},
		{"contact without name", func(c *Config) { c.Contacts = map[string]Contact{"1": {Category: "x"}} }, "Name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestResyncAndDirectory(t *testing.T) {
	cfg := Default()
	if cfg.Resync() != 0 {
		t.Errorf("default resync = %v", cfg.Resync())
	}
	cfg.ResyncInterval = "30s"
	if cfg.Resync() != 30*time.Second {
		t.Errorf("resync = %v", cfg.Resync())
	}

	cfg.Contacts = map[string]Contact{"A": {Name: "Alice", Category: "family"}}
	e := cfg.Directory()["A"]
	if e.DisplayName != "Alice" || e.Category != "family" {
		t.Errorf("entry = %+v", e)
	}
}
