package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/classify"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "focusfollows", "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, path
}

func TestNewManager_CreatesDefaults(t *testing.T) {
	m, path := newTestManager(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg := m.Get()
	want := Defaults()
	if cfg.LogLevel != want.LogLevel || cfg.Backend != want.Backend {
		t.Errorf("Get() = %+v, want defaults %+v", cfg, want)
	}
	if cfg.PollInterval != 20*time.Millisecond {
		t.Errorf("PollInterval = %v, want 20ms", cfg.PollInterval)
	}
	if cfg.Status.Enabled {
		t.Error("status API enabled by default")
	}
}

func TestNewManager_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`log_level: debug
backend: x11
poll_interval: 50ms
status:
  enabled: true
  port: 9000
rules:
  - name: terminal
    kind: allow
    class: kitty
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := m.Get()
	if cfg.LogLevel != "debug" || cfg.Backend != "x11" {
		t.Errorf("Get() = %+v", cfg)
	}
	if cfg.PollInterval != 50*time.Millisecond {
		t.Errorf("PollInterval = %v, want 50ms", cfg.PollInterval)
	}
	if !cfg.Status.Enabled || cfg.Status.Port != 9000 {
		t.Errorf("Status = %+v", cfg.Status)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Class != "kitty" {
		t.Fatalf("Rules = %+v", cfg.Rules)
	}

	rs, err := m.RuleSet()
	if err != nil {
		t.Fatalf("RuleSet() error = %v", err)
	}
	if r, ok := rs.Allowed("kitty"); !ok || r.Name != "terminal" {
		t.Errorf("configured allow rule not applied: %+v, %v", r, ok)
	}
}

func TestNewManager_RejectsInvalidRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`rules:
  - name: broken
    kind: pair
    class: Edit
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewManager(path); err == nil {
		t.Fatal("NewManager() accepted a pair rule without a foreground class")
	}
}

func TestManager_Rules(t *testing.T) {
	m, path := newTestManager(t)

	rule := classify.Rule{Name: "editor", Kind: classify.KindBlock, Class: "Gimp"}
	if err := m.AddRule(rule); err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}
	if err := m.AddRule(rule); err == nil {
		t.Error("AddRule() accepted a duplicate name")
	}
	if err := m.AddRule(classify.Rule{Name: "bad", Kind: "maybe", Class: "x"}); err == nil {
		t.Error("AddRule() accepted an unknown kind")
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if rules := reloaded.Get().Rules; len(rules) != 1 || rules[0] != rule {
		t.Fatalf("reloaded Rules = %+v, want [%+v]", rules, rule)
	}

	if err := m.RemoveRule("editor"); err != nil {
		t.Fatalf("RemoveRule() error = %v", err)
	}
	if err := m.RemoveRule("editor"); err == nil {
		t.Error("RemoveRule() of a missing rule succeeded")
	}
	if n := len(m.Get().Rules); n != 0 {
		t.Errorf("len(Rules) = %d after removal, want 0", n)
	}
}

func TestManager_Set(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(c *Config) bool
	}{
		{key: "log_level", value: "trace", check: func(c *Config) bool { return c.LogLevel == "trace" }},
		{key: "log_level", value: "loud", wantErr: true},
		{key: "log_pretty", value: "true", check: func(c *Config) bool { return c.LogPretty }},
		{key: "poll_interval", value: "5ms", check: func(c *Config) bool { return c.PollInterval == 5*time.Millisecond }},
		{key: "poll_interval", value: "-1s", wantErr: true},
		{key: "status.port", value: "9090", check: func(c *Config) bool { return c.Status.Port == 9090 }},
		{key: "status.port", value: "70000", wantErr: true},
		{key: "status.enabled", value: "yes", wantErr: true},
		{key: "external_source_path", value: "/tmp/hwnds.json", check: func(c *Config) bool { return c.ExternalSourcePath == "/tmp/hwnds.json" }},
		{key: "no_such_key", value: "1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			m, _ := newTestManager(t)
			err := m.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(m.Get()) {
				t.Errorf("Set(%s, %s) not applied: %+v", tt.key, tt.value, m.Get())
			}
		})
	}
}

func TestManager_GetViper(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Set("status.port", "9191"); err != nil {
		t.Fatal(err)
	}

	v, err := m.GetViper()
	if err != nil {
		t.Fatalf("GetViper() error = %v", err)
	}
	if got := v.GetInt("status.port"); got != 9191 {
		t.Errorf("status.port = %d, want 9191", got)
	}
	if got := v.GetString("poll_interval"); got != "20ms" {
		t.Errorf("poll_interval = %q, want 20ms", got)
	}
}

func TestManager_ExternalSource(t *testing.T) {
	t.Setenv("LOCALAPPDATA", t.TempDir())
	m, _ := newTestManager(t)

	if got := m.ExternalSource(); got != "" {
		t.Errorf("ExternalSource() = %q with nothing configured", got)
	}

	list := filepath.Join(t.TempDir(), "hwnds.json")
	if err := os.WriteFile(list, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	m.SetExternalSourcePath(list)
	if got := m.ExternalSource(); got != list {
		t.Errorf("ExternalSource() = %q, want %q", got, list)
	}

	m.SetExternalSourcePath(filepath.Join(t.TempDir(), "missing.json"))
	if got := m.ExternalSource(); got != "" {
		t.Errorf("ExternalSource() = %q for a missing file, want heuristic", got)
	}

	m.SetExternalSourcePath(t.TempDir())
	if got := m.ExternalSource(); got != "" {
		t.Errorf("ExternalSource() = %q for a directory, want heuristic", got)
	}
}
