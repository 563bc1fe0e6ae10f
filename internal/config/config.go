package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/bryanchriswhite/focusfollows/internal/classify"
	"github.com/bryanchriswhite/focusfollows/internal/external"
	"github.com/bryanchriswhite/focusfollows/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// StatusConfig controls the local status API
type StatusConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// Config represents the application configuration
type Config struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogPretty bool   `json:"log_pretty" yaml:"log_pretty"`

	// Backend is "auto", "x11" or "windows"
	Backend      string        `json:"backend" yaml:"backend"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// ExternalSourcePath switches eligibility to an external window list
	ExternalSourcePath string `json:"external_source_path" yaml:"external_source_path"`

	Status StatusConfig `json:"status" yaml:"status"`

	// Rules extend the built-in rule table
	Rules []classify.Rule `json:"rules" yaml:"rules"`
}

// Keys accepted by Set and Value
var Keys = []string{
	"log_level",
	"log_pretty",
	"backend",
	"poll_interval",
	"external_source_path",
	"status.enabled",
	"status.port",
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/focusfollows/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "focusfollows", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Int("rules", len(m.config.Rules)).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		LogLevel:     "info",
		Backend:      "auto",
		PollInterval: 20 * time.Millisecond,
		Status: StatusConfig{
			Enabled: false,
			Port:    8765,
		},
		Rules: []classify.Rule{},
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Rules == nil {
		cfg.Rules = []classify.Rule{}
	}
	for _, r := range cfg.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("invalid rule in %s: %w", m.configPath, err)
		}
	}

	m.config = cfg
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}

	cfg := *m.config
	cfg.Rules = append([]classify.Rule{}, m.config.Rules...)
	return &cfg
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update replaces the configuration and saves it
func (m *Manager) Update(cfg *Config) error {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// AddRule validates rule and appends it. Rule names are unique.
func (m *Manager) AddRule(rule classify.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	for _, r := range m.config.Rules {
		if r.Name == rule.Name {
			m.mu.Unlock()
			return fmt.Errorf("rule %q already exists", rule.Name)
		}
	}
	m.config.Rules = append(m.config.Rules, rule)
	total := len(m.config.Rules)
	m.mu.Unlock()

	if err := m.Save(); err != nil {
		return err
	}

	logger.WithComponent("config").Info().
		Str("rule", rule.Name).
		Str("kind", string(rule.Kind)).
		Int("total_count", total).
		Msg("Added rule")
	return nil
}

// RemoveRule deletes the rule with the given name
func (m *Manager) RemoveRule(name string) error {
	m.mu.Lock()
	idx := -1
	for i, r := range m.config.Rules {
		if r.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("rule %q not found", name)
	}
	m.config.Rules = append(m.config.Rules[:idx], m.config.Rules[idx+1:]...)
	m.mu.Unlock()

	if err := m.Save(); err != nil {
		return err
	}

	logger.WithComponent("config").Info().
		Str("rule", name).
		Msg("Removed rule")
	return nil
}

// RuleSet returns the built-in rules followed by the configured ones
func (m *Manager) RuleSet() (*classify.RuleSet, error) {
	return classify.Default(m.Get().Rules...)
}

// ExternalSource returns the configured external window list, falling back
// to komorebi's list when it exists. "" means heuristic mode, which is also
// used when a configured path is not a regular file.
func (m *Manager) ExternalSource() string {
	path := m.Get().ExternalSourcePath
	if path == "" {
		return external.DefaultPath()
	}
	if !external.IsFile(path) {
		logger.WithComponent("config").Warn().
			Str("path", path).
			Msg("External window list is not a file, using heuristic classification")
		return ""
	}
	return path
}

// Set parses value for key and saves the configuration
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	cfg := *m.config

	switch key {
	case "log_level":
		if !logger.ValidLevel(value) {
			m.mu.Unlock()
			return fmt.Errorf("invalid log level: %s (use: trace, debug, info, warn, error)", value)
		}
		cfg.LogLevel = value
	case "log_pretty":
		b, err := strconv.ParseBool(value)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		cfg.LogPretty = b
	case "backend":
		cfg.Backend = value
	case "poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			m.mu.Unlock()
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.PollInterval = d
	case "external_source_path":
		cfg.ExternalSourcePath = value
	case "status.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		cfg.Status.Enabled = b
	case "status.port":
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			m.mu.Unlock()
			return fmt.Errorf("invalid port number: %s", value)
		}
		cfg.Status.Port = port
	default:
		m.mu.Unlock()
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	m.config = &cfg
	m.mu.Unlock()
	return m.Save()
}

// GetViper returns a viper instance reading the saved configuration file,
// for dotted-key lookups.
func (m *Manager) GetViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// SetLogLevel overrides the log level without saving
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
}

// SetBackend overrides the backend without saving
func (m *Manager) SetBackend(name string) {
	m.mu.Lock()
	m.config.Backend = name
	m.mu.Unlock()
}

// SetExternalSourcePath overrides the external list without saving
func (m *Manager) SetExternalSourcePath(path string) {
	m.mu.Lock()
	m.config.ExternalSourcePath = path
	m.mu.Unlock()
}

// SetPort overrides the status port and enables the status API without saving
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	m.config.Status.Port = port
	m.config.Status.Enabled = true
	m.mu.Unlock()
}

// GetConfigPath returns the config file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
