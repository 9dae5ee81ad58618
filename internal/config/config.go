// Package config loads mailnudge settings from YAML and the environment.
//
// Values are resolved as defaults, then the config file, then environment
// variables. Nothing outside this package reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-project directory holding the database and config.
	DirName = ".mailnudge"
	// FileName is the config file looked up inside DirName.
	FileName = "config.yaml"

	configPathEnv = "MAILNUDGE_CONFIG"
	defaultLabel  = "TA-TRIGGERS"
)

// Email providers.
const (
	ProviderSMTP  = "smtp"
	ProviderGmail = "gmail"
)

// Config holds every setting the commands need.
type Config struct {
	DB       DBConfig       `yaml:"db"`
	Gmail    GmailConfig    `yaml:"gmail"`
	Calendar CalendarConfig `yaml:"calendar"`
	Email    EmailConfig    `yaml:"email"`
	SMS      SMSConfig      `yaml:"sms"`
	LLM      LLMConfig      `yaml:"llm"`
	Watch    WatchConfig    `yaml:"watch"`
	Log      LogConfig      `yaml:"log"`
	Timezone string         `yaml:"timezone"`

	// Source is the file the config was read from, if any.
	Source   string         `yaml:"-"`
	location *time.Location `yaml:"-"`
}

// DBConfig locates the SQLite database. An empty path means discovery.
type DBConfig struct {
	Path string `yaml:"path"`
}

// GmailConfig points at the OAuth client and the trigger label.
type GmailConfig struct {
	Credentials string `yaml:"credentials"`
	Label       string `yaml:"label"`
}

// CalendarConfig names the two calendars mailnudge uses.
type CalendarConfig struct {
	ScheduleID string `yaml:"schedule_id"`
	ProjectsID string `yaml:"projects_id"`
}

// EmailConfig configures outgoing mail.
type EmailConfig struct {
	Provider string `yaml:"provider"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Pass     string `yaml:"pass"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// SMSConfig configures Twilio.
type SMSConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
}

// LLMConfig configures the Ollama-backed composer.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
}

// WatchConfig holds cron expressions for watch mode. An empty Briefing
// disables the scheduled briefing.
type WatchConfig struct {
	Ingest   string `yaml:"ingest"`
	Briefing string `yaml:"briefing"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Gmail:    GmailConfig{Label: defaultLabel},
		Calendar: CalendarConfig{ScheduleID: "primary", ProjectsID: "primary"},
		Email:    EmailConfig{Provider: ProviderSMTP, Host: "smtp.gmail.com", Port: 587},
		LLM:      LLMConfig{Host: "http://localhost:11434", Model: "llama3:latest"},
		Watch:    WatchConfig{Ingest: "*/10 * * * *", Briefing: "0 6 * * *"},
		Log:      LogConfig{Level: "info"},
		location: time.Local,
	}
}

// Load resolves the configuration. path is the --config flag; when empty
// $MAILNUDGE_CONFIG is used, then .mailnudge/config.yaml found by walking
// up from the working directory. A missing discovered file is not an error.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = getenv(configPathEnv)
	}
	if path == "" {
		explicit = false
		if cwd, err := os.Getwd(); err == nil {
			path = Discover(cwd)
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
			cfg.Source = path
		case explicit || !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Discover walks up from dir looking for .mailnudge/config.yaml.
func Discover(dir string) string {
	for {
		candidate := filepath.Join(dir, DirName, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.DB.Path, "DB_PATH")
	set(&c.Gmail.Credentials, "GMAIL_CREDENTIALS")
	set(&c.Gmail.Label, "GMAIL_LABEL")
	set(&c.Calendar.ScheduleID, "GCAL_CALENDAR_ID_SCHEDULE")
	set(&c.Calendar.ProjectsID, "GCAL_CALENDAR_ID_PROJECTS")
	set(&c.Email.Provider, "EMAIL_PROVIDER")
	set(&c.Email.Host, "SMTP_HOST")
	set(&c.Email.User, "SMTP_USER")
	set(&c.Email.Pass, "SMTP_PASS")
	set(&c.Email.From, "SMTP_FROM")
	set(&c.Email.To, "NOTIFY_EMAIL_TO")
	set(&c.SMS.AccountSID, "TWILIO_ACCOUNT_SID")
	set(&c.SMS.AuthToken, "TWILIO_AUTH_TOKEN")
	set(&c.SMS.From, "TWILIO_FROM")
	set(&c.SMS.To, "TWILIO_TO")
	set(&c.LLM.Host, "OLLAMA_HOST")
	set(&c.LLM.Model, "OLLAMA_MODEL")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Timezone, "TIMEZONE")

	if v := getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT %q: %w", v, err)
		}
		c.Email.Port = port
	}
	if v := getenv("OLLAMA_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OLLAMA_ENABLED %q: %w", v, err)
		}
		c.LLM.Enabled = enabled
	}
	return nil
}

func (c *Config) bindTimezone() error {
	if c.Timezone == "" || c.Timezone == "Local" {
		c.location = time.Local
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location returns the configured timezone.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// SMTPReady reports whether SMTP delivery has everything it needs.
func (c Config) SMTPReady() bool {
	return c.Email.Host != "" && c.Email.User != "" && c.Email.Pass != ""
}

// SMSReady reports whether Twilio delivery has everything it needs.
func (c Config) SMSReady() bool {
	return c.SMS.AccountSID != "" && c.SMS.AuthToken != "" && c.SMS.From != ""
}

// Validate lists settings that leave a channel degraded. None of them are
// fatal: the affected channel is simply not used.
func (c Config) Validate() []string {
	var warnings []string
	switch c.Email.Provider {
	case ProviderSMTP:
		if !c.SMTPReady() {
			warnings = append(warnings, "email: SMTP_HOST, SMTP_USER or SMTP_PASS not set, email disabled")
		}
	case ProviderGmail:
		if c.Gmail.Credentials == "" {
			warnings = append(warnings, "email: gmail provider needs gmail.credentials, email disabled")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("email: unknown provider %q, email disabled", c.Email.Provider))
	}
	if c.Email.To == "" {
		warnings = append(warnings, "email: NOTIFY_EMAIL_TO not set, only replies can be sent")
	}
	if !c.SMSReady() {
		warnings = append(warnings, "sms: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN or TWILIO_FROM not set, sms disabled")
	} else if c.SMS.To == "" {
		warnings = append(warnings, "sms: TWILIO_TO not set, sms has no recipient")
	}
	if c.Gmail.Credentials == "" {
		warnings = append(warnings, "gmail: credentials not set, trigger mail and calendar unavailable")
	} else if _, err := os.Stat(c.Gmail.Credentials); err != nil {
		warnings = append(warnings, fmt.Sprintf("gmail: credentials %s not readable, trigger mail and calendar unavailable", c.Gmail.Credentials))
	}
	return warnings
}

// Write saves cfg as YAML at path with owner-only permissions.
func Write(path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
