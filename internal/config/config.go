package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvGeminiAPIKey overrides extract.api_key when set.
const EnvGeminiAPIKey = "GEMINI_API_KEY"

// Config holds all application configuration.
type Config struct {
	Language   string           `yaml:"language"`
	Audio      AudioConfig      `yaml:"audio"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	Extract    ExtractConfig    `yaml:"extract"`
	Store      StoreConfig      `yaml:"store"`
	Session    SessionConfig    `yaml:"session"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Inject     InjectConfig     `yaml:"inject"`
	LogLevel   string           `yaml:"log_level"`
}

// AudioConfig holds audio capture and endpoint detection settings.
type AudioConfig struct {
	SampleRate       uint32        `yaml:"sample_rate"`
	Channels         uint32        `yaml:"channels"`
	Frame            time.Duration `yaml:"frame"`
	MaxDuration      time.Duration `yaml:"max_duration"`
	SilenceTimeout   time.Duration `yaml:"silence_timeout"`
	SilenceThreshold float64       `yaml:"silence_threshold"`
	DeviceTimeout    time.Duration `yaml:"device_timeout"`
}

// TranscribeConfig selects the speech-to-text backend.
type TranscribeConfig struct {
	Backend   string `yaml:"backend"` // "whisper" or "server"
	ModelPath string `yaml:"model_path"`
	ServerURL string `yaml:"server_url"`
	TempDir   string `yaml:"temp_dir"` // empty uses os.TempDir()
}

// NormalizeConfig holds the disfluency vocabulary.
type NormalizeConfig struct {
	Fillers []string `yaml:"fillers"`
}

// ExtractConfig lists the language-model backends in priority order.
type ExtractConfig struct {
	APIKey      string          `yaml:"api_key"`
	Temperature float32         `yaml:"temperature"`
	Backends    []BackendConfig `yaml:"backends"`
}

// BackendConfig describes one extraction backend.
type BackendConfig struct {
	Provider string `yaml:"provider"` // "gemini"
	Model    string `yaml:"model"`
}

// StoreConfig selects the record database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// SessionConfig controls signed session tokens. An empty secret disables
// token issuing.
type SessionConfig struct {
	Secret string        `yaml:"secret"` // hex, at least 32 bytes
	TTL    time.Duration `yaml:"ttl"`
}

// HotkeyConfig holds push-to-dictate hotkey settings.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
	Mode    string   `yaml:"mode"` // "hold" or "toggle"
}

// InjectConfig controls exporting a saved record to the active application.
type InjectConfig struct {
	Method string `yaml:"method"` // "none", "type" or "paste"
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ambudictate")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the directory holding models and the local database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "ambudictate")
}

// DefaultModelsDir returns the directory speech models are downloaded to.
func DefaultModelsDir() string {
	return filepath.Join(DefaultDataDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Language: "es",
		Audio: AudioConfig{
			SampleRate:       16000,
			Channels:         1,
			Frame:            200 * time.Millisecond,
			MaxDuration:      30 * time.Second,
			SilenceTimeout:   3 * time.Second,
			SilenceThreshold: 0.005,
			DeviceTimeout:    2 * time.Second,
		},
		Transcribe: TranscribeConfig{
			Backend:   "whisper",
			ModelPath: filepath.Join(DefaultModelsDir(), "ggml-base.bin"),
			ServerURL: "http://127.0.0.1:8080",
		},
		Normalize: NormalizeConfig{
			Fillers: []string{"eh", "este", "pues", "o sea", "mmm", "ajá", "em", "ah"},
		},
		Extract: ExtractConfig{
			Temperature: 0.3,
			Backends: []BackendConfig{
				{Provider: "gemini", Model: "gemini-2.5-flash"},
				{Provider: "gemini", Model: "gemini-2.5-flash-lite"},
			},
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(DefaultDataDir(), "historias.db"),
		},
		Session: SessionConfig{
			TTL: 12 * time.Hour,
		},
		Hotkey: HotkeyConfig{
			Enabled: true,
			Keys:    []string{"ctrl", "shift", "d"},
			Mode:    "toggle",
		},
		Inject: InjectConfig{
			Method: "none",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults, a leading ~ in path fields is expanded and GEMINI_API_KEY
// overrides extract.api_key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.ModelPath = expandTilde(cfg.Transcribe.ModelPath)
	cfg.Transcribe.TempDir = expandTilde(cfg.Transcribe.TempDir)
	if cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = expandTilde(cfg.Store.DSN)
	}
	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		c.Extract.APIKey = key
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("language must not be empty")
	}

	if err := c.Audio.validate(); err != nil {
		return err
	}

	switch c.Transcribe.Backend {
	case "whisper":
		if c.Transcribe.ModelPath == "" {
			return fmt.Errorf("transcribe.model_path must not be empty for the whisper backend")
		}
	case "server":
		if c.Transcribe.ServerURL == "" {
			return fmt.Errorf("transcribe.server_url must not be empty for the server backend")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"whisper\" or \"server\", got %q", c.Transcribe.Backend)
	}

	if c.Extract.Temperature < 0 || c.Extract.Temperature > 2 {
		return fmt.Errorf("extract.temperature must be between 0 and 2, got %v", c.Extract.Temperature)
	}
	if len(c.Extract.Backends) == 0 {
		return fmt.Errorf("extract.backends must not be empty")
	}
	for i, b := range c.Extract.Backends {
		if b.Provider != "gemini" {
			return fmt.Errorf("extract.backends[%d].provider must be \"gemini\", got %q", i, b.Provider)
		}
		if b.Model == "" {
			return fmt.Errorf("extract.backends[%d].model must not be empty", i)
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn must not be empty")
	}

	if c.Session.Secret != "" {
		secret, err := hex.DecodeString(c.Session.Secret)
		if err != nil {
			return fmt.Errorf("session.secret must be hex: %w", err)
		}
		if len(secret) < 32 {
			return fmt.Errorf("session.secret must be at least 32 bytes, got %d", len(secret))
		}
		if c.Session.TTL <= 0 {
			return fmt.Errorf("session.ttl must be > 0")
		}
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.Keys) == 0 {
			return fmt.Errorf("hotkey.keys must not be empty")
		}
		switch c.Hotkey.Mode {
		case "hold", "toggle":
		default:
			return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
		}
	}

	switch c.Inject.Method {
	case "none", "type", "paste":
	default:
		return fmt.Errorf("inject.method must be \"none\", \"type\" or \"paste\", got %q", c.Inject.Method)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

func (a AudioConfig) validate() error {
	if a.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if a.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}
	if a.Frame <= 0 {
		return fmt.Errorf("audio.frame must be > 0")
	}
	if a.MaxDuration < a.Frame {
		return fmt.Errorf("audio.max_duration must be at least one frame (%s), got %s", a.Frame, a.MaxDuration)
	}
	if a.SilenceTimeout <= 0 {
		return fmt.Errorf("audio.silence_timeout must be > 0")
	}
	if a.SilenceThreshold < 0 {
		return fmt.Errorf("audio.silence_threshold must be >= 0")
	}
	return nil
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# ambudictate configuration
# Every field is optional. Missing fields use the defaults below.
# The Gemini API key can also be supplied with the GEMINI_API_KEY variable.
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the written path, or "" without error when a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o600); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
