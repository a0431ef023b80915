package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/mcuadros/go-defaults"
)

// Config represents the main configuration for sdr.
type Config struct {
	URL           string `toml:"url" validate:"required,url"`
	CocinaVersion string `toml:"cocina_version,omitempty"`
	Email         string `toml:"email,omitempty" validate:"omitempty,email"`
	LogDir        string `toml:"log_dir"`
	TokenPath     string `toml:"token_path" validate:"required"`

	HTTP     HTTPConfig    `toml:"http"`
	Upload   UploadConfig  `toml:"upload"`
	Polling  PollingConfig `toml:"polling"`
	History  HistoryConfig `toml:"history"`
	Receipts ReceiptConfig `toml:"receipts"`
}

type HTTPConfig struct {
	Timeout time.Duration `toml:"timeout" default:"60s" validate:"gt=0"`
}

// UploadConfig controls how files are uploaded and grouped into file sets.
type UploadConfig struct {
	Workers     int      `toml:"workers" default:"1" validate:"min=1,max=32"`
	Grouping    string   `toml:"grouping" default:"single" validate:"oneof=single matching_prefix"`
	FileSetType string   `toml:"file_set_type" default:"file" validate:"oneof=file image"`
	Ignore      []string `toml:"ignore,omitempty"`
}

// PollingConfig controls how long and how often job results are polled.
type PollingConfig struct {
	Interval    time.Duration `toml:"interval" default:"3s" validate:"gt=0"`
	Backoff     float64       `toml:"backoff" default:"2.0" validate:"gte=1"`
	MaxInterval time.Duration `toml:"max_interval" default:"60s" validate:"gtefield=Interval"`
	Timeout     time.Duration `toml:"timeout" default:"180s" validate:"gt=0"`
}

// HistoryConfig represents configuration for the local operation history.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type" default:"sqlite" validate:"oneof=sqlite memory none"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"`
}

// ReceiptConfig represents configuration for the deposit receipt store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ReceiptConfig struct {
	Type string `toml:"type" default:"none" validate:"oneof=none memory filesystem s3"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty" validate:"required_if=Type filesystem"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// NewConfig creates a Config for the API at url that keeps its files in
// baseDir. Unset settings take their defaults.
func NewConfig(url, baseDir string) *Config {
	paths := PathsUnder(baseDir)
	cfg := &Config{
		URL:       url,
		LogDir:    paths.LogDir,
		TokenPath: paths.TokenFile,
		History:   HistoryConfig{DataDir: paths.HistoryDir},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued settings from their default tags.
func ApplyDefaults(cfg *Config) {
	defaults.SetDefaults(cfg)
}

// Validate checks every setting against its constraints.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path as written,
// without defaults or validation.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config file at path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold S3 credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never
// overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
