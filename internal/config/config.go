package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Vision backends
const (
	BackendOpenAI      = "openai"
	BackendGemini      = "gemini"
	BackendOllama      = "ollama"
	BackendCloudVision = "cloudvision"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Document DocumentConfig `yaml:"document"`
	Vision   VisionConfig   `yaml:"vision"`
	Logo     LogoConfig     `yaml:"logo"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DocumentConfig holds the document-extraction provider settings.
// The provider is disabled when APIKey is empty.
type DocumentConfig struct {
	APIKey   string        `yaml:"api_key"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// VisionConfig holds the vision-language provider settings
type VisionConfig struct {
	Backend         string        `yaml:"backend"` // openai | gemini | ollama | cloudvision
	Model           string        `yaml:"model"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiAPIKey    string        `yaml:"gemini_api_key"`
	OllamaURL       string        `yaml:"ollama_url"`
	CredentialsFile string        `yaml:"credentials_file"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	MaxImageDim     int           `yaml:"max_image_dim"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LogoConfig holds the logo detector thresholds
type LogoConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold int     `yaml:"threshold"`
	MinArea   float64 `yaml:"min_area"`
	MaxArea   float64 `yaml:"max_area"`
	MinAspect float64 `yaml:"min_aspect"`
	MaxAspect float64 `yaml:"max_aspect"`
	CannyLow  float64 `yaml:"canny_low"`
	CannyHigh float64 `yaml:"canny_high"`
}

// PipelineConfig controls the boundary stages
type PipelineConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
	Preprocess  bool  `yaml:"preprocess"`
	PDFText     bool  `yaml:"pdf_text"`
	Source      bool  `yaml:"source_metadata"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Document: DocumentConfig{
			Timeout: 60 * time.Second,
		},
		Vision: VisionConfig{
			Backend:     BackendOpenAI,
			Model:       "gpt-4o",
			Temperature: 0,
			MaxTokens:   4096,
			MaxImageDim: 2048,
			Timeout:     5 * time.Minute,
		},
		Logo: LogoConfig{
			Enabled:   true,
			Threshold: 200,
			MinArea:   1000,
			MaxArea:   50000,
			MinAspect: 0.5,
			MaxAspect: 2.0,
			CannyLow:  50,
			CannyHigh: 150,
		},
		Pipeline: PipelineConfig{
			MaxFileSize: 10 << 20,
			PDFText:     true,
			Source:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
// JSON files are accepted too.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load builds the effective configuration: defaults, then the file at path
// when it exists, then .env and the process environment.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		loaded, err := LoadFromFile(path)
		switch {
		case err == nil:
			config = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides settings from environment variables looked up with lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("ACROBAT_API_KEY", &c.Document.APIKey)
	str("ACROBAT_ENDPOINT", &c.Document.Endpoint)
	str("OPENAI_API_KEY", &c.Vision.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &c.Vision.OpenAIBaseURL)
	str("GEMINI_API_KEY", &c.Vision.GeminiAPIKey)
	str("OLLAMA_URL", &c.Vision.OllamaURL)
	str("GOOGLE_APPLICATION_CREDENTIALS", &c.Vision.CredentialsFile)
	str("MEISHI_VISION_BACKEND", &c.Vision.Backend)
	str("MEISHI_VISION_MODEL", &c.Vision.Model)
	str("MEISHI_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("MAX_FILE_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_FILE_SIZE: %w", err)
		}
		c.Pipeline.MaxFileSize = n
	}
	c.Vision.Backend = strings.ToLower(c.Vision.Backend)
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Vision.Backend {
	case BackendOpenAI, BackendGemini, BackendOllama, BackendCloudVision:
	default:
		return fmt.Errorf("vision.backend must be one of openai, gemini, ollama, cloudvision; got %q", c.Vision.Backend)
	}

	if c.Pipeline.MaxFileSize <= 0 {
		return fmt.Errorf("pipeline.max_file_size must be positive")
	}

	if c.Vision.Temperature < 0 || c.Vision.Temperature > 2 {
		return fmt.Errorf("vision.temperature must be between 0 and 2")
	}

	if c.Logo.Threshold < 0 || c.Logo.Threshold > 255 {
		return fmt.Errorf("logo.threshold must be between 0 and 255")
	}

	if c.Logo.MinArea < 0 || c.Logo.MaxArea <= c.Logo.MinArea {
		return fmt.Errorf("logo.max_area must be greater than logo.min_area")
	}

	if c.Logo.MinAspect < 0 || c.Logo.MaxAspect <= c.Logo.MinAspect {
		return fmt.Errorf("logo.max_aspect must be greater than logo.min_aspect")
	}

	if c.Logo.CannyHigh < c.Logo.CannyLow {
		return fmt.Errorf("logo.canny_high must not be below logo.canny_low")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// NewLogger builds the structured logger described by the log section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "meishi-analyzer", "config.yaml")
}
