package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Data source kinds.
const (
	SourceDir     = "dir"
	SourceArchive = "archive"
	SourceS3      = "s3"
)

type Config struct {
	Data          Data          `yaml:"data"`
	Monitor       Monitor       `yaml:"monitor"`
	Summarization Summarization `yaml:"summarization"`
	Analytics     Analytics     `yaml:"analytics"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

// Data selects where monitoring runs are read from.
type Data struct {
	Source  string   `yaml:"source"`
	RunsDir string   `yaml:"runs_dir"`
	Workers int      `yaml:"workers"`
	S3      S3Source `yaml:"s3"`
}

type S3Source struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Monitor configures the run producer.
type Monitor struct {
	Feeds                   []Feed  `yaml:"feeds"`
	Topics                  []Topic `yaml:"topics"`
	ClassificationThreshold float64 `yaml:"classification_threshold"`
	MaxPerFeed              int     `yaml:"max_per_feed"`
	FetchContent            bool    `yaml:"fetch_content"`
	FetchTimeoutSeconds     int     `yaml:"fetch_timeout_seconds"`
	FilePrefix              string  `yaml:"file_prefix"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// Topic is one classification label with the keywords that signal it.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type Summarization struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Analytics struct {
	TrendingWindowDays int `yaml:"trending_window_days"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for topicwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "topicwatch")
}

// DataDir returns the XDG data directory for topicwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "topicwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/topicwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'topicwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Data: Data{
			Source:  SourceDir,
			Workers: 8,
			S3:      S3Source{Region: "us-east-1"},
		},
		Monitor: Monitor{
			ClassificationThreshold: 0.7,
			MaxPerFeed:              20,
			FetchContent:            true,
			FetchTimeoutSeconds:     15,
			FilePrefix:              "news",
		},
		Summarization: Summarization{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Analytics: Analytics{TrendingWindowDays: 7},
		Server:    Server{Port: 8000},
		Logging:   Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.Data.Source {
	case SourceDir, SourceArchive, SourceS3:
	default:
		return nil, fmt.Errorf("parsing config: unknown data.source %q", cfg.Data.Source)
	}
	if cfg.Monitor.ClassificationThreshold < 0 || cfg.Monitor.ClassificationThreshold > 1 {
		return nil, fmt.Errorf("parsing config: classification_threshold %v outside [0, 1]",
			cfg.Monitor.ClassificationThreshold)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetRunsDir returns the directory holding run files, defaulting to
// <data dir>/runs.
func (c *Config) GetRunsDir() string {
	if c.Data.RunsDir != "" {
		return c.Data.RunsDir
	}
	return filepath.Join(c.GetDataDir(), "runs")
}

// ArchivePath returns the SQLite run archive location.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.GetDataDir(), "topicwatch.db")
}

// TopicNames lists the configured topic labels in order.
func (c *Config) TopicNames() []string {
	names := make([]string, len(c.Monitor.Topics))
	for i, t := range c.Monitor.Topics {
		names[i] = t.Name
	}
	return names
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
