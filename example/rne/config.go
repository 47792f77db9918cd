package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/tbxark/rneagent/retry"
)

type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`

	// Empty paths select the bundled defaults.
	FlowPath    string `json:"flow_path"`
	DatasetPath string `json:"dataset_path"`
	CatalogPath string `json:"catalog_path"`
	PromptsPath string `json:"prompts_path"`
	SourcesDir  string `json:"sources_dir"`

	HTTPAddr  string `json:"http_addr"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// Timeout and RetryDelay are Go durations, e.g. "20s".
	Timeout     string `json:"timeout"`
	RetryDelay  string `json:"retry_delay"`
	MaxAttempts int    `json:"max_attempts"`
}

func defaultConfig() *Config {
	return &Config{
		Model:     "gpt-4o-mini",
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// loadConfig reads the optional JSON file, then .env, then environment overrides.
func loadConfig(path string) (*Config, error) {
	conf := defaultConfig()
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := sonic.Unmarshal(file, conf); err != nil {
				return nil, fmt.Errorf("decode config: %w", err)
			}
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	conf.APIKey = getEnv("OPENAI_API_KEY", conf.APIKey)
	conf.BaseURL = getEnv("OPENAI_BASE_URL", conf.BaseURL)
	conf.Model = getEnv("OPENAI_MODEL", conf.Model)
	conf.HTTPAddr = getEnv("RNEAGENT_HTTP_ADDR", conf.HTTPAddr)
	conf.LogLevel = getEnv("RNEAGENT_LOG_LEVEL", conf.LogLevel)

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return conf, nil
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr cannot be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// HasModel reports whether a chat model can be built. Without one only the local keyword
// interpreter runs.
func (c *Config) HasModel() bool {
	return c.APIKey != ""
}

// Policy is the interactive retry policy, defaults from retry.Interactive.
func (c *Config) Policy() (retry.Policy, error) {
	p := retry.Interactive
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	var err error
	if p.Timeout, err = parseDuration("timeout", c.Timeout, p.Timeout); err != nil {
		return p, err
	}
	if p.Delay, err = parseDuration("retry_delay", c.RetryDelay, p.Delay); err != nil {
		return p, err
	}
	return p, nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a positive duration: %q", name, value)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
