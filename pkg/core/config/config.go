// Package config loads pipeline settings from a YAML file with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the full pipeline configuration. Secrets (API keys, database
// URL) never live in the YAML file; they come from the environment only.
type Config struct {
	// PrimaryURLTemplate is the structured results-table page URL with a
	// %s slot for the URL-escaped company name.
	PrimaryURLTemplate string `yaml:"primary_url_template"`

	// MarketsURLs maps company names to their markets-page URL for the
	// second fallback step. Companies absent here skip that step.
	MarketsURLs map[string]string `yaml:"markets_urls"`

	// Provider selects the extraction model backend: "deepseek" or
	// "gemini".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	QuarterCount int `yaml:"quarter_count"`

	RetryAttempts      int     `yaml:"retry_attempts"`
	RetryBaseDelaySecs float64 `yaml:"retry_base_delay_seconds"`
	CompanyDelaySecs   float64 `yaml:"company_delay_seconds"`
	RenderWaitSecs     float64 `yaml:"render_wait_seconds"`
	PersistResults     bool    `yaml:"persist_results"`
}

// Load reads the YAML config at path and applies defaults and environment
// overrides. A missing file is not an error: defaults plus environment
// still make a usable config.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRIMARY_URL_TEMPLATE"); v != "" {
		c.PrimaryURLTemplate = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("QUARTER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QuarterCount = n
		}
	}
	if v := os.Getenv("PERSIST_RESULTS"); v != "" {
		c.PersistResults = v == "1" || v == "true"
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "deepseek"
	}
	if c.QuarterCount <= 0 {
		c.QuarterCount = 8
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelaySecs <= 0 {
		c.RetryBaseDelaySecs = 1.5
	}
	if c.CompanyDelaySecs <= 0 {
		c.CompanyDelaySecs = 2
	}
	if c.RenderWaitSecs <= 0 {
		c.RenderWaitSecs = 3
	}
}

// RetryBaseDelay returns the backoff base as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySecs * float64(time.Second))
}

// CompanyDelay returns the inter-company pause as a duration.
func (c *Config) CompanyDelay() time.Duration {
	return time.Duration(c.CompanyDelaySecs * float64(time.Second))
}

// RenderWait returns how long the headless browser waits for scripts to
// populate the page.
func (c *Config) RenderWait() time.Duration {
	return time.Duration(c.RenderWaitSecs * float64(time.Second))
}
