package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultOutputPath is where the snapshot is written unless overridden
const DefaultOutputPath = "data/citation.json"

// DefaultUserAgent is the identification string sent by the browser
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117 Safari/537.36"

// Config represents the complete application configuration
type Config struct {
	General       GeneralConfig       `yaml:"general"`
	Browser       BrowserConfig       `yaml:"browser"`
	Logging       LoggingConfig       `yaml:"logging"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	SNMP          SNMPConfig          `yaml:"snmp"`
	Prometheus    PrometheusConfig    `yaml:"prometheus"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	OutputPath string `yaml:"output_path"`
}

// BrowserConfig contains browser-specific settings
type BrowserConfig struct {
	Headless      bool   `yaml:"headless"`
	UserAgent     string `yaml:"user_agent"`
	ExecPath      string `yaml:"exec_path"`
	WindowWidth   int    `yaml:"window_width"`
	WindowHeight  int    `yaml:"window_height"`
	DisableImages bool   `yaml:"disable_images"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ElasticsearchConfig contains Elasticsearch output settings
type ElasticsearchConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	IndexPattern  string `yaml:"index_pattern"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	APIKey        string `yaml:"api_key"`
	MaxRetries    int    `yaml:"max_retries"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify"`
}

// SNMPConfig contains SNMP trap settings
type SNMPConfig struct {
	Enabled       bool     `yaml:"enabled"`
	TrapTargets   []string `yaml:"trap_targets"`
	Community     string   `yaml:"community"`
	EnterpriseOID string   `yaml:"enterprise_oid"`
}

// PrometheusConfig contains Pushgateway settings
type PrometheusConfig struct {
	Enabled        bool   `yaml:"enabled"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// Load loads configuration from a YAML file on top of the defaults
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			OutputPath: DefaultOutputPath,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    DefaultUserAgent,
			WindowWidth:  1280,
			WindowHeight: 800,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:      false,
			IndexPattern: "scholar-citations",
			MaxRetries:   3,
		},
		SNMP: SNMPConfig{
			Enabled:       false,
			Community:     "public",
			EnterpriseOID: ".1.3.6.1.4.1.99999",
		},
		Prometheus: PrometheusConfig{
			Enabled: false,
			Job:     "scholar_citations",
		},
	}
}
