package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ProfileURLEnv names the environment variable holding the profile URL
const ProfileURLEnv = "PROFILE_URL"

// ErrMissingProfileURL is returned when neither the environment nor the arguments name a profile
var ErrMissingProfileURL = errors.New("no profile URL provided")

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment are not overwritten.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) error {
	// General settings
	if v := os.Getenv("OUTPUT_PATH"); v != "" {
		cfg.General.OutputPath = v
	}

	// Browser settings
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		cfg.Browser.Headless = v == "true" || v == "1"
	}

	if v := os.Getenv("BROWSER_USER_AGENT"); v != "" {
		cfg.Browser.UserAgent = v
	}

	if v := os.Getenv("BROWSER_EXEC_PATH"); v != "" {
		cfg.Browser.ExecPath = v
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Elasticsearch
	if v := os.Getenv("ES_ENABLED"); v != "" {
		cfg.Elasticsearch.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("ES_ENDPOINT"); v != "" {
		cfg.Elasticsearch.Endpoint = v
	}

	if v := os.Getenv("ES_INDEX_PATTERN"); v != "" {
		cfg.Elasticsearch.IndexPattern = v
	}

	if v := os.Getenv("ES_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}

	if v := os.Getenv("ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}

	if v := os.Getenv("ES_API_KEY"); v != "" {
		cfg.Elasticsearch.APIKey = v
	}

	if v := os.Getenv("ES_MAX_RETRIES"); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid ES_MAX_RETRIES: %q", v)
		}
		cfg.Elasticsearch.MaxRetries = retries
	}

	// Prometheus
	if v := os.Getenv("PROM_ENABLED"); v != "" {
		cfg.Prometheus.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("PROM_PUSHGATEWAY_URL"); v != "" {
		cfg.Prometheus.PushgatewayURL = v
	}

	if v := os.Getenv("PROM_JOB"); v != "" {
		cfg.Prometheus.Job = v
	}

	// SNMP
	if v := os.Getenv("SNMP_ENABLED"); v != "" {
		cfg.SNMP.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("SNMP_TRAP_TARGETS"); v != "" {
		cfg.SNMP.TrapTargets = splitList(v)
	}

	if v := os.Getenv("SNMP_COMMUNITY"); v != "" {
		cfg.SNMP.Community = v
	}

	if v := os.Getenv("SNMP_ENTERPRISE_OID"); v != "" {
		cfg.SNMP.EnterpriseOID = v
	}

	return cfg.Validate()
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	if c.General.OutputPath == "" {
		return errors.New("output path must not be empty")
	}
	if c.Elasticsearch.Enabled && c.Elasticsearch.Endpoint == "" {
		return errors.New("elasticsearch is enabled but ES_ENDPOINT is not set")
	}
	if c.Prometheus.Enabled && c.Prometheus.PushgatewayURL == "" {
		return errors.New("prometheus is enabled but PROM_PUSHGATEWAY_URL is not set")
	}
	if c.SNMP.Enabled && len(c.SNMP.TrapTargets) == 0 {
		return errors.New("snmp is enabled but SNMP_TRAP_TARGETS is not set")
	}
	return nil
}

// ResolveProfileURL picks the profile URL from the environment or the first argument.
// The environment variable wins when both are present.
func ResolveProfileURL(args []string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(ProfileURLEnv)); v != "" {
		return v, nil
	}
	if len(args) > 0 {
		if v := strings.TrimSpace(args[0]); v != "" {
			return v, nil
		}
	}
	return "", ErrMissingProfileURL
}

// splitList parses a comma-separated list, dropping empty elements
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
