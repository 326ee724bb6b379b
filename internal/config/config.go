// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultCacheTTL is how long cached remote listings stay fresh.
const DefaultCacheTTL = time.Hour

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub  GitHubConfig
	Jira    JiraConfig
	Storage StorageConfig
	Log     LogConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token string
	// Domain is the GitHub Enterprise hostname, empty for github.com.
	Domain string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL      string
	Username string
	Token    string
}

// StorageConfig holds local data directory and cache settings.
type StorageConfig struct {
	// DataDir is the root for mirrored projects, cache.db and users.json.
	DataDir string
	// CacheTTL is the freshness window for cached listings.
	CacheTTL time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	// File enables a rotating log file when non-empty.
	File string
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Initialize Viper for environment variables
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("storage.datadir", "TETHER_DATA_DIR")
	v.BindEnv("storage.cachettl", "TETHER_CACHE_TTL")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")

	v.SetDefault("storage.cachettl", DefaultCacheTTL)
	v.SetDefault("log.level", "info")

	config := &Config{
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
		Jira: JiraConfig{
			URL:      v.GetString("jira.url"),
			Username: v.GetString("jira.username"),
			Token:    v.GetString("jira.token"),
		},
		Storage: StorageConfig{
			DataDir:  v.GetString("storage.datadir"),
			CacheTTL: v.GetDuration("storage.cachettl"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
	}

	if config.Storage.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory for data dir: %w", err)
		}
		config.Storage.DataDir = filepath.Join(home, ".tether")
	}
	if config.Storage.CacheTTL <= 0 {
		config.Storage.CacheTTL = DefaultCacheTTL
	}

	return config, nil
}

// ValidateGitHubConfig ensures GitHub credentials are available from the
// environment. Called only when no stored account supplies a token.
func ValidateGitHubConfig(config *Config) error {
	var missingVars []string

	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
