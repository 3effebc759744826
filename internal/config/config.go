// Package config provides centralized configuration management for the
// application. All settings come from environment variables; nothing in
// the engine reads ambient state directly.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AuthMode selects how requests to the tracker are authenticated.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

// defaultEpicLinkField is the Jira custom field that carries the epic
// link on classic (company-managed) projects.
const defaultEpicLinkField = "customfield_10014"

// Config holds all configuration parameters for the application.
type Config struct {
	Jira   JiraConfig
	GitHub GitHubConfig
}

// JiraConfig holds tracker-specific configuration.
type JiraConfig struct {
	URL      string
	Username string
	Token    string

	// AuthMode is "basic" (username + API token) or "bearer"
	// (OAuth2/PAT bearer header). Defaults to basic.
	AuthMode string

	// Project is the default project key for queries and creation.
	Project string

	// EpicLinkField is the custom field ID used for epic links.
	EpicLinkField string
}

// GitHubConfig holds GitHub-specific configuration for the draft
// import flow.
type GitHubConfig struct {
	Token  string
	Domain string
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("jira.auth", "JIRA_AUTH")
	v.BindEnv("jira.project", "JIRA_PROJECT")
	v.BindEnv("jira.epic_field", "JIRA_EPIC_FIELD")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")

	v.SetDefault("jira.auth", AuthBasic)
	v.SetDefault("jira.epic_field", defaultEpicLinkField)
	v.SetDefault("github.domain", "github.com")

	cfg := &Config{
		Jira: JiraConfig{
			URL:           v.GetString("jira.url"),
			Username:      v.GetString("jira.username"),
			Token:         v.GetString("jira.token"),
			AuthMode:      strings.ToLower(v.GetString("jira.auth")),
			Project:       v.GetString("jira.project"),
			EpicLinkField: v.GetString("jira.epic_field"),
		},
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
	}

	return cfg, nil
}

// ValidateJira ensures the tracker configuration is complete enough to
// build an authenticated client.
func (c *Config) ValidateJira() error {
	var missing []string

	if c.Jira.URL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if c.Jira.Token == "" {
		missing = append(missing, "JIRA_TOKEN")
	}
	if c.Jira.AuthMode == AuthBasic && c.Jira.Username == "" {
		missing = append(missing, "JIRA_USERNAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	if c.Jira.AuthMode != AuthBasic && c.Jira.AuthMode != AuthBearer {
		return fmt.Errorf("invalid JIRA_AUTH value %q: must be %q or %q",
			c.Jira.AuthMode, AuthBasic, AuthBearer)
	}

	return nil
}

// ValidateGitHub ensures the GitHub import configuration is complete.
func (c *Config) ValidateGitHub() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("missing required environment variables: [GITHUB_TOKEN]")
	}
	return nil
}
