// Package cmd provides the command-line interface for the tether CLI tool.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielolaszy/tether/internal/config"
	"github.com/danielolaszy/tether/internal/credentials"
	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/github"
	"github.com/danielolaszy/tether/internal/jira"
	"github.com/danielolaszy/tether/pkg/models"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Tether mirrors hosted project boards into editable local files",
	Long: `Tether keeps a local mirror of hosted project boards as a JSON document
plus a human-editable YAML twin. Edit the YAML offline, then sync: tether
compares the last synced snapshot with both sides, applies non-conflicting
changes in both directions and asks before touching anything both sides
changed.

Supported remotes are GitHub Projects (default) and Jira boards.`,
	SilenceUsage: true,
}

// Execute runs the root command with the given context. Cancellation of the
// context aborts fetch and resolution phases of a running sync.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "directory for mirrors, cache and accounts (default ~/.tether)")
}

// loadConfig reads the environment configuration, honoring the --data-dir
// flag over TETHER_DATA_DIR.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	dir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dir != "" {
		cfg.Storage.DataDir = dir
	}
	return cfg, nil
}

// githubSession builds the GitHub adapter using the active stored account's
// token, falling back to GITHUB_TOKEN, plus the cache identity listings
// fetched with it belong to.
func githubSession(cfg *config.Config) (*github.Client, models.Identity, error) {
	creds := credentials.NewManager(cfg.Storage.DataDir)

	token, err := creds.ResolveToken(cfg.GitHub.Token)
	if errors.Is(err, credentials.ErrNoneConfigured) {
		return nil, models.Identity{}, fmt.Errorf("no github account configured and GITHUB_TOKEN is not set (add one with 'tether user add')")
	}
	if err != nil {
		return nil, models.Identity{}, err
	}

	client, err := github.NewClient(token, cfg.GitHub.Domain)
	if err != nil {
		return nil, models.Identity{}, fmt.Errorf("failed to initialize github client: %v", err)
	}

	identity := models.Identity{
		Username:    client.Username(),
		TokenDigest: credentials.TokenDigest(token),
	}
	return client, identity, nil
}

// jiraSession builds the Jira adapter from JIRA_URL, JIRA_USERNAME and
// JIRA_TOKEN plus the matching cache identity.
func jiraSession(cfg *config.Config) (*jira.Client, models.Identity, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, models.Identity{}, err
	}

	client, err := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.Token)
	if err != nil {
		return nil, models.Identity{}, fmt.Errorf("failed to initialize jira client: %v", err)
	}

	identity := models.Identity{
		Username:    cfg.Jira.Username,
		TokenDigest: credentials.TokenDigest(cfg.Jira.Token),
	}
	return client, identity, nil
}

// remoteFor builds the sync adapter named by a --remote flag value.
func remoteFor(cfg *config.Config, backend string) (engine.Remote, error) {
	switch backend {
	case "github":
		client, _, err := githubSession(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "jira":
		client, _, err := jiraSession(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown remote %q (expected github or jira)", backend)
	}
}

// staticIdentity adapts a fixed identity to the listing service's
// credential provider contract.
type staticIdentity models.Identity

func (s staticIdentity) CurrentIdentity() (models.Identity, error) {
	return models.Identity(s), nil
}
