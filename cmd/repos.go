package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/danielolaszy/tether/internal/cache"
	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/prompt"
	"github.com/danielolaszy/tether/pkg/models"
	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Browse GitHub repositories",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories visible to the active account",
	Long: `List the repositories the active account can see. Results are served
from the local cache while fresh; pass --refresh to query the remote
again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, "github", models.KindRepository)
	},
}

func init() {
	rootCmd.AddCommand(reposCmd)
	reposCmd.AddCommand(reposListCmd)

	reposListCmd.Flags().Bool("refresh", false, "bypass the cache and fetch a fresh listing")
}

// runListing serves one cached listing: repositories or projects, from the
// named backend, through the freshness cache.
func runListing(cmd *cobra.Command, backend string, kind models.SummaryKind) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	refresh, err := cmd.Flags().GetBool("refresh")
	if err != nil {
		return err
	}

	var source engine.ListingSource
	var identity models.Identity
	switch backend {
	case "github":
		source, identity, err = githubSession(cfg)
	case "jira":
		source, identity, err = jiraSession(cfg)
	default:
		err = fmt.Errorf("unknown remote %q (expected github or jira)", backend)
	}
	if err != nil {
		return err
	}

	listings, err := cache.New(filepath.Join(cfg.Storage.DataDir, "cache.db"), cfg.Storage.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to open listing cache: %v", err)
	}
	defer listings.Close()

	svc := engine.NewListingService(listings, source, staticIdentity(identity))

	var rows []models.Summary
	if kind == models.KindRepository {
		rows, err = svc.Repositories(cmd.Context(), refresh)
	} else {
		rows, err = svc.Projects(cmd.Context(), refresh)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), prompt.RenderSummaries(rows))
	return nil
}
