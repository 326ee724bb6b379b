package cmd

import (
	"github.com/danielolaszy/tether/pkg/models"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Browse remote projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects on the remote",
	Long: `List the projects the configured account can see: GitHub Projects for
the active account, or Jira projects with --remote jira. Results are
served from the local cache while fresh; pass --refresh to query the
remote again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cmd.Flags().GetString("remote")
		if err != nil {
			return err
		}
		return runListing(cmd, backend, models.KindProject)
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)

	projectsListCmd.Flags().Bool("refresh", false, "bypass the cache and fetch a fresh listing")
	projectsListCmd.Flags().String("remote", "github", "remote to list from: github or jira")
}
