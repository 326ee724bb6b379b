package cmd

import (
	"fmt"

	"github.com/danielolaszy/tether/internal/store"
	"github.com/spf13/cobra"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage mirror backups",
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune [project-id]",
	Short: "Delete old mirror backups",
	Long: `Delete backups beyond the newest --keep for one mirrored project, or for
every mirrored project when no id is given. Backups are only ever removed
here; no other command prunes them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, err := cmd.Flags().GetInt("keep")
		if err != nil {
			return err
		}
		if keep < 0 {
			return fmt.Errorf("--keep must be zero or more")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.New(cfg.Storage.DataDir)
		if err != nil {
			return err
		}

		ids := args
		if len(ids) == 0 {
			ids, err = st.List()
			if err != nil {
				return err
			}
		}

		total := 0
		for _, id := range ids {
			n, err := st.PruneBackups(id, keep)
			if err != nil {
				return fmt.Errorf("failed to prune backups for %s: %v", id, err)
			}
			total += n
		}

		fmt.Fprintf(cmd.OutOrStdout(), "removed %d backup(s)\n", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.AddCommand(backupsPruneCmd)

	backupsPruneCmd.Flags().Int("keep", 5, "how many recent backups to keep per project")
}
