package cmd

import (
	"fmt"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/store"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <project-id>",
	Short: "Show changes since the last sync",
	Long: `Show what changed since the last sync. By default the local mirror is
compared against the snapshot base without touching the network. With
--remote github or --remote jira the remote state is fetched and compared
against the same base instead. Nothing is written either way.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		backend, err := cmd.Flags().GetString("remote")
		if err != nil {
			return err
		}

		st, err := store.New(cfg.Storage.DataDir)
		if err != nil {
			return err
		}

		var changes engine.ChangeSet
		side := "local"
		if backend == "" {
			orch := engine.NewOrchestrator(st, nil, nil)
			changes, err = orch.DiffLocal(args[0])
		} else {
			side = "remote"
			remote, rerr := remoteFor(cfg, backend)
			if rerr != nil {
				return rerr
			}
			orch := engine.NewOrchestrator(st, remote, nil)
			changes, err = orch.DiffRemote(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if changes.Empty() {
			fmt.Fprintf(out, "no %s changes since the last sync\n", side)
			return nil
		}
		fmt.Fprintf(out, "%d %s change(s) since the last sync:\n", len(changes.Edits), side)
		for _, e := range changes.Edits {
			fmt.Fprintf(out, "  %s\n", e.Describe())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().String("remote", "", "compare a fresh fetch from this remote (github or jira) instead of the local mirror")
}
