package cmd

import (
	"fmt"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/prompt"
	"github.com/danielolaszy/tether/internal/store"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [project-id]",
	Short: "Reconcile local edits with the remote",
	Long: `Reconcile a mirrored project with its remote. Tether compares the last
synced snapshot against both the local mirror and the current remote
state: changes only one side made are applied to the other, matching
changes collapse, and anything both sides changed differently is put to
you as a conflict. Once everything is decided, local files and the remote
are updated and a new snapshot is taken.

Manual conflicts can also be settled by rule with --prefer local or
--prefer remote; field type conflicts always need an interactive answer.
--dry-run stops after the comparison and prints what a real run would do.

Examples:
  tether sync PVT_kwDOABCD12345
  tether sync --all --prefer local
  tether sync ENG --remote jira --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			return err
		}
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}
		prefer, err := cmd.Flags().GetString("prefer")
		if err != nil {
			return err
		}
		backend, err := cmd.Flags().GetString("remote")
		if err != nil {
			return err
		}

		if all == (len(args) == 1) {
			return fmt.Errorf("name one project id or pass --all")
		}
		switch prefer {
		case "", "local", "remote":
		default:
			return fmt.Errorf("invalid --prefer %q (expected local or remote)", prefer)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.New(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		remote, err := remoteFor(cfg, backend)
		if err != nil {
			return err
		}

		orch := engine.NewOrchestrator(st, remote, prompt.NewTerminal(cmd.OutOrStdout()))
		opts := engine.SyncOptions{DryRun: dryRun, Prefer: engine.Choice(prefer)}
		out := cmd.OutOrStdout()

		if !all {
			res, err := orch.Sync(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, prompt.RenderResult(res))
			return nil
		}

		outcomes, err := orch.SyncAll(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			fmt.Fprintln(out, "no mirrored projects to sync")
			return nil
		}

		failed := 0
		for _, oc := range outcomes {
			if oc.Err != nil {
				// The presenter already showed the failure.
				failed++
				continue
			}
			fmt.Fprintln(out, prompt.RenderResult(oc.Result))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d project(s) failed to sync", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("all", false, "sync every mirrored project")
	syncCmd.Flags().Bool("dry-run", false, "compare and report without changing anything")
	syncCmd.Flags().String("prefer", "", "resolve conflicts by rule: local or remote")
	syncCmd.Flags().String("remote", "github", "remote to sync with: github or jira")
}
