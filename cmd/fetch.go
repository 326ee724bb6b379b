package cmd

import (
	"fmt"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/prompt"
	"github.com/danielolaszy/tether/internal/store"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <project-id>",
	Short: "Mirror a remote project into local files",
	Long: `Fetch a project's fields and items from the remote and write the local
mirror: a canonical JSON document, an editable YAML twin and the snapshot
later syncs compare against. An existing mirror is backed up first.

Example:
  tether fetch PVT_kwDOABCD12345
  tether fetch ENG --remote jira`,
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
		remote, err := remoteFor(cfg, backend)
		if err != nil {
			return err
		}

		orch := engine.NewOrchestrator(st, remote, prompt.NewTerminal(cmd.OutOrStdout()))
		rec, err := orch.Mirror(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mirrored %s (%s): %d field(s), %d item(s)\n",
			args[0], rec.Name, len(rec.Fields), len(rec.Items))
		fmt.Fprintf(out, "edit %s, then run 'tether sync %s'\n", st.YAMLPath(args[0]), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().String("remote", "github", "remote to fetch from: github or jira")
}
