package cmd

import (
	"fmt"
	"os"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/store"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit <project-id> [yaml-file]",
	Short: "Validate and apply an edited YAML document",
	Long: `Apply hand edits to a mirrored project. With no file argument the
mirror's own YAML twin is re-read after you have edited it in place; pass
a file to apply a document kept elsewhere.

The document is validated against the project's field schema before
anything is written: unknown keys, malformed dates, non-numeric numbers
and single-select values outside the declared options are all refused,
leaving the mirror untouched. The previous version is backed up before
the new one lands.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := store.New(cfg.Storage.DataDir)
		if err != nil {
			return err
		}

		path := st.YAMLPath(args[0])
		if len(args) == 2 {
			path = args[1]
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %v", path, err)
		}

		orch := engine.NewOrchestrator(st, nil, nil)
		rec, err := orch.ApplyLocalEdit(args[0], text)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %d field(s), %d item(s)\n",
			args[0], len(rec.Fields), len(rec.Items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
