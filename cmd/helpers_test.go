package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/tether/internal/store"
	"github.com/danielolaszy/tether/pkg/models"
)

// runCommand executes the CLI in-process and returns everything written to
// the combined output stream.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags clears parsed flag values; cobra keeps them on the shared
// command tree between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func mirrorRecord() *models.ProjectRecord {
	return &models.ProjectRecord{
		ID:    "PVT_1",
		Name:  "Roadmap",
		State: "open",
		Fields: []models.Field{
			{Name: "Status", Type: models.FieldTypeSingleSelect, Options: []string{"alpha", "beta"}},
			{Name: "Points", Type: models.FieldTypeNumber},
		},
		Items: []models.Item{
			{ID: "PVTI_1", Values: map[string]string{"Status": "alpha", "Points": "3"}},
		},
	}
}

// seedMirror writes a mirrored project plus its snapshot base into dataDir,
// as a completed first sync would.
func seedMirror(t *testing.T, dataDir string) *store.Store {
	t.Helper()

	st, err := store.New(dataDir)
	require.NoError(t, err)
	require.NoError(t, st.Save("PVT_1", mirrorRecord()))

	snap, err := store.NewSnapshot(mirrorRecord())
	require.NoError(t, err)
	require.NoError(t, st.SaveSnapshot("PVT_1", &snap))
	return st
}
