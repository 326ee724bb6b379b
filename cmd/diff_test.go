package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/internal/store"
)

func TestDiffCleanMirror(t *testing.T) {
	tmp := t.TempDir()
	seedMirror(t, tmp)

	out, err := runCommand(t, "diff", "PVT_1", "--data-dir", tmp)
	require.NoError(t, err)
	assert.Contains(t, out, "no local changes since the last sync")
}

func TestDiffShowsLocalChanges(t *testing.T) {
	tmp := t.TempDir()
	st := seedMirror(t, tmp)

	rec := mirrorRecord()
	rec.Items[0].Values["Status"] = "beta"
	require.NoError(t, st.Save("PVT_1", rec))

	out, err := runCommand(t, "diff", "PVT_1", "--data-dir", tmp)
	require.NoError(t, err)
	assert.Contains(t, out, "1 local change(s) since the last sync:")
	assert.Contains(t, out, `item PVTI_1 field "Status": "alpha" -> "beta"`)
}

func TestDiffNeverSynced(t *testing.T) {
	tmp := t.TempDir()
	st, err := store.New(tmp)
	require.NoError(t, err)
	require.NoError(t, st.Save("PVT_1", mirrorRecord()))

	_, err = runCommand(t, "diff", "PVT_1", "--data-dir", tmp)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNeverSynced)
}

func TestDiffUnknownRemote(t *testing.T) {
	tmp := t.TempDir()
	seedMirror(t, tmp)

	_, err := runCommand(t, "diff", "PVT_1", "--remote", "asana", "--data-dir", tmp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown remote "asana"`)
}
