package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditAppliesDocument(t *testing.T) {
	tmp := t.TempDir()
	st := seedMirror(t, tmp)

	path := st.YAMLPath("PVT_1")
	text, err := os.ReadFile(path)
	require.NoError(t, err)

	edited := strings.Replace(string(text), "Status: alpha", "Status: beta", 1)
	require.NotEqual(t, string(text), edited)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	out, err := runCommand(t, "edit", "PVT_1", "--data-dir", tmp)
	require.NoError(t, err)
	assert.Contains(t, out, "updated PVT_1: 2 field(s), 1 item(s)")

	rec, err := st.Load("PVT_1")
	require.NoError(t, err)
	assert.Equal(t, "beta", rec.Items[0].Values["Status"])
}

func TestEditFromExternalFile(t *testing.T) {
	tmp := t.TempDir()
	st := seedMirror(t, tmp)

	text, err := os.ReadFile(st.YAMLPath("PVT_1"))
	require.NoError(t, err)
	edited := strings.Replace(string(text), `Points: "3"`, `Points: "8"`, 1)
	require.NotEqual(t, string(text), edited)

	external := filepath.Join(tmp, "draft.yaml")
	require.NoError(t, os.WriteFile(external, []byte(edited), 0o644))

	_, err = runCommand(t, "edit", "PVT_1", external, "--data-dir", tmp)
	require.NoError(t, err)

	rec, err := st.Load("PVT_1")
	require.NoError(t, err)
	assert.Equal(t, "8", rec.Items[0].Values["Points"])
}

func TestEditRejectsBadValue(t *testing.T) {
	tmp := t.TempDir()
	st := seedMirror(t, tmp)

	path := st.YAMLPath("PVT_1")
	text, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.Replace(string(text), "Status: alpha", "Status: gamma", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	_, err = runCommand(t, "edit", "PVT_1", "--data-dir", tmp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an allowed option")

	// The canonical document is untouched by the refused edit.
	rec, err := st.Load("PVT_1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", rec.Items[0].Values["Status"])
}

func TestEditMissingMirror(t *testing.T) {
	_, err := runCommand(t, "edit", "PVT_404", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}
