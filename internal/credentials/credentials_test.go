package credentials

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyManager(t *testing.T) {
	m := NewManager(t.TempDir())

	accounts, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	_, err = m.Active()
	assert.ErrorIs(t, err, ErrNoneConfigured)

	_, err = m.CurrentIdentity()
	assert.ErrorIs(t, err, ErrNoneConfigured)

	_, err = m.Get("octocat")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAddFirstAccountBecomesActive(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	require.NoError(t, m.Add(Account{Username: "octocat", Token: "ghp_first"}))

	active, err := m.Active()
	require.NoError(t, err)
	assert.Equal(t, "octocat", active.Username)
	assert.Equal(t, "ghp_first", active.Token)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "users.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestAddSecondAccountKeepsActive(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Add(Account{Username: "octocat", Token: "ghp_first"}))
	require.NoError(t, m.Add(Account{Username: "hubot", Token: "ghp_second"}))

	accounts, err := m.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "octocat", accounts[0].Username)
	assert.Equal(t, "hubot", accounts[1].Username)

	assert.Equal(t, "octocat", m.ActiveUsername())
}

func TestAddExistingUsernameReplacesToken(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Add(Account{Username: "octocat", Token: "ghp_old"}))
	require.NoError(t, m.Add(Account{Username: "octocat", Token: "ghp_new"}))

	accounts, err := m.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "ghp_new", accounts[0].Token)
}

func TestAddValidation(t *testing.T) {
	m := NewManager(t.TempDir())

	assert.Error(t, m.Add(Account{Token: "ghp_x"}))
	assert.Error(t, m.Add(Account{Username: "octocat"}))
}

func TestSetActive(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Add(Account{Username: "octocat", Token: "ghp_first"}))
	require.NoError(t, m.Add(Account{Username: "hubot", Token: "ghp_second"}))

	require.NoError(t, m.SetActive("hubot"))
	assert.Equal(t, "hubot", m.ActiveUsername())

	err := m.SetActive("nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, "hubot", m.ActiveUsername())
}

func TestRemoveRepointsActive(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Add(Account{Username: "octocat", Token: "ghp_first"}))
	require.NoError(t, m.Add(Account{Username: "hubot", Token: "ghp_second"}))

	require.NoError(t, m.Remove("octocat"))
	assert.Equal(t, "hubot", m.ActiveUsername())

	require.NoError(t, m.Remove("hubot"))
	_, err := m.Active()
	assert.ErrorIs(t, err, ErrNoneConfigured)

	err = m.Remove("hubot")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCurrentIdentity(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Add(Account{Username: "octocat", Token: "ghp_secret"}))

	identity, err := m.CurrentIdentity()
	require.NoError(t, err)
	assert.Equal(t, "octocat", identity.Username)
	assert.Len(t, identity.TokenDigest, 16)
	assert.NotContains(t, identity.TokenDigest, "ghp_secret")

	// Same token, same digest; different token, different digest.
	assert.Equal(t, TokenDigest("ghp_secret"), identity.TokenDigest)
	assert.NotEqual(t, TokenDigest("ghp_other"), identity.TokenDigest)
}

func TestResolveToken(t *testing.T) {
	tests := []struct {
		name     string
		accounts []Account
		envToken string
		want     string
		wantErr  bool
	}{
		{
			name:     "account token wins over environment",
			accounts: []Account{{Username: "octocat", Token: "ghp_account"}},
			envToken: "ghp_env",
			want:     "ghp_account",
		},
		{
			name:     "environment fallback",
			envToken: "ghp_env",
			want:     "ghp_env",
		},
		{
			name:    "nothing configured",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(t.TempDir())
			for _, acct := range tt.accounts {
				require.NoError(t, m.Add(acct))
			}

			token, err := m.ResolveToken(tt.envToken)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoneConfigured)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestCorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("{not json"), 0o600))

	m := NewManager(dir)
	_, err := m.List()
	assert.Error(t, err)

	// The corrupt file must survive untouched for manual recovery.
	data, readErr := os.ReadFile(filepath.Join(dir, "users.json"))
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))
}

func TestPersistsAcrossManagers(t *testing.T) {
	dir := t.TempDir()

	first := NewManager(dir)
	require.NoError(t, first.Add(Account{Username: "octocat", Token: "ghp_first"}))
	require.NoError(t, first.Add(Account{Username: "hubot", Token: "ghp_second"}))
	require.NoError(t, first.SetActive("hubot"))

	second := NewManager(dir)
	accounts, err := second.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Equal(t, "hubot", second.ActiveUsername())
}
