// Package credentials manages the accounts used to authenticate against the
// hosted service. Accounts live in a users.json file under the data
// directory; exactly one account is active at a time and supplies the token
// for remote calls.
package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danielolaszy/tether/pkg/models"
)

const fileName = "users.json"

var (
	// ErrNoneConfigured is returned when no account has been added yet.
	ErrNoneConfigured = errors.New("no account configured")

	// ErrAccountNotFound is returned when the named account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// Account is one stored login. The token is kept verbatim; only its digest
// ever leaves this package.
type Account struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// accountsFile is the on-disk document shape.
type accountsFile struct {
	Users      []Account `json:"users"`
	ActiveUser string    `json:"active_user,omitempty"`
}

// Manager reads and writes the account file. All mutations are
// read-modify-write cycles under one lock.
type Manager struct {
	path string
	mu   sync.Mutex
}

// NewManager returns a manager storing accounts under dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{path: filepath.Join(dataDir, fileName)}
}

// List returns all stored accounts in the order they were added.
func (m *Manager) List() ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// Get returns the named account.
func (m *Manager) Get(username string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return Account{}, err
	}
	for _, acct := range doc.Users {
		if acct.Username == username {
			return acct, nil
		}
	}
	return Account{}, fmt.Errorf("account %q: %w", username, ErrAccountNotFound)
}

// Add stores an account, replacing any existing entry for the same
// username. The first account added becomes the active one.
func (m *Manager) Add(account Account) error {
	if account.Username == "" {
		return errors.New("account username is empty")
	}
	if account.Token == "" {
		return errors.New("account token is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range doc.Users {
		if doc.Users[i].Username == account.Username {
			doc.Users[i] = account
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Users = append(doc.Users, account)
	}
	if doc.ActiveUser == "" {
		doc.ActiveUser = account.Username
	}
	return m.save(doc)
}

// Remove deletes the named account. When the active account is removed the
// first remaining one becomes active.
func (m *Manager) Remove(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return err
	}

	kept := doc.Users[:0]
	found := false
	for _, acct := range doc.Users {
		if acct.Username == username {
			found = true
			continue
		}
		kept = append(kept, acct)
	}
	if !found {
		return fmt.Errorf("account %q: %w", username, ErrAccountNotFound)
	}
	doc.Users = kept

	if doc.ActiveUser == username {
		doc.ActiveUser = ""
		if len(doc.Users) > 0 {
			doc.ActiveUser = doc.Users[0].Username
		}
	}
	return m.save(doc)
}

// SetActive marks the named account as the one supplying credentials.
func (m *Manager) SetActive(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return err
	}
	for _, acct := range doc.Users {
		if acct.Username == username {
			doc.ActiveUser = username
			return m.save(doc)
		}
	}
	return fmt.Errorf("account %q: %w", username, ErrAccountNotFound)
}

// Active returns the account currently supplying credentials.
func (m *Manager) Active() (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return Account{}, err
	}
	if doc.ActiveUser == "" {
		return Account{}, ErrNoneConfigured
	}
	for _, acct := range doc.Users {
		if acct.Username == doc.ActiveUser {
			return acct, nil
		}
	}
	return Account{}, fmt.Errorf("active account %q: %w", doc.ActiveUser, ErrAccountNotFound)
}

// ActiveUsername returns the active account's name, or "" when none is
// configured.
func (m *Manager) ActiveUsername() string {
	acct, err := m.Active()
	if err != nil {
		return ""
	}
	return acct.Username
}

// CurrentIdentity returns the active account as a cache identity. The token
// never appears in the identity, only its digest.
func (m *Manager) CurrentIdentity() (models.Identity, error) {
	acct, err := m.Active()
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{
		Username:    acct.Username,
		TokenDigest: TokenDigest(acct.Token),
	}, nil
}

// ResolveToken returns the active account's token, falling back to the
// supplied environment token when no account is configured.
func (m *Manager) ResolveToken(envToken string) (string, error) {
	acct, err := m.Active()
	if err == nil {
		return acct.Token, nil
	}
	if errors.Is(err, ErrNoneConfigured) && envToken != "" {
		return envToken, nil
	}
	return "", err
}

// TokenDigest returns a short stable digest of a credential, safe to log
// and to use as a cache key component.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:16]
}

func (m *Manager) load() (*accountsFile, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &accountsFile{}, nil
		}
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	var doc accountsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		// A corrupt file is an error, never silently reset: resetting
		// would discard stored tokens.
		return nil, fmt.Errorf("decoding accounts file %s: %w", m.path, err)
	}
	return &doc, nil
}

func (m *Manager) save(doc *accountsFile) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding accounts file: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".users-*")
	if err != nil {
		return fmt.Errorf("creating temporary accounts file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing accounts file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing accounts file: %w", err)
	}
	// Tokens are secrets; the file is owner-only.
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("restricting accounts file permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replacing accounts file: %w", err)
	}
	return nil
}
