// Package cache stores remote listings in a local SQLite database so that
// repeated listing commands do not hit the remote service while the cached
// rows are still fresh.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// ErrStale is returned when no fresh listing exists for a key. The caller
// fetches from the remote and stores the result.
var ErrStale = errors.New("cached listing missing or stale")

// Cache is a freshness-windowed listing cache. Entries are keyed by listing
// kind and account identity; a token change under the same username produces
// a different identity and therefore a miss.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// New opens (and if needed creates) the cache database at path. Listings
// older than ttl are treated as absent.
func New(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring cache database: %w", err)
	}

	migration := `
CREATE TABLE IF NOT EXISTS listings (
    kind TEXT NOT NULL,
    username TEXT NOT NULL,
    token_digest TEXT NOT NULL,
    payload TEXT NOT NULL,
    fetched_at INTEGER NOT NULL,
    PRIMARY KEY (kind, username, token_digest)
);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating cache database: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetListing returns the cached rows for (kind, identity) when they are
// younger than the freshness window, ErrStale otherwise.
func (c *Cache) GetListing(ctx context.Context, kind models.SummaryKind, identity models.Identity) ([]models.Summary, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM listings WHERE kind = ? AND username = ? AND token_digest = ?`,
		string(kind), identity.Username, identity.TokenDigest)

	var payload string
	var fetchedAt int64
	if err := row.Scan(&payload, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStale
		}
		return nil, fmt.Errorf("reading cached listing: %w", err)
	}

	age := time.Since(time.Unix(0, fetchedAt))
	if age > c.ttl {
		logging.Debug("cached listing expired", "kind", kind, "identity", identity.Key(), "age", age)
		return nil, ErrStale
	}

	var rows []models.Summary
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, fmt.Errorf("decoding cached listing: %w", err)
	}
	logging.Debug("cache hit", "kind", kind, "identity", identity.Key(), "rows", len(rows))
	return rows, nil
}

// StoreListing replaces the cached rows for (kind, identity).
func (c *Cache) StoreListing(ctx context.Context, kind models.SummaryKind, identity models.Identity, rows []models.Summary) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding listing: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO listings (kind, username, token_digest, payload, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		string(kind), identity.Username, identity.TokenDigest, string(payload), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("storing listing: %w", err)
	}

	logging.Debug("cached listing", "kind", kind, "identity", identity.Key(), "rows", len(rows))
	return nil
}

// InvalidateIdentity drops every cached listing for the identity, regardless
// of freshness.
func (c *Cache) InvalidateIdentity(ctx context.Context, identity models.Identity) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM listings WHERE username = ? AND token_digest = ?`,
		identity.Username, identity.TokenDigest)
	if err != nil {
		return fmt.Errorf("invalidating cached listings: %w", err)
	}
	return nil
}
