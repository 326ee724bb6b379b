// Package store persists mirrored projects as paired JSON and YAML documents.
//
// Each project lives in its own directory under the data root:
//
//	projects/<id>/project.json    structured form, authoritative for tooling
//	projects/<id>/project.yaml    human-editable form of the same record
//	projects/<id>/snapshot.json   last fully synchronized state (merge base)
//	projects/<id>/backups/        timestamped copies of prior versions
//
// The two document forms always decode to canonically equal records. Every
// save of an existing project first copies the prior pair into backups/;
// backups are never overwritten and only removed through PruneBackups.
// YAML comments are not preserved across saves.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

const (
	projectsDir  = "projects"
	backupsDir   = "backups"
	jsonName     = "project.json"
	yamlName     = "project.yaml"
	snapshotName = "snapshot.json"

	backupPrefix = "project-"
	stampLayout  = "20060102-150405.000"
)

// Store manages the on-disk project mirror under a single data directory.
type Store struct {
	root string
}

// New returns a store rooted at dir, creating the directory when missing.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: data directory is empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, projectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the data directory the store was created with.
func (s *Store) Root() string {
	return s.root
}

// YAMLPath returns the path of the human-editable document for id. The file
// may not exist yet.
func (s *Store) YAMLPath(id string) string {
	return filepath.Join(s.projectDir(id), yamlName)
}

// List returns the identifiers of all mirrored projects, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, projectsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing mirrored projects: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, projectsDir, entry.Name(), jsonName)); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads the structured document for id. Returns ErrNotFound when the
// project has never been mirrored.
func (s *Store) Load(id string) (*models.ProjectRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.projectDir(id), jsonName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading project %q: %w", id, err)
	}

	var record models.ProjectRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding project %q: %w", id, err)
	}
	return &record, nil
}

// Save writes both document forms for the record, backing up any prior
// version first. Both writes are atomic.
func (s *Store) Save(id string, record *models.ProjectRecord) error {
	if err := validID(id); err != nil {
		return err
	}

	jsonData, yamlData, err := encodeDocuments(record)
	if err != nil {
		return fmt.Errorf("encoding project %q: %w", id, err)
	}

	dir := s.projectDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	if err := s.backupExisting(id); err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(dir, jsonName), jsonData); err != nil {
		return fmt.Errorf("writing %s: %w", jsonName, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, yamlName), yamlData); err != nil {
		return fmt.Errorf("writing %s: %w", yamlName, err)
	}

	logging.Debug("saved project", "id", id, "fields", len(record.Fields), "items", len(record.Items))
	return nil
}

// SaveLocalEdit parses an edited YAML document, validates it against its
// declared field schema and, only when valid, persists it through Save. On
// any error the files on disk are untouched and a *ParseError describes the
// first violation.
func (s *Store) SaveLocalEdit(id string, yamlText []byte) (*models.ProjectRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	record, err := decodeStrictYAML(yamlText)
	if err != nil {
		return nil, err
	}
	if err := validateRecord(record); err != nil {
		return nil, err
	}

	existing, err := s.Load(id)
	switch {
	case err == nil:
		if existing.ID != record.ID {
			return nil, &ParseError{
				Reason: fmt.Sprintf("document id %q does not match project %q", record.ID, existing.ID),
			}
		}
	case errors.Is(err, ErrNotFound):
		// First local document for this identifier.
	default:
		return nil, err
	}

	if err := s.Save(id, record); err != nil {
		return nil, err
	}
	logging.Debug("accepted local edit", "id", id)
	return record, nil
}

// LoadSnapshot reads the merge base for id. Returns ErrNotFound when no
// snapshot has been taken yet.
func (s *Store) LoadSnapshot(id string) (*models.Snapshot, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.projectDir(id), snapshotName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading snapshot %q: %w", id, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %q: %w", id, err)
	}
	return &snap, nil
}

// SaveSnapshot persists the merge base for id atomically.
func (s *Store) SaveSnapshot(id string, snap *models.Snapshot) error {
	if err := validID(id); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot %q: %w", id, err)
	}
	data = append(data, '\n')

	dir := s.projectDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, snapshotName), data); err != nil {
		return fmt.Errorf("writing %s: %w", snapshotName, err)
	}

	logging.Debug("advanced snapshot", "id", id, "fingerprint", snap.Fingerprint)
	return nil
}

// PruneBackups removes the oldest backups of id beyond the newest keep
// versions. A version is the JSON/YAML pair sharing one timestamp. Returns
// the number of files removed.
func (s *Store) PruneBackups(id string, keep int) (int, error) {
	if err := validID(id); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, fmt.Errorf("keep must be non-negative, got %d", keep)
	}

	dir := filepath.Join(s.projectDir(id), backupsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing backups for %q: %w", id, err)
	}

	byStamp := make(map[string][]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), filepath.Ext(name))
		byStamp[stamp] = append(byStamp[stamp], name)
	}

	stamps := make([]string, 0, len(byStamp))
	for stamp := range byStamp {
		stamps = append(stamps, stamp)
	}
	// Stamp format sorts lexically in time order; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(stamps)))

	removed := 0
	for _, stamp := range stamps[min(keep, len(stamps)):] {
		for _, name := range byStamp[stamp] {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return removed, fmt.Errorf("removing backup %s: %w", name, err)
			}
			removed++
		}
	}

	if removed > 0 {
		logging.Debug("pruned backups", "id", id, "removed", removed, "kept", min(keep, len(stamps)))
	}
	return removed, nil
}

func (s *Store) projectDir(id string) string {
	return filepath.Join(s.root, projectsDir, id)
}

// backupExisting copies the current document pair into backups/ under a
// shared timestamp. Missing files mean a first save and are skipped.
func (s *Store) backupExisting(id string) error {
	dir := s.projectDir(id)
	stamp := time.Now().UTC().Format(stampLayout)
	// Same-millisecond saves would reuse the stamp; backups must never be
	// overwritten, so disambiguate with a random suffix.
	if _, err := os.Stat(filepath.Join(dir, backupsDir, backupPrefix+stamp+".json")); err == nil {
		stamp = stamp + "-" + uuid.NewString()[:8]
	}

	for _, name := range []string{jsonName, yamlName} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading prior %s: %w", name, err)
		}

		if err := os.MkdirAll(filepath.Join(dir, backupsDir), 0o755); err != nil {
			return fmt.Errorf("creating backups directory: %w", err)
		}
		backup := backupPrefix + stamp + filepath.Ext(name)
		if err := writeFileAtomic(filepath.Join(dir, backupsDir, backup), data); err != nil {
			return fmt.Errorf("writing backup %s: %w", backup, err)
		}
	}
	return nil
}

func encodeDocuments(record *models.ProjectRecord) (jsonData, yamlData []byte, err error) {
	jsonData, err = json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	jsonData = append(jsonData, '\n')

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(record); err != nil {
		return nil, nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, nil, err
	}
	return jsonData, buf.Bytes(), nil
}

// decodeStrictYAML rejects documents with keys outside the record schema.
func decodeStrictYAML(text []byte) (*models.ProjectRecord, error) {
	dec := yaml.NewDecoder(bytes.NewReader(text))
	dec.KnownFields(true)

	var record models.ProjectRecord
	if err := dec.Decode(&record); err != nil {
		return nil, &ParseError{Reason: "malformed yaml", Err: err}
	}
	return &record, nil
}

func validID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid project id %q", id)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tether-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return werr
		}
		return cerr
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
