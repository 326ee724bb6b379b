package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielolaszy/tether/pkg/models"
)

// Fingerprint returns the hex SHA-256 of the record's canonical JSON form.
// Two records that are equal after key ordering is normalized produce the
// same fingerprint regardless of how they were decoded.
func Fingerprint(record *models.ProjectRecord) (string, error) {
	data, err := canonicalJSON(record)
	if err != nil {
		return "", fmt.Errorf("canonicalizing record %q: %w", record.ID, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewSnapshot captures the record as a new merge base.
func NewSnapshot(record *models.ProjectRecord) (models.Snapshot, error) {
	fp, err := Fingerprint(record)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{
		Record:      *record.Clone(),
		TakenAt:     time.Now().UTC(),
		Fingerprint: fp,
	}, nil
}

// canonicalJSON marshals v, re-decodes it into generic containers and
// marshals again so that all object keys come out sorted.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
