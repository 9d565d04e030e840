package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gridwatch/outages/internal/model"
)

// RawStore holds one row per (period, facility, generator) daily outage
// observation in a single Parquet file.
type RawStore struct {
	path string
}

// NewRawStore creates a raw store bound to a Parquet file path.
func NewRawStore(path string) *RawStore {
	return &RawStore{path: path}
}

// Path returns the file path.
func (s *RawStore) Path() string {
	return s.path
}

// Exists reports whether the store file is present on disk.
func (s *RawStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads all observations. A missing file yields an empty slice.
func (s *RawStore) Load() ([]model.RawObservation, error) {
	if !s.Exists() {
		return nil, nil
	}

	rows, err := readRows[model.RawRow](s.path)
	if err != nil {
		return nil, fmt.Errorf("load raw store: %w", err)
	}

	obs := make([]model.RawObservation, len(rows))
	for i := range rows {
		obs[i] = model.RowToRaw(&rows[i])
	}
	return obs, nil
}

// Save replaces the store contents. The rows are written to a temp file in
// the same directory and renamed over the live path, so a failed write never
// corrupts the previous state.
func (s *RawStore) Save(obs []model.RawObservation) error {
	rows := make([]model.RawRow, len(obs))
	for i := range obs {
		rows[i] = model.RawToRow(&obs[i])
	}

	dir := filepath.Dir(s.path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(s.path), uuid.NewString()))

	if err := writeRows(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save raw store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save raw store: %w", err)
	}
	return nil
}
