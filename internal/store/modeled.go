package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/model"
)

// Modeled table file names.
const (
	PlantFile = "dim_plant.parquet"
	DateFile  = "dim_date.parquet"
	FactFile  = "fact_outage.parquet"
)

// ModeledStore is the directory holding the three star-schema tables.
// The directory is only ever replaced as a unit via Swap.
type ModeledStore struct {
	dir string
}

// NewModeledStore creates a modeled store bound to a directory.
func NewModeledStore(dir string) *ModeledStore {
	return &ModeledStore{dir: dir}
}

// Dir returns the live directory path.
func (s *ModeledStore) Dir() string {
	return s.dir
}

// Exists reports whether all three table files are present.
func (s *ModeledStore) Exists() bool {
	for _, name := range []string{PlantFile, DateFile, FactFile} {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
			return false
		}
	}
	return true
}

// TablePaths returns the paths of the three live table files.
func (s *ModeledStore) TablePaths() (plant, date, fact string) {
	return filepath.Join(s.dir, PlantFile),
		filepath.Join(s.dir, DateFile),
		filepath.Join(s.dir, FactFile)
}

// NewStaging returns a fresh sibling staging directory path. The directory is
// not created; WriteTables creates it. Siblings share a filesystem with the
// live directory so the swap renames stay atomic.
func (s *ModeledStore) NewStaging() string {
	parent := filepath.Dir(s.dir)
	return filepath.Join(parent, fmt.Sprintf(".%s.tmp-%s", filepath.Base(s.dir), uuid.NewString()))
}

// WriteTables writes a full build of the star schema into dir. The three
// files are written concurrently; dir is left partially written on error and
// the caller discards it.
func WriteTables(dir string, t model.Tables) error {
	plantRows := make([]model.PlantRow, len(t.Plants))
	for i := range t.Plants {
		plantRows[i] = model.PlantToRow(&t.Plants[i])
	}
	dateRows := make([]model.DateRow, len(t.Dates))
	for i := range t.Dates {
		dateRows[i] = model.DateToRow(&t.Dates[i])
	}
	factRows := make([]model.FactRow, len(t.Facts))
	for i := range t.Facts {
		factRows[i] = model.FactToRow(&t.Facts[i])
	}

	var g errgroup.Group
	g.Go(func() error { return writeRows(filepath.Join(dir, PlantFile), plantRows) })
	g.Go(func() error { return writeRows(filepath.Join(dir, DateFile), dateRows) })
	g.Go(func() error { return writeRows(filepath.Join(dir, FactFile), factRows) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("write modeled tables: %w", err)
	}
	return nil
}

// ReadTables loads all three tables from dir.
func ReadTables(dir string) (model.Tables, error) {
	var t model.Tables

	plantRows, err := readRows[model.PlantRow](filepath.Join(dir, PlantFile))
	if err != nil {
		return t, fmt.Errorf("read %s: %w", PlantFile, err)
	}
	dateRows, err := readRows[model.DateRow](filepath.Join(dir, DateFile))
	if err != nil {
		return t, fmt.Errorf("read %s: %w", DateFile, err)
	}
	factRows, err := readRows[model.FactRow](filepath.Join(dir, FactFile))
	if err != nil {
		return t, fmt.Errorf("read %s: %w", FactFile, err)
	}

	t.Plants = make([]model.DimPlant, len(plantRows))
	for i := range plantRows {
		t.Plants[i] = model.RowToPlant(&plantRows[i])
	}
	t.Dates = make([]model.DimDate, len(dateRows))
	for i := range dateRows {
		t.Dates[i] = model.RowToDate(&dateRows[i])
	}
	t.Facts = make([]model.FactOutage, len(factRows))
	for i := range factRows {
		t.Facts[i] = model.RowToFact(&factRows[i])
	}
	return t, nil
}

// Head returns at most n rows of each table from dir, for previews.
func Head(dir string, n int) (model.Tables, error) {
	t, err := ReadTables(dir)
	if err != nil {
		return t, err
	}
	if len(t.Plants) > n {
		t.Plants = t.Plants[:n]
	}
	if len(t.Dates) > n {
		t.Dates = t.Dates[:n]
	}
	if len(t.Facts) > n {
		t.Facts = t.Facts[:n]
	}
	return t, nil
}

// Swap atomically replaces the live directory with staging. The old
// directory is renamed aside first and restored if the swap fails, so a
// reader always sees either the fully-old or fully-new store.
func (s *ModeledStore) Swap(staging string) error {
	parent := filepath.Dir(s.dir)
	if filepath.Dir(staging) != parent {
		return apperrors.Wrap(apperrors.ErrSwap, "staging %q not a sibling of %q", staging, s.dir)
	}

	backup := filepath.Join(parent, fmt.Sprintf(".%s.bak-%s", filepath.Base(s.dir), uuid.NewString()))
	hadLive := false

	if _, err := os.Stat(s.dir); err == nil {
		hadLive = true
		if err := os.Rename(s.dir, backup); err != nil {
			return apperrors.Wrap(apperrors.ErrSwap, "move live aside: %v", err)
		}
	}

	if err := os.Rename(staging, s.dir); err != nil {
		if hadLive {
			// Put the previous live store back; it was never modified.
			os.Rename(backup, s.dir)
		}
		return apperrors.Wrap(apperrors.ErrSwap, "promote staging: %v", err)
	}

	if hadLive {
		os.RemoveAll(backup)
	}
	return nil
}
