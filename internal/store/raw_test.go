package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridwatch/outages/internal/model"
)

func testObservations() []model.RawObservation {
	return []model.RawObservation{
		{
			Period:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Facility:      "1715",
			FacilityName:  "Browns Ferry",
			Generator:     "2",
			CapacityMW:    1259.7,
			OutageMW:      1259.7,
			PercentOutage: 100,
		},
		{
			Period:        time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Facility:      "6022",
			FacilityName:  "Palo Verde",
			Generator:     "1",
			CapacityMW:    1311,
			OutageMW:      400,
			PercentOutage: 30.5,
		},
	}
}

func TestRawStoreRoundTrip(t *testing.T) {
	s := NewRawStore(filepath.Join(t.TempDir(), "raw_data.parquet"))

	want := testObservations()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists() {
		t.Fatal("store file missing after Save")
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("rows = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRawStoreLoadMissing(t *testing.T) {
	s := NewRawStore(filepath.Join(t.TempDir(), "nope.parquet"))

	obs, err := s.Load()
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if obs != nil {
		t.Errorf("Load missing file = %v, want nil", obs)
	}
	if s.Exists() {
		t.Error("Exists() = true for missing file")
	}
}

func TestRawStoreSaveReplaces(t *testing.T) {
	s := NewRawStore(filepath.Join(t.TempDir(), "raw_data.parquet"))

	if err := s.Save(testObservations()); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	replacement := testObservations()[:1]
	if err := s.Save(replacement); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d, want 1 after replace", len(got))
	}
}

func TestRawStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewRawStore(filepath.Join(dir, "raw_data.parquet"))

	if err := s.Save(testObservations()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "raw_data.parquet" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contents = %v, want only raw_data.parquet", names)
	}
}
