// Package builder transforms raw daily observations into the star schema.
//
// Consecutive observed days for one (facility, generator) pair collapse into
// a single outage event with an exclusive end timestamp. The build is fully
// deterministic: the same raw store always produces the same tables.
package builder

import (
	"sort"
	"time"

	apperrors "github.com/gridwatch/outages/internal/errors"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/model"
)

// Stats reports what a build consumed and produced.
type Stats struct {
	InputRows   int
	SkippedRows int
	Plants      int
	Dates       int
	Events      int
}

// Build produces the three star-schema tables from raw observations.
// Rows missing natural-key fields are skipped and counted. An input with no
// valid rows fails with ErrNoData so an empty store can never be swapped in.
func Build(raw []model.RawObservation) (model.Tables, Stats, error) {
	log := logging.Component("builder")

	var tables model.Tables
	stats := Stats{InputRows: len(raw)}

	valid := make([]model.RawObservation, 0, len(raw))
	for i := range raw {
		if !raw[i].Valid() {
			stats.SkippedRows++
			continue
		}
		valid = append(valid, raw[i])
	}
	if stats.SkippedRows > 0 {
		log.Warn("skipped rows with missing key fields", "skipped", stats.SkippedRows)
	}
	if len(valid) == 0 {
		return tables, stats, apperrors.Wrap(apperrors.ErrNoData, "build aborted, %d rows skipped", stats.SkippedRows)
	}

	tables.Plants = buildDimPlant(valid)
	plantKeys := make(map[string]int64, len(tables.Plants))
	for i := range tables.Plants {
		plantKeys[tables.Plants[i].EIAFacilityID] = tables.Plants[i].PlantKey
	}

	tables.Facts = buildFactOutage(valid, plantKeys)
	tables.Dates = buildDimDate(tables.Facts)

	stats.Plants = len(tables.Plants)
	stats.Dates = len(tables.Dates)
	stats.Events = len(tables.Facts)

	log.Info("model built",
		"plants", stats.Plants, "dates", stats.Dates, "events", stats.Events,
		"input_rows", stats.InputRows, "skipped", stats.SkippedRows)
	return tables, stats, nil
}

// buildDimPlant emits one row per distinct facility, keyed 1..n in facility
// order. The plant name is the first non-empty name observed.
func buildDimPlant(rows []model.RawObservation) []model.DimPlant {
	names := make(map[string]string)
	for i := range rows {
		if _, ok := names[rows[i].Facility]; !ok || names[rows[i].Facility] == "" {
			names[rows[i].Facility] = rows[i].FacilityName
		}
	}

	facilities := make([]string, 0, len(names))
	for f := range names {
		facilities = append(facilities, f)
	}
	sort.Strings(facilities)

	plants := make([]model.DimPlant, len(facilities))
	for i, f := range facilities {
		plants[i] = model.DimPlant{
			PlantKey:      int64(i + 1),
			EIAFacilityID: f,
			PlantName:     names[f],
		}
	}
	return plants
}

// unitKey identifies one (facility, generator) pair.
type unitKey struct {
	facility  string
	generator string
}

// buildFactOutage groups observations per unit, sorts each group's dates
// ascending, and splits them into maximal runs of consecutive days. Each run
// is one event with End one day past the last observed date.
func buildFactOutage(rows []model.RawObservation, plantKeys map[string]int64) []model.FactOutage {
	groups := make(map[unitKey][]time.Time)
	for i := range rows {
		k := unitKey{rows[i].Facility, rows[i].Generator}
		groups[k] = append(groups[k], rows[i].Period)
	}

	keys := make([]unitKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].facility != keys[j].facility {
			return keys[i].facility < keys[j].facility
		}
		return keys[i].generator < keys[j].generator
	})

	var facts []model.FactOutage
	for _, k := range keys {
		dates := dedupSorted(groups[k])

		runStart := dates[0]
		prev := dates[0]
		for i := 1; i <= len(dates); i++ {
			if i < len(dates) && dates[i].Equal(prev.AddDate(0, 0, 1)) {
				prev = dates[i]
				continue
			}

			end := prev.AddDate(0, 0, 1)
			dateKey := model.DateKey(runStart)
			facts = append(facts, model.FactOutage{
				OutageKey:     int64(len(facts) + 1),
				PlantKey:      plantKeys[k.facility],
				DateKey:       dateKey,
				Generator:     k.generator,
				OutageID:      model.OutageID(k.facility, k.generator, dateKey),
				Start:         runStart,
				End:           end,
				DurationHours: end.Sub(runStart).Hours(),
			})

			if i < len(dates) {
				runStart = dates[i]
				prev = dates[i]
			}
		}
	}
	return facts
}

// dedupSorted sorts dates ascending and removes duplicates.
func dedupSorted(dates []time.Time) []time.Time {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := dates[:1]
	for i := 1; i < len(dates); i++ {
		if !dates[i].Equal(out[len(out)-1]) {
			out = append(out, dates[i])
		}
	}
	return out
}

// buildDimDate covers exactly the distinct start dates referenced by facts.
func buildDimDate(facts []model.FactOutage) []model.DimDate {
	seen := make(map[int64]time.Time)
	for i := range facts {
		seen[facts[i].DateKey] = facts[i].Start
	}

	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	dates := make([]model.DimDate, len(keys))
	for i, k := range keys {
		dates[i] = model.NewDimDate(seen[k])
	}
	return dates
}
