// Package model defines the raw feed record and the star-schema tables
// derived from it.
//
// Key types:
//   - RawObservation: one daily outage observation per (period, facility, generator)
//   - DimPlant: one row per facility, surrogate PlantKey
//   - DimDate: one row per fact start date, surrogate DateKey (YYYYMMDD)
//   - FactOutage: one row per outage event (maximal run of consecutive days)
package model

import (
	"fmt"
	"time"
)

// RawObservation is a single daily generator-level outage observation.
// The natural key is (Period, Facility, Generator).
type RawObservation struct {
	Period        time.Time
	Facility      string
	FacilityName  string
	Generator     string
	CapacityMW    float64
	OutageMW      float64
	PercentOutage float64
}

// Key returns the natural key of the observation.
func (o *RawObservation) Key() string {
	return fmt.Sprintf("%s|%s|%s", o.Period.Format("2006-01-02"), o.Facility, o.Generator)
}

// Valid reports whether the observation carries all natural-key fields.
func (o *RawObservation) Valid() bool {
	return !o.Period.IsZero() && o.Facility != "" && o.Generator != ""
}

// DimPlant is one row per distinct facility.
type DimPlant struct {
	PlantKey      int64  `json:"plant_key"`
	EIAFacilityID string `json:"eia_facility_id"`
	PlantName     string `json:"plant_name"`
}

// DimDate is one row per calendar date referenced by a fact's start date.
type DimDate struct {
	DateKey   int64     `json:"date_key"`
	Date      time.Time `json:"date"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Day       int       `json:"day"`
	DayOfWeek string    `json:"day_of_week"`
	IsWeekend bool      `json:"is_weekend"`
}

// FactOutage is one outage event: a maximal run of consecutive observed days
// for a (facility, generator) pair. End is exclusive (one day past the last
// observed date).
type FactOutage struct {
	OutageKey     int64     `json:"outage_key"`
	PlantKey      int64     `json:"plant_key"`
	DateKey       int64     `json:"date_key"`
	Generator     string    `json:"generator"`
	OutageID      string    `json:"outage_id"`
	Start         time.Time `json:"outage_start"`
	End           time.Time `json:"outage_end"`
	DurationHours float64   `json:"outage_duration_hours"`
}

// Tables bundles one full build of the star schema.
type Tables struct {
	Plants []DimPlant   `json:"dim_plant"`
	Dates  []DimDate    `json:"dim_date"`
	Facts  []FactOutage `json:"fact_outage"`
}

// Normalize truncates a timestamp to UTC midnight.
func Normalize(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey converts a date to a YYYYMMDD integer key.
func DateKey(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// NewDimDate derives the full date dimension row for a date.
func NewDimDate(t time.Time) DimDate {
	t = Normalize(t)
	wd := t.Weekday()
	return DimDate{
		DateKey:   DateKey(t),
		Date:      t,
		Year:      t.Year(),
		Month:     int(t.Month()),
		Day:       t.Day(),
		DayOfWeek: wd.String(),
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
	}
}

// OutageID builds the natural event identifier facility-generator-datekey.
func OutageID(facility, generator string, dateKey int64) string {
	return fmt.Sprintf("%s-%s-%d", facility, generator, dateKey)
}
