package model

import "time"

// Parquet row mirrors of the domain types. Timestamps are stored as Unix
// milliseconds so the files stay portable across readers.

// RawRow represents a RawObservation in Parquet format.
type RawRow struct {
	PeriodMs      int64   `parquet:"period_ms"`
	Facility      string  `parquet:"facility,zstd"`
	FacilityName  string  `parquet:"facility_name,zstd"`
	Generator     string  `parquet:"generator,zstd"`
	CapacityMW    float64 `parquet:"capacity_mw"`
	OutageMW      float64 `parquet:"outage_mw"`
	PercentOutage float64 `parquet:"percent_outage"`
}

// PlantRow represents a DimPlant row in Parquet format.
type PlantRow struct {
	PlantKey      int64  `parquet:"plant_key"`
	EIAFacilityID string `parquet:"eia_facility_id,zstd"`
	PlantName     string `parquet:"plant_name,zstd"`
}

// DateRow represents a DimDate row in Parquet format.
type DateRow struct {
	DateKey   int64  `parquet:"date_key"`
	DateMs    int64  `parquet:"date_ms"`
	Year      int32  `parquet:"year"`
	Month     int32  `parquet:"month"`
	Day       int32  `parquet:"day"`
	DayOfWeek string `parquet:"day_of_week,zstd"`
	IsWeekend bool   `parquet:"is_weekend"`
}

// FactRow represents a FactOutage row in Parquet format.
type FactRow struct {
	OutageKey     int64   `parquet:"outage_key"`
	PlantKey      int64   `parquet:"plant_key"`
	DateKey       int64   `parquet:"date_key"`
	Generator     string  `parquet:"generator,zstd"`
	OutageID      string  `parquet:"outage_id,zstd"`
	StartMs       int64   `parquet:"start_ms"`
	EndMs         int64   `parquet:"end_ms"`
	DurationHours float64 `parquet:"duration_hours"`
}

// RawToRow converts a RawObservation to its Parquet form.
func RawToRow(o *RawObservation) RawRow {
	return RawRow{
		PeriodMs:      o.Period.UnixMilli(),
		Facility:      o.Facility,
		FacilityName:  o.FacilityName,
		Generator:     o.Generator,
		CapacityMW:    o.CapacityMW,
		OutageMW:      o.OutageMW,
		PercentOutage: o.PercentOutage,
	}
}

// RowToRaw converts a Parquet row back to a RawObservation.
func RowToRaw(r *RawRow) RawObservation {
	return RawObservation{
		Period:        time.UnixMilli(r.PeriodMs).UTC(),
		Facility:      r.Facility,
		FacilityName:  r.FacilityName,
		Generator:     r.Generator,
		CapacityMW:    r.CapacityMW,
		OutageMW:      r.OutageMW,
		PercentOutage: r.PercentOutage,
	}
}

// PlantToRow converts a DimPlant to its Parquet form.
func PlantToRow(p *DimPlant) PlantRow {
	return PlantRow{
		PlantKey:      p.PlantKey,
		EIAFacilityID: p.EIAFacilityID,
		PlantName:     p.PlantName,
	}
}

// RowToPlant converts a Parquet row back to a DimPlant.
func RowToPlant(r *PlantRow) DimPlant {
	return DimPlant{
		PlantKey:      r.PlantKey,
		EIAFacilityID: r.EIAFacilityID,
		PlantName:     r.PlantName,
	}
}

// DateToRow converts a DimDate to its Parquet form.
func DateToRow(d *DimDate) DateRow {
	return DateRow{
		DateKey:   d.DateKey,
		DateMs:    d.Date.UnixMilli(),
		Year:      int32(d.Year),
		Month:     int32(d.Month),
		Day:       int32(d.Day),
		DayOfWeek: d.DayOfWeek,
		IsWeekend: d.IsWeekend,
	}
}

// RowToDate converts a Parquet row back to a DimDate.
func RowToDate(r *DateRow) DimDate {
	return DimDate{
		DateKey:   r.DateKey,
		Date:      time.UnixMilli(r.DateMs).UTC(),
		Year:      int(r.Year),
		Month:     int(r.Month),
		Day:       int(r.Day),
		DayOfWeek: r.DayOfWeek,
		IsWeekend: r.IsWeekend,
	}
}

// FactToRow converts a FactOutage to its Parquet form.
func FactToRow(f *FactOutage) FactRow {
	return FactRow{
		OutageKey:     f.OutageKey,
		PlantKey:      f.PlantKey,
		DateKey:       f.DateKey,
		Generator:     f.Generator,
		OutageID:      f.OutageID,
		StartMs:       f.Start.UnixMilli(),
		EndMs:         f.End.UnixMilli(),
		DurationHours: f.DurationHours,
	}
}

// RowToFact converts a Parquet row back to a FactOutage.
func RowToFact(r *FactRow) FactOutage {
	return FactOutage{
		OutageKey:     r.OutageKey,
		PlantKey:      r.PlantKey,
		DateKey:       r.DateKey,
		Generator:     r.Generator,
		OutageID:      r.OutageID,
		Start:         time.UnixMilli(r.StartMs).UTC(),
		End:           time.UnixMilli(r.EndMs).UTC(),
		DurationHours: r.DurationHours,
	}
}
