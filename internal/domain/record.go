package domain

import "time"

// Resolution identifies the temporal granularity of a series.
type Resolution string

const (
	ResolutionYearly  Resolution = "yearly"
	ResolutionMonthly Resolution = "monthly"
	ResolutionDaily   Resolution = "daily"
)

// Metric identifies which value column an Ember dataset carries.
type Metric string

const (
	MetricGeneration Metric = "generation"
	MetricCapacity   Metric = "capacity"
)

// Unit returns the measurement unit for the metric.
func (m Metric) Unit() string {
	switch m {
	case MetricGeneration:
		return "twh"
	case MetricCapacity:
		return "gw"
	default:
		return ""
	}
}

// RawRow is one element of the Ember API "data" array. Generation and
// capacity datasets share the entity/date/series columns and differ only in
// the value column.
type RawRow struct {
	Entity            string   `json:"entity"`
	EntityCode        string   `json:"entity_code"`
	IsAggregateEntity bool     `json:"is_aggregate_entity"`
	Date              string   `json:"date"`
	Series            string   `json:"series"`
	IsAggregateSeries bool     `json:"is_aggregate_series"`
	GenerationTWh     *float64 `json:"generation_twh,omitempty"`
	CapacityGW        *float64 `json:"capacity_gw,omitempty"`
	SharePct          *float64 `json:"share_of_generation_pct,omitempty"`
}

// Envelope is the Ember API response wrapper.
type Envelope struct {
	Data []RawRow `json:"data"`
}

// EnergyRecord is the normalized form of one Ember row.
type EnergyRecord struct {
	ID                string     `json:"id"`
	Entity            string     `json:"entity"`
	EntityCode        string     `json:"entity_code,omitempty"`
	IsAggregateEntity bool       `json:"is_aggregate_entity,omitempty"`
	Series            string     `json:"series"`
	IsAggregateSeries bool       `json:"is_aggregate_series,omitempty"`
	Resolution        Resolution `json:"resolution"`
	Date              time.Time  `json:"date"`
	Year              int        `json:"year"`
	Month             int        `json:"month,omitempty"`
	Value             float64    `json:"value"`
	Unit              string     `json:"unit"`
	SharePct          *float64   `json:"share_of_generation_pct,omitempty"`
	Source            string     `json:"source"`
	FetchedAt         time.Time  `json:"fetched_at"`
}
