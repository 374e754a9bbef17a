// Package domain models rows from the public electricity datasets this
// service acquires.
//
// # Data Sources
//
// The primary source is the Ember Energy API (https://api.ember-energy.org),
// which serves electricity generation and installed capacity series as JSON
// under a {"data": [...]} envelope. Three legacy sources are downloaded as
// files rather than queried: the IMF renewable energy CSV (ArcGIS Hub
// export), the Natural Earth 110m admin-0 countries shapefile zip, and the
// ISO 3166 country-code table scraped from iban.com.
//
// # Ember Row Conventions
//
// Date format varies with temporal resolution:
//
//	"2023"        → yearly series
//	"2023-04"     → monthly series
//	"2023-04-26"  → daily series
//
// All three are accepted and normalized to a UTC time.Time at the start of
// the period.
//
// Entity codes are ISO 3166-1 alpha-3 ("BRA", "DEU"). Aggregate entities
// such as "World" or "Europe" carry is_aggregate_entity=true and may have an
// empty or non-ISO code; they are kept but flagged so downstream joins
// against the ISO table can exclude them.
//
// Value columns depend on the dataset: generation rows carry generation_twh
// (terawatt-hours), capacity rows carry capacity_gw (gigawatts). A row with
// neither is unusable and rejected during parsing.
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of
// series|entity_code|date|resolution|metric, prefixed with a slug of the
// series name. Re-fetching the same row always produces the same ID, which
// makes downstream upserts idempotent and refresh cycles replay-safe. The
// metric keeps generation and capacity rows with identical keys from
// colliding. See [generateID].
package domain
