// Command validate performs integrity checks across the fetched and
// processed data: raw file presence, IMF CSV structure, ISO country code
// uniqueness, Natural Earth extraction, and Ember snapshot consistency.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
package main

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/couchcryptid/energy-data-etl/internal/adapter/arcgis"
	"github.com/couchcryptid/energy-data-etl/internal/adapter/isocodes"
	"github.com/couchcryptid/energy-data-etl/internal/adapter/naturalearth"
	"github.com/couchcryptid/energy-data-etl/internal/domain"
	"github.com/couchcryptid/energy-data-etl/internal/paths"
)

var alpha3Re = regexp.MustCompile(`^[A-Z]{3}$`)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "data directory to validate")
	flag.Parse()

	if code := run(paths.NewLayout(*dataDir)); code != 0 {
		os.Exit(code)
	}
}

func run(layout paths.Layout) int {
	fmt.Println("=== Energy Data Integrity Validation ===")
	fmt.Println()

	phases := []*phase{
		validateRawFiles(layout),
		validateIMFCSV(layout),
		validateISOCodes(layout),
		validateNaturalEarth(layout),
		validateSnapshots(layout),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Raw file presence ──

func validateRawFiles(layout paths.Layout) *phase {
	p := &phase{name: "Phase 1: Raw File Presence"}

	for _, path := range []string{
		filepath.Join(layout.Raw, arcgis.OutputFile),
		filepath.Join(layout.Raw, isocodes.OutputFile),
		filepath.Join(layout.NaturalEarth, naturalearth.ArchiveFile),
	} {
		info, err := os.Stat(path)
		if err != nil {
			p.errorf("missing %s", path)
			continue
		}
		if info.Size() == 0 {
			p.errorf("%s is empty", path)
		}
	}
	return p
}

// ── Phase 2: IMF CSV structure ──

func validateIMFCSV(layout paths.Layout) *phase {
	p := &phase{name: "Phase 2: IMF CSV Structure"}

	header, rows, err := loadCSV(filepath.Join(layout.Raw, arcgis.OutputFile))
	if err != nil {
		p.errorf("load: %v", err)
		return p
	}

	if len(header) == 0 {
		p.errorf("header row is empty")
	}
	for i, col := range header {
		if strings.TrimSpace(col) == "" {
			p.errorf("header column %d is blank", i)
		}
	}
	if len(rows) == 0 {
		p.errorf("no data rows")
	}
	return p
}

// ── Phase 3: ISO country codes ──

func validateISOCodes(layout paths.Layout) *phase {
	p := &phase{name: "Phase 3: ISO Country Codes"}

	header, rows, err := loadCSV(filepath.Join(layout.Raw, isocodes.OutputFile))
	if err != nil {
		p.errorf("load: %v", err)
		return p
	}

	col := -1
	for i, h := range header {
		if h == "Alpha-3 code" {
			col = i
			break
		}
	}
	if col < 0 {
		p.errorf("missing %q column in header %v", "Alpha-3 code", header)
		return p
	}

	seen := map[string]int{}
	for i, row := range rows {
		line := i + 2
		if col >= len(row) {
			p.errorf("line %d: short row", line)
			continue
		}
		code := row[col]
		if !alpha3Re.MatchString(code) {
			p.errorf("line %d: %q is not an alpha-3 code", line, code)
			continue
		}
		if prev, ok := seen[code]; ok {
			p.errorf("line %d: duplicate code %q (first seen line %d)", line, code, prev)
			continue
		}
		seen[code] = line
	}
	if len(rows) == 0 {
		p.errorf("no country rows")
	}
	return p
}

// ── Phase 4: Natural Earth extraction ──

func validateNaturalEarth(layout paths.Layout) *phase {
	p := &phase{name: "Phase 4: Natural Earth Extraction"}

	archive := filepath.Join(layout.NaturalEarth, naturalearth.ArchiveFile)
	r, err := zip.OpenReader(archive)
	if err != nil {
		p.errorf("open archive: %v", err)
		return p
	}
	defer r.Close()

	// Every archive entry must have been extracted alongside the zip.
	var shapefiles int
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if filepath.Ext(f.Name) == ".shp" {
			shapefiles++
		}
		extracted := filepath.Join(layout.NaturalEarth, filepath.FromSlash(f.Name))
		if _, err := os.Stat(extracted); err != nil {
			p.errorf("archive entry %s not extracted", f.Name)
		}
	}
	if shapefiles == 0 {
		p.errorf("archive contains no .shp entries")
	}
	return p
}

// ── Phase 5: Ember snapshots ──

func validateSnapshots(layout paths.Layout) *phase {
	p := &phase{name: "Phase 5: Ember Snapshots"}

	matches, err := filepath.Glob(filepath.Join(layout.Processed, "*.json"))
	if err != nil {
		p.errorf("glob: %v", err)
		return p
	}
	if len(matches) == 0 {
		// Snapshots only exist after the daemon has run; their absence is
		// not an integrity failure.
		fmt.Printf("  Note: no snapshots under %s, skipping phase 5 checks\n", layout.Processed)
		return p
	}

	total := 0
	for _, path := range matches {
		records, err := loadJSON[domain.EnergyRecord](path)
		if err != nil {
			p.errorf("%s: %v", filepath.Base(path), err)
			continue
		}
		total += len(records)
		checkSnapshot(p, filepath.Base(path), records)
	}
	fmt.Printf("  Records: %d across %d snapshot(s)\n", total, len(matches))
	return p
}

func checkSnapshot(p *phase, name string, records []domain.EnergyRecord) {
	validUnits := map[string]bool{"twh": true, "gw": true}
	seen := map[string]int{}

	for i, r := range records {
		pf := func(format string, args ...any) {
			p.errorf("%s record %d: "+format, append([]any{name, i}, args...)...)
		}

		if r.ID == "" {
			pf("missing ID")
		} else if prev, ok := seen[r.ID]; ok {
			pf("duplicate ID %q (first seen record %d)", r.ID, prev)
		} else {
			seen[r.ID] = i
		}

		if r.Series == "" {
			pf("series is empty")
		}
		if !r.IsAggregateEntity && !alpha3Re.MatchString(r.EntityCode) {
			pf("entity code %q is not alpha-3", r.EntityCode)
		}
		if !validUnits[r.Unit] {
			pf("unit %q not in {twh, gw}", r.Unit)
		}
		if r.Year == 0 {
			pf("year is zero")
		}
		if r.Resolution == domain.ResolutionYearly && r.Month != 0 {
			pf("yearly record has month %d", r.Month)
		}
		if r.Resolution == domain.ResolutionMonthly && r.Month == 0 {
			pf("monthly record has no month")
		}
		if r.Source != "ember" {
			pf("source is %q (expected \"ember\")", r.Source)
		}
		if r.FetchedAt.IsZero() {
			pf("fetched_at is zero")
		}
	}
}

// ── Helpers ──

func loadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty file %s", path)
	}
	return all[0], all[1:], nil
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
