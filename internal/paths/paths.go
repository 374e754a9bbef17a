// Package paths defines the on-disk layout for fetched and processed data.
// Every component resolves file locations through a Layout so the directory
// structure is declared in exactly one place.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout holds the resolved directories used across the pipeline.
type Layout struct {
	// Data is the top-level data directory.
	Data string
	// Raw holds downloaded source files and the Ember response cache.
	Raw string
	// Processed holds normalized JSON snapshots.
	Processed string
	// NaturalEarth holds the Natural Earth archive and its extracted shapefiles.
	NaturalEarth string
	// Logs holds rotated log output, a sibling of the data directory.
	Logs string
}

// NewLayout derives the standard layout from the data directory.
func NewLayout(dataDir string) Layout {
	raw := filepath.Join(dataDir, "raw")
	return Layout{
		Data:         dataDir,
		Raw:          raw,
		Processed:    filepath.Join(dataDir, "processed"),
		NaturalEarth: filepath.Join(raw, "natural_earth"),
		Logs:         filepath.Join(filepath.Dir(dataDir), "logs"),
	}
}

// Ensure creates every directory in the layout. Safe to call repeatedly.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.Data, l.Raw, l.Processed, l.NaturalEarth, l.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
