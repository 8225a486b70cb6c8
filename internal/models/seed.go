package models

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// SeedSnapshot returns a fresh copy of the built-in menu.
func SeedSnapshot() (Snapshot, error) {
	return ParseSnapshotYAML(seedYAML)
}

// ParseSnapshotYAML decodes a snapshot in the seed file format.
func ParseSnapshotYAML(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse menu yaml: %w", err)
	}
	if snap.Sections == nil {
		return Snapshot{}, ErrEmptySnapshot
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSectionData, err)
	}
	return snap, nil
}
