package alerts

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/stackspy/stackspy/internal/types"
)

// SeverityBands maps impact scores to severity. Scores at or above each
// bound fall into that band; the mapping must stay monotonic so a higher
// impact score never yields a lower severity.
type SeverityBands struct {
	Low      int `yaml:"low"`
	Medium   int `yaml:"medium"`
	High     int `yaml:"high"`
	Critical int `yaml:"critical"`
}

// DefaultSeverityBands returns the default impact-score bands
func DefaultSeverityBands() SeverityBands {
	return SeverityBands{
		Low:      2,
		Medium:   4,
		High:     7,
		Critical: 9,
	}
}

// Validate checks that the bands are monotonically increasing
func (b SeverityBands) Validate() error {
	if b.Low > b.Medium || b.Medium > b.High || b.High > b.Critical {
		return fmt.Errorf("severity bands must be non-decreasing (low=%d medium=%d high=%d critical=%d)",
			b.Low, b.Medium, b.High, b.Critical)
	}
	return nil
}

// SeverityFor maps a single change to its severity band. Version bumps
// with parsable semantic versions get a floor based on the release level,
// so an upstream curator that under-scores a major release still alerts.
func (b SeverityBands) SeverityFor(change types.ChangeDetection) Severity {
	score := change.ImpactScore
	sev := SeverityInfo
	switch {
	case score >= b.Critical:
		sev = SeverityCritical
	case score >= b.High:
		sev = SeverityHigh
	case score >= b.Medium:
		sev = SeverityMedium
	case score >= b.Low:
		sev = SeverityLow
	}

	if change.Type == types.ChangeVersionBump {
		if floor := versionBumpFloor(change.OldValue, change.NewValue); floor.Rank() > sev.Rank() {
			sev = floor
		}
	}
	return sev
}

// versionBumpFloor returns the minimum severity for a semver transition:
// major -> high, minor -> medium, patch -> low. Unparsable versions carry
// no floor.
func versionBumpFloor(oldV, newV string) Severity {
	prev, err1 := semver.NewVersion(oldV)
	next, err2 := semver.NewVersion(newV)
	if err1 != nil || err2 != nil {
		return SeverityInfo
	}
	switch {
	case next.Major() != prev.Major():
		return SeverityHigh
	case next.Minor() != prev.Minor():
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// maxSeverity returns the highest severity across the given changes
func (b SeverityBands) maxSeverity(changes []types.ChangeDetection) Severity {
	max := SeverityInfo
	for _, c := range changes {
		if sev := b.SeverityFor(c); sev.Rank() > max.Rank() {
			max = sev
		}
	}
	return max
}
