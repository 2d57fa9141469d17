package curation

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/stackspy/stackspy/internal/types"
)

// Impact score baselines per change kind. The alert engine maps scores to
// severity bands, so these must stay monotonic with respect to how much a
// change matters to an operator.
const (
	impactVersionPatch   = 3
	impactVersionMinor   = 5
	impactVersionMajor   = 8
	impactVersionOther   = 4
	impactPriceChange    = 7
	impactFeatureAdded   = 5
	impactFeatureGone    = 6
	impactDescriptionMod = 2
)

// DiffSnapshots compares the previous snapshot of a tool against a fresh
// extraction and returns the detected changes. A nil previous snapshot
// yields no changes: the first extraction only seeds the baseline.
func DiffSnapshots(prev, next *types.Snapshot) []types.ChangeDetection {
	if prev == nil || next == nil {
		return nil
	}

	var changes []types.ChangeDetection

	if next.Version != "" && next.Version != prev.Version {
		changes = append(changes, diffVersion(prev.Version, next.Version))
	}

	if next.Price != "" && next.Price != prev.Price {
		changes = append(changes, types.ChangeDetection{
			Type:        types.ChangePriceChange,
			FieldName:   "price",
			OldValue:    prev.Price,
			NewValue:    next.Price,
			Confidence:  0.9,
			Summary:     fmt.Sprintf("price changed from %q to %q", prev.Price, next.Price),
			ImpactScore: impactPriceChange,
		})
	}

	changes = append(changes, diffFeatures(prev.Features, next.Features)...)

	if next.Description != "" && prev.Description != "" && next.Description != prev.Description {
		changes = append(changes, types.ChangeDetection{
			Type:        types.ChangeModified,
			FieldName:   "description",
			OldValue:    prev.Description,
			NewValue:    next.Description,
			Confidence:  0.6,
			Summary:     "description changed",
			ImpactScore: impactDescriptionMod,
		})
	}

	return changes
}

// diffVersion classifies a version change. When both sides parse as
// semantic versions the impact scales with the release level; otherwise a
// generic bump is reported.
func diffVersion(oldV, newV string) types.ChangeDetection {
	change := types.ChangeDetection{
		Type:        types.ChangeVersionBump,
		FieldName:   "version",
		OldValue:    oldV,
		NewValue:    newV,
		Confidence:  0.95,
		Summary:     fmt.Sprintf("version changed from %s to %s", oldV, newV),
		ImpactScore: impactVersionOther,
	}

	prev, err1 := semver.NewVersion(oldV)
	next, err2 := semver.NewVersion(newV)
	if err1 != nil || err2 != nil {
		return change
	}

	switch {
	case next.Major() != prev.Major():
		change.ImpactScore = impactVersionMajor
		change.Summary = fmt.Sprintf("major version bump: %s -> %s", oldV, newV)
	case next.Minor() != prev.Minor():
		change.ImpactScore = impactVersionMinor
		change.Summary = fmt.Sprintf("minor version bump: %s -> %s", oldV, newV)
	default:
		change.ImpactScore = impactVersionPatch
		change.Summary = fmt.Sprintf("patch release: %s -> %s", oldV, newV)
	}
	return change
}

func diffFeatures(prev, next []string) []types.ChangeDetection {
	prevSet := make(map[string]bool, len(prev))
	for _, f := range prev {
		prevSet[f] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, f := range next {
		nextSet[f] = true
	}

	var changes []types.ChangeDetection
	for _, f := range next {
		if !prevSet[f] {
			changes = append(changes, types.ChangeDetection{
				Type:        types.ChangeAdded,
				FieldName:   "features",
				NewValue:    f,
				Confidence:  0.8,
				Summary:     fmt.Sprintf("new feature: %s", f),
				ImpactScore: impactFeatureAdded,
			})
		}
	}
	for _, f := range prev {
		if !nextSet[f] {
			changes = append(changes, types.ChangeDetection{
				Type:        types.ChangeRemoved,
				FieldName:   "features",
				OldValue:    f,
				Confidence:  0.8,
				Summary:     fmt.Sprintf("feature removed: %s", f),
				ImpactScore: impactFeatureGone,
			})
		}
	}
	return changes
}
