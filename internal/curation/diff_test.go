package curation

import (
	"testing"

	"github.com/stackspy/stackspy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffNilPreviousSeedsBaseline(t *testing.T) {
	next := &types.Snapshot{Version: "1.0.0", Price: "$10/mo"}
	assert.Empty(t, DiffSnapshots(nil, next))
	assert.Empty(t, DiffSnapshots(next, nil))
}

func TestDiffNoChanges(t *testing.T) {
	snap := &types.Snapshot{
		Version:     "1.2.3",
		Price:       "$10/mo",
		Features:    []string{"builds", "caching"},
		Description: "CI service",
	}
	assert.Empty(t, DiffSnapshots(snap, snap))
}

func TestDiffVersionSemverLevels(t *testing.T) {
	tests := []struct {
		name       string
		oldV, newV string
		impact     int
	}{
		{"major", "1.2.3", "2.0.0", impactVersionMajor},
		{"minor", "1.2.3", "1.3.0", impactVersionMinor},
		{"patch", "1.2.3", "1.2.4", impactVersionPatch},
		{"unparsable", "build-2024", "build-2025", impactVersionOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := DiffSnapshots(
				&types.Snapshot{Version: tt.oldV},
				&types.Snapshot{Version: tt.newV},
			)
			require.Len(t, changes, 1)
			assert.Equal(t, types.ChangeVersionBump, changes[0].Type)
			assert.Equal(t, tt.impact, changes[0].ImpactScore)
			assert.Equal(t, tt.oldV, changes[0].OldValue)
			assert.Equal(t, tt.newV, changes[0].NewValue)
		})
	}
}

func TestDiffEmptyNewVersionIgnored(t *testing.T) {
	// Extraction that fails to find a version must not report a removal
	changes := DiffSnapshots(
		&types.Snapshot{Version: "1.2.3"},
		&types.Snapshot{},
	)
	assert.Empty(t, changes)
}

func TestDiffPriceChange(t *testing.T) {
	changes := DiffSnapshots(
		&types.Snapshot{Price: "$10/mo"},
		&types.Snapshot{Price: "$20/mo"},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangePriceChange, changes[0].Type)
	assert.Equal(t, impactPriceChange, changes[0].ImpactScore)
	assert.Contains(t, changes[0].Summary, "$10/mo")
	assert.Contains(t, changes[0].Summary, "$20/mo")
}

func TestDiffFeatures(t *testing.T) {
	changes := DiffSnapshots(
		&types.Snapshot{Features: []string{"builds", "caching", "legacy"}},
		&types.Snapshot{Features: []string{"builds", "caching", "sso"}},
	)
	require.Len(t, changes, 2)

	var added, removed *types.ChangeDetection
	for i := range changes {
		switch changes[i].Type {
		case types.ChangeAdded:
			added = &changes[i]
		case types.ChangeRemoved:
			removed = &changes[i]
		}
	}
	require.NotNil(t, added)
	require.NotNil(t, removed)
	assert.Equal(t, "sso", added.NewValue)
	assert.Equal(t, impactFeatureAdded, added.ImpactScore)
	assert.Equal(t, "legacy", removed.OldValue)
	assert.Equal(t, impactFeatureGone, removed.ImpactScore)
}

func TestDiffDescriptionRequiresBothSides(t *testing.T) {
	// A description appearing for the first time is not a modification
	changes := DiffSnapshots(
		&types.Snapshot{},
		&types.Snapshot{Description: "now with words"},
	)
	assert.Empty(t, changes)

	changes = DiffSnapshots(
		&types.Snapshot{Description: "old words"},
		&types.Snapshot{Description: "new words"},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeModified, changes[0].Type)
}

func TestDiffMultipleChanges(t *testing.T) {
	changes := DiffSnapshots(
		&types.Snapshot{Version: "1.0.0", Price: "$10/mo", Features: []string{"a"}},
		&types.Snapshot{Version: "2.0.0", Price: "$15/mo", Features: []string{"a", "b"}},
	)
	assert.Len(t, changes, 3)
}
