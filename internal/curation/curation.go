// Package curation is the analysis collaborator consumed by the monitor:
// it discovers tools due for re-processing and produces a change set per
// tool by re-extracting its public fields and diffing them against the
// stored snapshot.
package curation

import (
	"context"

	"github.com/stackspy/stackspy/internal/types"
)

// Curator is the contract the scheduler consumes. AnalyzeTool may block on
// network I/O and may fail transiently; callers treat per-tool failures as
// recoverable.
type Curator interface {
	// DiscoverDueTools returns tools in the given tier whose
	// next-scheduled-processing time has elapsed. Paused tools are
	// excluded.
	DiscoverDueTools(ctx context.Context, tier types.Priority) ([]string, error)

	// AnalyzeTool performs the scrape/extract/diff cycle for one tool and
	// returns the detected change set.
	AnalyzeTool(ctx context.Context, toolID string) (*types.CurationResult, error)
}
