package curation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stackspy/stackspy/internal/types"
	"go.uber.org/zap"
)

// ToolStore is the slice of the storage layer the curator needs
type ToolStore interface {
	GetTool(ctx context.Context, id string) (*types.Tool, error)
	ListDueTools(ctx context.Context, tier types.Priority, olderThan time.Time) ([]*types.Tool, error)
	UpdateToolSnapshot(ctx context.Context, id string, snapshot *types.Snapshot, analyzedAt time.Time) error
}

// PageFetcher retrieves the raw page text for a tool URL
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FieldExtractor turns page text into a structured snapshot
type FieldExtractor interface {
	Extract(ctx context.Context, toolName, pageText string) (*types.Snapshot, error)
}

// Config holds curation service configuration
type Config struct {
	// Intervals is the re-analysis cadence per priority tier. A tool is
	// due when its last analysis is older than its tier's interval.
	Intervals map[types.Priority]time.Duration
}

// DefaultConfig returns the default re-analysis cadence
func DefaultConfig() *Config {
	return &Config{
		Intervals: map[types.Priority]time.Duration{
			types.PriorityUrgent:      4 * time.Hour,
			types.PriorityHigh:        12 * time.Hour,
			types.PriorityNormal:      24 * time.Hour,
			types.PriorityLow:         72 * time.Hour,
			types.PriorityMaintenance: 7 * 24 * time.Hour,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	for tier, interval := range c.Intervals {
		if !tier.IsValid() {
			return fmt.Errorf("invalid priority tier: %s", tier)
		}
		if interval <= 0 {
			return fmt.Errorf("interval for tier %s must be positive (got %v)", tier, interval)
		}
	}
	return nil
}

// Service implements Curator on top of the tool store, a page fetcher,
// and a field extractor.
type Service struct {
	store     ToolStore
	fetcher   PageFetcher
	extractor FieldExtractor
	cfg       *Config
	log       *zap.SugaredLogger
}

// NewService creates a curation service
func NewService(store ToolStore, fetcher PageFetcher, extractor FieldExtractor, cfg *Config, log *zap.SugaredLogger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("tool store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("field extractor is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid curation config: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{store: store, fetcher: fetcher, extractor: extractor, cfg: cfg, log: log}, nil
}

// DiscoverDueTools returns ids of tools in the tier whose re-analysis
// cadence has elapsed
func (s *Service) DiscoverDueTools(ctx context.Context, tier types.Priority) ([]string, error) {
	interval, ok := s.cfg.Intervals[tier]
	if !ok {
		return nil, fmt.Errorf("no re-analysis interval configured for tier %s", tier)
	}

	cutoff := time.Now().Add(-interval)
	tools, err := s.store.ListDueTools(ctx, tier, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tools for tier %s: %w", tier, err)
	}

	ids := make([]string, 0, len(tools))
	for _, tool := range tools {
		ids = append(ids, tool.ID)
	}
	return ids, nil
}

// AnalyzeTool re-extracts the tool's fields, diffs them against the stored
// snapshot, persists the new snapshot, and returns the change set.
func (s *Service) AnalyzeTool(ctx context.Context, toolID string) (*types.CurationResult, error) {
	tool, err := s.store.GetTool(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool %s: %w", toolID, err)
	}

	pageText, err := s.fetcher.Fetch(ctx, tool.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", tool.URL, err)
	}

	snapshot, err := s.extractor.Extract(ctx, tool.Name, pageText)
	if err != nil {
		return nil, fmt.Errorf("failed to extract fields for %s: %w", tool.Name, err)
	}

	changes := DiffSnapshots(tool.Snapshot, snapshot)
	analyzedAt := time.Now()

	if err := s.store.UpdateToolSnapshot(ctx, toolID, snapshot, analyzedAt); err != nil {
		// The analysis itself succeeded; report the changes but surface the
		// persistence problem in the log.
		s.log.Warnw("failed to persist tool snapshot", "tool_id", toolID, "error", err)
	}

	return &types.CurationResult{
		ToolID:          toolID,
		ToolName:        tool.Name,
		ChangesDetected: changes,
		AnalyzedAt:      analyzedAt,
	}, nil
}

// HTTPFetcher fetches page text over HTTP with a bounded read
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher with sane timeouts
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: 512 * 1024,
	}
}

// Fetch retrieves the page body as text, capped at maxBytes
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "stackspy/1.0 (+competitive monitoring)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}
