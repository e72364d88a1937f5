package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
)

// StaticSource serves raw opportunities from an in-memory catalog,
// grouped by category. Real detection (marketplace scraping, feed
// ingestion) lives outside this backend; the portal only consumes
// whatever batch a source hands over.
type StaticSource struct {
	catalog map[string][]opportunity.RawOpportunity
}

// NewStaticSource creates a source over the given catalog
func NewStaticSource(catalog map[string][]opportunity.RawOpportunity) *StaticSource {
	if catalog == nil {
		catalog = make(map[string][]opportunity.RawOpportunity)
	}
	return &StaticSource{catalog: catalog}
}

// LoadSourceFile reads a catalog from a JSON file, keyed by category
func LoadSourceFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source catalog: %w", err)
	}

	var catalog map[string][]opportunity.RawOpportunity
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse source catalog: %w", err)
	}
	return NewStaticSource(catalog), nil
}

// Detect returns the batch for a category. The batch is consumed: a
// second call for the same category returns empty, matching the
// finite, non-restartable contract.
func (s *StaticSource) Detect(ctx context.Context, category string) ([]opportunity.RawOpportunity, error) {
	batch := s.catalog[category]
	delete(s.catalog, category)
	return batch, nil
}
