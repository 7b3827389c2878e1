package catalog

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Index is a searchable in-memory index over the tool catalog. It powers
// candidate discovery when a query should narrow the recommendation set.
type Index struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
}

// NewIndex builds an in-memory Bleve index over the full catalog.
func NewIndex() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := index.NewBatch()
	for _, tool := range tools {
		doc := map[string]interface{}{
			"name":        tool.Name,
			"description": tool.Description,
		}
		if err := batch.Index(tool.Name, doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to index tool %s: %w", tool.Name, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to batch index tools: %w", err)
	}

	return &Index{bleveIndex: index}, nil
}

// buildIndexMapping creates the Bleve index mapping for tool documents.
func buildIndexMapping() mapping.IndexMapping {
	toolMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	toolMapping.AddFieldMappingsAt("name", nameFieldMapping)

	descFieldMapping := bleve.NewTextFieldMapping()
	toolMapping.AddFieldMappingsAt("description", descFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", toolMapping)

	return indexMapping
}

// Search returns the names of tools matching the query, best first. An empty
// query or no hits returns an empty slice; callers fall back to the full
// catalog in that case.
func (i *Index) Search(query string, limit int) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	if query == "" {
		return []string{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	searchRequest := bleve.NewSearchRequestOptions(matchQuery, limit, 0, false)

	results, err := i.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	names := make([]string, 0, len(results.Hits))
	for _, hit := range results.Hits {
		names = append(names, hit.ID)
	}
	return names, nil
}

// Count returns the number of indexed tools.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Close releases the index resources.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}
