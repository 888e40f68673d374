package resolvers

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchIndex is an in-memory index over user attributes for backends that
// cannot filter server side. Values are indexed lowercased and unanalysed so
// criteria match whole values, with "*" as wildcard.
type SearchIndex struct {
	index bleve.Index
}

func NewSearchIndex() (*SearchIndex, error) {
	mapping := bleve.NewIndexMapping()
	mapping.DefaultAnalyzer = keyword.Name

	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create user search index: %w", err)
	}
	return &SearchIndex{index: index}, nil
}

func (s *SearchIndex) Index(id string, attributes map[string]string) error {
	doc := make(map[string]any, len(attributes))
	for key, value := range attributes {
		doc[key] = strings.ToLower(value)
	}
	if err := s.index.Index(id, doc); err != nil {
		return fmt.Errorf("failed to index user %s: %w", id, err)
	}
	return nil
}

func (s *SearchIndex) Delete(id string) error {
	return s.index.Delete(id)
}

// Search returns the ids of all documents matching every criterion.
func (s *SearchIndex) Search(criteria map[string]string) ([]string, error) {
	total, err := s.index.DocCount()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	var queries []query.Query
	for field, value := range criteria {
		value = strings.ToLower(value)
		if value == "*" {
			continue
		}
		if strings.ContainsAny(value, "*?") {
			wildcard := bleve.NewWildcardQuery(value)
			wildcard.SetField(field)
			queries = append(queries, wildcard)
		} else {
			term := bleve.NewTermQuery(value)
			term.SetField(field)
			queries = append(queries, term)
		}
	}

	var searchQuery query.Query
	if len(queries) == 0 {
		searchQuery = bleve.NewMatchAllQuery()
	} else {
		searchQuery = bleve.NewConjunctionQuery(queries...)
	}

	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Size = int(total) // Return all matches

	result, err := s.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (s *SearchIndex) Close() error {
	return s.index.Close()
}
