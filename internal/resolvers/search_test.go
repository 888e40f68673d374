package resolvers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchIndex(t *testing.T) {
	index, err := NewSearchIndex()
	require.NoError(t, err)
	defer index.Close()

	empty, err := index.Search(map[string]string{"username": "*"})
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, index.Index("1", map[string]string{"username": "Alice", "email": "alice@example.com"}))
	require.NoError(t, index.Index("2", map[string]string{"username": "alfred", "email": "alfred@example.org"}))
	require.NoError(t, index.Index("3", map[string]string{"username": "bob", "email": "bob@example.com"}))

	tests := []struct {
		name     string
		criteria map[string]string
		expected []string
	}{
		{"all", map[string]string{}, []string{"1", "2", "3"}},
		{"star", map[string]string{"username": "*"}, []string{"1", "2", "3"}},
		{"exact case-insensitive", map[string]string{"username": "ALICE"}, []string{"1"}},
		{"prefix", map[string]string{"username": "al*"}, []string{"1", "2"}},
		{"conjunction", map[string]string{"username": "al*", "email": "*.com"}, []string{"1"}},
		{"no match", map[string]string{"username": "carol"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := index.Search(tt.criteria)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, ids)
		})
	}

	require.NoError(t, index.Delete("1"))
	ids, err := index.Search(map[string]string{"username": "al*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)
}
