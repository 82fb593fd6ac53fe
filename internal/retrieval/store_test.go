package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_RanksByOverlap(t *testing.T) {
	s := NewStore([]Doc{
		{"a", "colombo apartment demand"},
		{"b", "colombo apartment demand and colombo supply with many extra words padding the document"},
		{"c", "rural paddy fields"},
	})

	hits := s.Search("colombo apartment demand", 5)
	require.Len(t, hits, 2)
	// Same overlap, shorter doc scores higher.
	assert.Equal(t, "a", hits[0].DocID)
	assert.Equal(t, "b", hits[1].DocID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_TopK(t *testing.T) {
	s := NewSeededStore()
	hits := s.Search("colombo property market values", 2)
	assert.LessOrEqual(t, len(hits), 2)
}

func TestSearch_NoMatch(t *testing.T) {
	s := NewSeededStore()
	assert.Empty(t, s.Search("zzzz qqqq", 3))
	assert.Empty(t, s.Search("", 3))
	assert.Empty(t, s.Search("!!!", 3))
}

func TestSearch_CaseInsensitive(t *testing.T) {
	s := NewSeededStore()
	lower := s.Search("colombo apartment", 3)
	upper := s.Search("COLOMBO APARTMENT", 3)
	assert.Equal(t, lower, upper)
}

func TestContext_JoinsSnippets(t *testing.T) {
	s := NewSeededStore()
	ctx := s.Context("colombo apartment demand", 2)
	assert.Contains(t, ctx, "- ")

	assert.Empty(t, s.Context("zzzz", 2))
}
