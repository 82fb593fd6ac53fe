package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntities_ExtractsPlaces(t *testing.T) {
	got := Entities("The asking price in Mount Lavinia compares well with Colombo suburbs.")
	var texts []string
	for _, e := range got {
		texts = append(texts, e.Text)
	}
	assert.Contains(t, texts, "Mount Lavinia")
	assert.Contains(t, texts, "Colombo")
	assert.NotContains(t, texts, "The")
}

func TestEntities_Deduplicates(t *testing.T) {
	got := Entities("Colombo values rise. Colombo stays strong.")
	count := 0
	for _, e := range got {
		if e.Text == "Colombo" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEntities_EmptyText(t *testing.T) {
	assert.Empty(t, Entities(""))
	assert.Empty(t, Entities("all lowercase text only"))
}

func TestSummarize_FirstSentences(t *testing.T) {
	text := "First sentence. Second sentence! Third sentence? Fourth."
	assert.Equal(t, "First sentence. Second sentence!", Summarize(text, 2))
	assert.Equal(t, "First sentence.", Summarize(text, 1))
}

func TestSummarize_FewerSentencesThanRequested(t *testing.T) {
	assert.Equal(t, "Only one.", Summarize("Only one.", 5))
}

func TestSummarize_NoTerminator(t *testing.T) {
	got := Summarize("no punctuation at all", 2)
	require.Equal(t, "no punctuation at all", got)
}

func TestSummarize_DefaultCount(t *testing.T) {
	text := "A. B. C."
	assert.Equal(t, "A. B.", Summarize(text, 0))
}
