// Package nlp provides lightweight text enrichment: proper-noun entity
// extraction and a leading-sentence summarizer. Pattern matching only.
package nlp

import (
	"regexp"
	"strings"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

// properNounRE matches capitalized word runs, allowing multi-word names
// like "Mount Lavinia".
var properNounRE = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*\b`)

var sentenceRE = regexp.MustCompile(`[^.!?]+[.!?]`)

// stopwords are sentence-initial words that look like proper nouns but
// are not entities.
var stopwords = map[string]bool{
	"The": true, "A": true, "An": true, "This": true, "That": true,
	"These": true, "Those": true, "It": true, "At": true, "In": true,
	"On": true, "With": true, "Within": true, "Review": true, "Key": true,
}

// Entities extracts unique proper-noun spans from text, labeled PLACE.
func Entities(text string) []model.Entity {
	seen := make(map[string]bool)
	var out []model.Entity
	for _, m := range properNounRE.FindAllString(text, -1) {
		if stopwords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, model.Entity{Text: m, Label: "PLACE"})
	}
	return out
}

// Summarize returns the first n sentences of text, trimmed.
func Summarize(text string, n int) string {
	if n <= 0 {
		n = 2
	}
	sentences := sentenceRE.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	return strings.Join(sentences, " ")
}
