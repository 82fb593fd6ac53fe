// Package retrieval is an in-memory lexical document store used to
// attach market context to valuation results. Scoring is term overlap
// normalized by document length; no embeddings, no network.
package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/ceylonhomes/valuation-api/internal/model"
)

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

// Doc is one retrievable snippet.
type Doc struct {
	ID   string
	Text string
}

// Store holds the corpus. Immutable after construction; safe for
// concurrent use.
type Store struct {
	docs   []Doc
	tokens []map[string]bool
}

// NewStore indexes the given docs.
func NewStore(docs []Doc) *Store {
	s := &Store{docs: docs, tokens: make([]map[string]bool, len(docs))}
	for i, d := range docs {
		s.tokens[i] = tokenize(d.Text)
	}
	return s
}

// NewSeededStore returns a store preloaded with the built-in Sri Lankan
// market corpus.
func NewSeededStore() *Store {
	return NewStore([]Doc{
		{"market_trends", "Colombo luxury apartment demand remains resilient with supply constraints in prime districts."},
		{"coastal_demand", "Coastal properties around Galle and the southern belt attract tourism-driven rental yields."},
		{"infra_dev", "New highway connectivity improves commute times between Colombo and Kandy, modestly raising suburban values."},
		{"rates_context", "Lending rates and construction costs continue to shape affordability for mid-market houses across Sri Lanka."},
		{"land_scarcity", "Buildable land scarcity within Colombo municipal limits keeps per-perch prices elevated relative to outer suburbs."},
	})
}

// Search returns the top-k docs scoring above zero against the query,
// ordered by descending score. Score = |query terms in doc| / sqrt(doc
// term count).
func (s *Store) Search(query string, k int) []model.RetrievedDoc {
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return nil
	}

	var hits []model.RetrievedDoc
	for i, d := range s.docs {
		overlap := 0
		for t := range qTokens {
			if s.tokens[i][t] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float64(overlap) / math.Sqrt(float64(len(s.tokens[i])))
		hits = append(hits, model.RetrievedDoc{
			DocID:   d.ID,
			Snippet: d.Text,
			Score:   math.Round(score*1000) / 1000,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Context joins the top hits into one prompt-embeddable block.
func (s *Store) Context(query string, k int) string {
	hits := s.Search(query, k)
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, "- "+h.Snippet)
	}
	return strings.Join(parts, "\n")
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range tokenRE.FindAllString(strings.ToLower(text), -1) {
		tokens[t] = true
	}
	return tokens
}
