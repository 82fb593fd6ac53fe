package valuation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordProvider(t *testing.T) {
	p := KeywordProvider{}

	tests := []struct {
		name     string
		city     string
		district string
		want     float64
	}{
		{"capital", "Colombo", "", 2.0},
		{"capital suburb naming", "Colombo 7", "", 2.0},
		{"high demand", "Kandy", "", 1.5},
		{"high demand multiword", "Mount Lavinia", "", 1.5},
		{"district fallback", "", "Galle", 1.5},
		{"empty", "", "", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, p.Factor(tt.city, tt.district), 1e-9)
		})
	}
}

func TestKeywordProvider_UnknownCityMildFactor(t *testing.T) {
	p := KeywordProvider{}
	f := p.Factor("Welimada", "")
	assert.Greater(t, f, 1.0)
	assert.LessOrEqual(t, f, 1.3)

	// Longer unknown names earn a slightly higher factor, capped.
	longer := p.Factor("Anuradhapuraya Extended Name", "")
	assert.InDelta(t, 1.3, longer, 1e-9)
}

func TestTableProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Colombo: 2.4\nwelimada: 1.1\nBadFactor: -3\n"), 0o644))

	p, err := NewTableProvider(path)
	require.NoError(t, err)

	assert.InDelta(t, 2.4, p.Factor("colombo", ""), 1e-9)
	assert.InDelta(t, 1.1, p.Factor("Welimada", ""), 1e-9)
	// Non-positive entries are dropped: falls through to the keyword heuristic.
	assert.Greater(t, p.Factor("BadFactor", ""), 1.0)
	// Table miss on city, hit on district.
	assert.InDelta(t, 1.1, p.Factor("Somewhere", "welimada"), 1e-9)
	// Full miss: keyword fallback.
	assert.InDelta(t, 1.5, p.Factor("Kandy", ""), 1e-9)
}

func TestTableProvider_MissingFile(t *testing.T) {
	_, err := NewTableProvider(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
