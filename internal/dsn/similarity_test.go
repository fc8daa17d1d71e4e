package dsn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"G0G46K1", "G0G46K1", 0},
		{"G0G46K1", "G0G46K7", 1},
		{"ab", "ba", 2},
		{"日本", "日本語", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
		assert.Equal(t, tt.want, Levenshtein(tt.b, tt.a), "symmetric %q vs %q", tt.b, tt.a)
	}
}

func TestSimilar(t *testing.T) {
	t.Parallel()

	opts := DefaultSimilarityOptions()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "G0G46K123456789", "G0G46K123456789", true},
		{"confusion plus one edit", "G0G46K123456789", "GOG46K12345678g", true},
		{"confusion only", "G0G46K123456789", "GOG46K123456789", true},
		{"one edit", "G0G46K123456789", "G0G46K123456780", true},
		{"one deletion", "G0G46K123456789", "G0G46K12345679", true},
		{"separator difference", "BAT-001234", "BAT 001234", true},
		{"two edits", "G0G46K123456789", "G0G46K123456700", false},
		{"short needs exact", "AB12", "AB13", false},
		{"short exact", "AB12", "ab-12", true},
		{"unrelated", "G0G46K123456789", "ZZQ987", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Similar(tt.a, tt.b, opts))
		})
	}
}

func TestSimilar_ZeroTolerance(t *testing.T) {
	t.Parallel()

	opts := SimilarityOptions{MaxEditDistance: 0, MinLength: 6}
	assert.True(t, Similar("BAT-0O1234", "BAT-001234", opts))
	assert.False(t, Similar("BAT-001234", "BAT-001235", opts))
}

func TestSimilar_CustomTable(t *testing.T) {
	t.Parallel()

	opts := SimilarityOptions{MaxEditDistance: 0, MinLength: 6, Table: ConfusionTable{'T': '7'}}
	assert.True(t, Similar("12345T", "123457", opts))
	assert.False(t, Similar("12345O", "123450", opts))
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Similarity("", ""), 1e-9)
	assert.InDelta(t, 1.0, Similarity("BAT-0O1234", "BAT-001234"), 1e-9)
	assert.InDelta(t, 0.9, Similarity("1234567890", "1234567899"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("ABC", ""), 1e-9)
}
