package dsn

// SimilarityOptions tunes when two readings count as the same serial
type SimilarityOptions struct {
	// MaxEditDistance is the edit distance tolerated between canonical forms
	MaxEditDistance int
	// MinLength is the shortest canonical form that gets any edit tolerance.
	// Shorter strings must match exactly.
	MinLength int
	// Table is the confusion table; nil means DefaultConfusionTable
	Table ConfusionTable
}

// DefaultSimilarityOptions returns a tolerance of one edit for serials of six or more characters
func DefaultSimilarityOptions() SimilarityOptions {
	return SimilarityOptions{MaxEditDistance: 1, MinLength: 6}
}

// Similar reports whether a and b are plausibly two OCR readings of the same serial
func Similar(a, b string, opts SimilarityOptions) bool {
	table := opts.Table
	if table == nil {
		table = defaultTable
	}
	ca, cb := CanonicalForm(a, table), CanonicalForm(b, table)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}

	maxDist := opts.MaxEditDistance
	if min(len(ca), len(cb)) < opts.MinLength {
		maxDist = 0
	}
	if maxDist <= 0 {
		return false
	}
	if abs(len(ca)-len(cb)) > maxDist {
		return false
	}
	return Levenshtein(ca, cb) <= maxDist
}

// Similarity returns 1 minus the normalized edit distance between the
// canonical forms of a and b, in [0,1].
func Similarity(a, b string) float64 {
	ca, cb := CanonicalForm(a, defaultTable), CanonicalForm(b, defaultTable)
	longest := max(len([]rune(ca)), len([]rune(cb)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(ca, cb))/float64(longest)
}

// Levenshtein returns the edit distance between a and b, counted in runes
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	r1, r2 := []rune(a), []rune(b)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = min(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
