package dsn

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ConfusionTable maps letters OCR commonly misreads to the digit they stand for.
type ConfusionTable map[rune]rune

// DefaultConfusions is the table used when none is configured, in "letter:digit" form.
var DefaultConfusions = []string{"O:0", "Q:0", "D:0", "I:1", "L:1", "Z:2", "S:5", "B:8", "G:6"}

var defaultTable = MustParseConfusionTable(DefaultConfusions)

// DefaultConfusionTable returns a copy of the default table
func DefaultConfusionTable() ConfusionTable {
	out := make(ConfusionTable, len(defaultTable))
	for k, v := range defaultTable {
		out[k] = v
	}
	return out
}

// ParseConfusionTable parses "letter:digit" pairs such as "O:0".
func ParseConfusionTable(pairs []string) (ConfusionTable, error) {
	table := make(ConfusionTable, len(pairs))
	for _, pair := range pairs {
		from, to, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(pair)), ":")
		if !ok || utf8.RuneCountInString(from) != 1 || utf8.RuneCountInString(to) != 1 {
			return nil, fmt.Errorf("invalid confusion pair %q, want LETTER:DIGIT", pair)
		}
		f, _ := utf8.DecodeRuneInString(from)
		d, _ := utf8.DecodeRuneInString(to)
		if f < 'A' || f > 'Z' || d < '0' || d > '9' {
			return nil, fmt.Errorf("invalid confusion pair %q, want LETTER:DIGIT", pair)
		}
		table[f] = d
	}
	return table, nil
}

// MustParseConfusionTable is ParseConfusionTable that panics on error
func MustParseConfusionTable(pairs []string) ConfusionTable {
	t, err := ParseConfusionTable(pairs)
	if err != nil {
		panic(err)
	}
	return t
}

// Pairs renders the table back to sorted "letter:digit" pairs
func (t ConfusionTable) Pairs() []string {
	out := make([]string, 0, len(t))
	for r := 'A'; r <= 'Z'; r++ {
		if d, ok := t[r]; ok {
			out = append(out, string(r)+":"+string(d))
		}
	}
	return out
}

// maxConfusableRun bounds how many consecutive confusable letters may be
// rewritten as digits
const maxConfusableRun = 2

var protectedPrefix = regexp.MustCompile(`^(G0[HGB]|BAT|PAD|CTRL|CTL|GLS)`)

// CorrectOCRMistakes rewrites confusable letters that sit inside digit runs
// using the default confusion table. See Correct.
func CorrectOCRMistakes(text string) string {
	return Correct(text, defaultTable)
}

// Correct normalizes text and rewrites confusable letters to digits where the
// context says a digit was intended: a run of at most two confusable letters
// bounded by digits or token edges, with at least one digit neighbour.
// Known product prefixes are never rewritten.
func Correct(text string, table ConfusionTable) string {
	normalized := Normalize(text)
	if len(table) == 0 || normalized == "" {
		return normalized
	}

	out := []byte(normalized)
	start := 0
	for i := 0; i <= len(out); i++ {
		if i < len(out) && !isSeparator(out[i]) {
			continue
		}
		correctToken(out[start:i], table)
		start = i + 1
	}
	return string(out)
}

func correctToken(tok []byte, table ConfusionTable) {
	skip := 0
	if loc := protectedPrefix.FindIndex(tok); loc != nil {
		skip = loc[1]
	}

	for i := skip; i < len(tok); {
		if _, ok := table[rune(tok[i])]; !ok {
			i++
			continue
		}
		j := i
		for j < len(tok) {
			if _, ok := table[rune(tok[j])]; !ok {
				break
			}
			j++
		}

		leftDigit := i > skip && isDigit(tok[i-1])
		leftEdge := i == skip
		rightDigit := j < len(tok) && isDigit(tok[j])
		rightEdge := j == len(tok)

		if j-i <= maxConfusableRun && (leftDigit || rightDigit) && (leftDigit || leftEdge) && (rightDigit || rightEdge) {
			for k := i; k < j; k++ {
				tok[k] = byte(table[rune(tok[k])])
			}
		}
		i = j
	}
}

// CanonicalForm folds text for comparison: normalized, separators removed and
// every confusable letter mapped to its digit regardless of context.
func CanonicalForm(text string, table ConfusionTable) string {
	compact := Compact(Normalize(text))
	if len(table) == 0 {
		return compact
	}
	return strings.Map(func(r rune) rune {
		if d, ok := table[r]; ok {
			return d
		}
		return r
	}, compact)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isSeparator(b byte) bool { return b == ' ' || b == '-' || b == '_' }
