package dsn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectOCRMistakes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"letter inside digits", "BAT-0O1234", "BAT-001234"},
		{"two letters inside digits", "G0G46K12OO56789", "G0G46K120056789"},
		{"trailing letter after digits", "PAD 12345S", "PAD 123455"},
		{"leading letter before digits", "O12345", "012345"},
		{"protected product prefix", "G0G46K123456789", "G0G46K123456789"},
		{"letter next to letter kept", "SN12345", "SN12345"},
		{"long run kept", "12OOO3", "12OOO3"},
		{"no digits", "BOLD", "BOLD"},
		{"per token", "AB 1I2 ZZ", "AB 112 ZZ"},
		{"normalizes first", " bat-0o1234 ", "BAT-001234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CorrectOCRMistakes(tt.input))
		})
	}
}

func TestCorrect_EmptyTable(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "BAT-0O1234", Correct("bat-0o1234", ConfusionTable{}))
}

func TestParseConfusionTable(t *testing.T) {
	t.Parallel()

	table, err := ParseConfusionTable([]string{"o:0", " S:5 "})
	require.NoError(t, err)
	assert.Equal(t, ConfusionTable{'O': '0', 'S': '5'}, table)
	assert.Equal(t, []string{"O:0", "S:5"}, table.Pairs())

	for _, bad := range []string{"O0", "OO:0", "O:A", "1:0", ":"} {
		_, err := ParseConfusionTable([]string{bad})
		assert.Error(t, err, bad)
	}

	assert.Panics(t, func() { MustParseConfusionTable([]string{"bad"}) })
}

func TestDefaultConfusionTable_IsCopy(t *testing.T) {
	t.Parallel()

	table := DefaultConfusionTable()
	table['O'] = '9'
	assert.Equal(t, '0', DefaultConfusionTable()['O'])
	assert.Len(t, DefaultConfusionTable().Pairs(), len(DefaultConfusions))
}

func TestCanonicalForm(t *testing.T) {
	t.Parallel()

	table := DefaultConfusionTable()
	assert.Equal(t, "8AT001234", CanonicalForm("BAT-001234", table))
	assert.Equal(t, CanonicalForm("BAT 0O1234", table), CanonicalForm("BAT-001234", table))
	assert.Equal(t, "BATO", CanonicalForm("bat-o", nil))
}
