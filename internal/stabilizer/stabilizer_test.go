package stabilizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/fusion"
)

const controllerDSN = "G0G46K123456789"

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func frame(i int) time.Time { return t0.Add(time.Duration(i) * 100 * time.Millisecond) }

func candidate(text string, confidence float64) Candidate {
	return Candidate{
		Text:          text,
		Confidence:    confidence,
		BoundingBox:   &fusion.BoundingBox{X: 10, Y: 20, Width: 120, Height: 16},
		ComponentType: dsn.ComponentController,
	}
}

func TestStabilize_FirstSeen(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)

	results := s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.95)}, frame(0))
	require.Len(t, results, 1)
	r := results[0]
	assert.True(t, r.FirstSeen)
	assert.Equal(t, controllerDSN, r.Text)
	assert.InDelta(t, 0.95, r.Confidence, 1e-9, "high confidence passes through unchanged")
	assert.False(t, r.RequiresManualVerification)
	assert.Equal(t, 1, r.Frames)

	s.Reset()
	results = s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.8)}, frame(0))
	require.Len(t, results, 1)
	assert.InDelta(t, 0.8, results[0].Confidence, 1e-9)
	assert.True(t, results[0].RequiresManualVerification)
}

func TestStabilize_GroupAverage(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)

	s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.95)}, frame(0))
	results := s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.85)}, frame(1))
	require.Len(t, results, 1)

	r := results[0]
	assert.False(t, r.FirstSeen)
	assert.Equal(t, 2, r.Frames)
	assert.InDelta(t, 0.9, r.GroupAverage, 1e-9)
	assert.InDelta(t, 0.875, r.Confidence, 1e-9)
	assert.False(t, r.RequiresManualVerification, "group average reaches the threshold")
	assert.Len(t, r.Track, 2)

	results = s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.5)}, frame(2))
	require.Len(t, results, 1)
	assert.True(t, results[0].RequiresManualVerification, "group average dropped below the threshold")
}

func TestStabilize_ConsensusOutvotesNoise(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)

	for i := range 4 {
		s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.9)}, frame(i))
	}
	results := s.Stabilize(cfg, []Candidate{candidate("G0G46K12345678O", 0.9)}, frame(4))

	require.Len(t, results, 1)
	assert.Equal(t, controllerDSN, results[0].Text, "misread is promoted to the consensus")
	assert.Equal(t, "G0G46K12345678O", results[0].Candidate.Text)
	assert.Equal(t, 5, results[0].Frames)

	groups := s.Groups(cfg, frame(4))
	require.Len(t, groups, 1)
	assert.Equal(t, controllerDSN, groups[0].Text)
	assert.Equal(t, []string{controllerDSN, "G0G46K12345678O"}, groups[0].Variants)
	assert.Equal(t, 5, groups[0].Members)
	assert.Equal(t, frame(0), groups[0].FirstSeen)
	assert.Equal(t, frame(4), groups[0].LastSeen)
}

func TestStabilize_DistinctSerialsStayApart(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)

	s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.9)}, frame(0))
	results := s.Stabilize(cfg, []Candidate{
		candidate("PAD-123456", 0.92),
		candidate(controllerDSN, 0.9),
	}, frame(1))

	require.Len(t, results, 2)
	assert.Equal(t, controllerDSN, results[0].Text, "better supported group ranks first")
	assert.Equal(t, 2, results[0].Frames)
	assert.Equal(t, "PAD-123456", results[1].Text)
	assert.True(t, results[1].FirstSeen)
	assert.True(t, results[1].RequiresManualVerification, "a new serial next to an established one is not trusted yet")
}

// noisyReads are OCR variants of controllerDSN that all share its canonical form
var noisyReads = []string{controllerDSN, "G0G46K12345678O", controllerDSN, "G0G46K1234S6789"}

const outlier = "XQ7ZK2PL9W"

func TestStabilize_OutlierFrameDoesNotOverrideConsensus(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)
	for i, text := range noisyReads {
		s.Stabilize(cfg, []Candidate{candidate(text, 0.9)}, frame(i))
	}

	results := s.Stabilize(cfg, []Candidate{candidate(outlier, 0.95)}, frame(4))
	require.Len(t, results, 1, "only groups touched by the frame are reported")
	assert.Equal(t, outlier, results[0].Text)
	assert.True(t, results[0].FirstSeen)
	assert.True(t, results[0].RequiresManualVerification, "outlier contradicts the established group")

	groups := s.Groups(cfg, frame(4))
	require.Len(t, groups, 2)
	assert.Equal(t, controllerDSN, groups[0].Text)
	assert.Equal(t, 4, groups[0].Frames)
	assert.Equal(t, outlier, groups[1].Text)
	assert.Equal(t, 1, groups[1].Frames)
}

func TestStabilize_OutlierSharingFrameRanksLast(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)
	for i, text := range noisyReads {
		s.Stabilize(cfg, []Candidate{candidate(text, 0.9)}, frame(i))
	}

	results := s.Stabilize(cfg, []Candidate{
		candidate(outlier, 0.95),
		candidate("GOG46K123456789", 0.85),
	}, frame(4))
	require.Len(t, results, 2)
	assert.Equal(t, controllerDSN, results[0].Text, "noisy reading promoted to the consensus")
	assert.Equal(t, 5, results[0].Frames)
	assert.False(t, results[0].FirstSeen)
	assert.Equal(t, outlier, results[1].Text)
	assert.Equal(t, 1, results[1].Frames)
	assert.True(t, results[1].RequiresManualVerification)

	groups := s.Groups(cfg, frame(4))
	require.Len(t, groups, 2)
	assert.Equal(t, controllerDSN, groups[0].Text)
	assert.Equal(t, 5, groups[0].Frames)
	assert.Equal(t, outlier, groups[1].Text)
}

func TestStabilize_SameFrameDuplicatesCountOnce(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)

	results := s.Stabilize(cfg, []Candidate{
		candidate(controllerDSN, 0.7),
		candidate(controllerDSN, 0.8),
	}, frame(0))

	require.Len(t, results, 1, "one result per group")
	assert.True(t, results[0].FirstSeen)
	assert.InDelta(t, 0.8, results[0].Candidate.Confidence, 1e-9, "best candidate represents the group")
	assert.Len(t, s.History(), 2)
}

func TestStabilize_PrunesStaleEntries(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)

	s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.9)}, t0)
	results := s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.9)}, t0.Add(cfg.Stabilizer.HistoryTimeout+time.Millisecond))

	require.Len(t, results, 1)
	assert.True(t, results[0].FirstSeen)
	assert.Len(t, s.History(), 1)
	assert.Empty(t, s.Groups(cfg, t0.Add(10*time.Second)))
}

func TestStabilize_HistoryIsBounded(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	cfg.Stabilizer.MaxEntries = 4
	s := New(64)

	for i := range 10 {
		s.Stabilize(cfg, []Candidate{candidate(controllerDSN, 0.9)}, frame(i))
	}
	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, frame(6), history[0].Timestamp)
	assert.Equal(t, frame(9), history[3].Timestamp)
}

func TestStabilize_NoCandidates(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	s := New(cfg.Stabilizer.MaxEntries)
	assert.Empty(t, s.Stabilize(cfg, nil, frame(0)))
}

func TestStabilize_CorrectionFeedsGrouping(t *testing.T) {
	t.Parallel()

	cfg := conf.Default()
	cfg.Stabilizer.MaxEditDistance = 0
	s := New(cfg.Stabilizer.MaxEntries)

	s.Stabilize(cfg, []Candidate{candidate("BAT-001234", 0.9)}, frame(0))
	results := s.Stabilize(cfg, []Candidate{candidate("BAT-OO1234", 0.9)}, frame(1))

	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Frames)
	assert.Equal(t, "BAT-001234", s.History()[1].CorrectedText)
}
