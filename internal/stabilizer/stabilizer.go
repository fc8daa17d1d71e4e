// Package stabilizer suppresses transient misreads by grouping readings of the
// same serial across recent frames.
package stabilizer

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/fusion"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/ringbuf"
)

// Candidate is one text fragment read in the current frame
type Candidate struct {
	Text          string              // normalized text
	Confidence    float64             // native confidence, estimated when the engine reported none
	BoundingBox   *fusion.BoundingBox // nil when the engine reported no box
	ComponentType dsn.ComponentType   // expected or inferred type, selects the threshold
}

// Entry is one reading kept in the frame history
type Entry struct {
	NormalizedText string              `json:"normalized_text"`
	CorrectedText  string              `json:"corrected_text"`
	Confidence     float64             `json:"confidence"`
	Timestamp      time.Time           `json:"timestamp"`
	BoundingBox    *fusion.BoundingBox `json:"bounding_box,omitempty"`
}

// Result is a candidate after stabilization
type Result struct {
	Candidate Candidate `json:"candidate"`
	// Text is the group consensus, the most frequent reading in the group
	Text string `json:"text"`
	// Confidence is the native confidence blended with the group average
	Confidence                 float64 `json:"confidence"`
	GroupAverage               float64 `json:"group_average"`
	Frames                     int     `json:"frames"`
	FirstSeen                  bool    `json:"first_seen"`
	RequiresManualVerification bool    `json:"requires_manual_verification"`
	// Track holds the group's boxes oldest first
	Track []fusion.BoundingBox `json:"-"`
}

// Group summarizes the readings of one serial in the history window
type Group struct {
	Text              string    `json:"text"`
	Variants          []string  `json:"variants"`
	Members           int       `json:"members"`
	Frames            int       `json:"frames"`
	AverageConfidence float64   `json:"average_confidence"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
}

// Stabilizer owns the frame history of one scan session.
// It is safe for concurrent use.
type Stabilizer struct {
	mu      sync.Mutex
	history *ringbuf.Buffer[Entry]
	log     logger.Logger
}

// New returns a stabilizer whose history holds maxEntries readings
func New(maxEntries int) *Stabilizer {
	return &Stabilizer{
		history: ringbuf.New[Entry](maxEntries),
		log:     logger.Global().Module("stabilizer"),
	}
}

// Stabilize records the candidates of one frame taken at now and returns one
// result per reading group touched by the frame, best supported first.
//
// A reading seen in at least two distinct frames gets the mean of its native
// confidence and the group average, and its manual verification flag clears
// only when the group average reaches the component's auto-accept threshold.
// A first-seen reading keeps its confidence; it is flagged unless its native
// confidence reaches the high confidence cutoff and no other group in the
// window is already seen in two or more frames.
func (s *Stabilizer) Stabilize(cfg *conf.Settings, candidates []Candidate, now time.Time) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.Cap() != cfg.Stabilizer.MaxEntries {
		s.history.Resize(cfg.Stabilizer.MaxEntries)
	}

	table := cfg.Stabilizer.ConfusionTable()
	for _, c := range candidates {
		if evicted := s.history.Push(Entry{
			NormalizedText: c.Text,
			CorrectedText:  dsn.Correct(c.Text, table),
			Confidence:     c.Confidence,
			Timestamp:      now,
			BoundingBox:    c.BoundingBox,
		}); evicted {
			s.log.Trace("frame history full, evicted oldest entry")
		}
	}

	timeout := cfg.Stabilizer.HistoryTimeout
	if pruned := s.history.Retain(func(e Entry) bool { return now.Sub(e.Timestamp) <= timeout }); pruned > 0 {
		s.log.Trace("pruned stale readings", logger.Int("count", pruned))
	}

	opts := cfg.Stabilizer.SimilarityOptions()
	groups := group(s.history.Snapshot(), opts)

	// best candidate per group
	best := make(map[*cluster]Candidate)
	for _, c := range candidates {
		g := findGroup(groups, dsn.Correct(c.Text, table), opts)
		if g == nil {
			continue
		}
		if prev, ok := best[g]; !ok || c.Confidence > prev.Confidence {
			best[g] = c
		}
	}

	support := 0
	for _, g := range groups {
		support = max(support, g.frames())
	}

	results := make([]Result, 0, len(best))
	for g, c := range best {
		results = append(results, s.resolve(cfg, g, c, support))
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		if n := cmp.Compare(b.Frames, a.Frames); n != 0 {
			return n
		}
		if n := cmp.Compare(b.Confidence, a.Confidence); n != 0 {
			return n
		}
		return cmp.Compare(a.Text, b.Text)
	})
	return results
}

// resolve scores candidate c against its group g. support is the frame count
// of the best supported group in the window.
func (s *Stabilizer) resolve(cfg *conf.Settings, g *cluster, c Candidate, support int) Result {
	res := Result{
		Candidate:    c,
		Text:         c.Text,
		Confidence:   c.Confidence,
		GroupAverage: g.average(),
		Frames:       g.frames(),
		Track:        g.track(),
	}

	if res.Frames < 2 {
		res.FirstSeen = true
		contested := support >= 2
		res.RequiresManualVerification = contested || c.Confidence < cfg.OCR.HighConfidenceCutoff
		if contested {
			s.log.Debug("first-seen reading contradicts an established group",
				logger.String("reading", c.Text),
				logger.Int("established_frames", support))
		}
		return res
	}

	_, manual, _ := cfg.OCR.Thresholds(c.ComponentType)
	res.Text = g.consensus()
	res.Confidence = (c.Confidence + res.GroupAverage) / 2
	res.RequiresManualVerification = res.GroupAverage < manual
	if res.Text != c.Text {
		s.log.Debug("reading promoted to consensus",
			logger.String("reading", c.Text),
			logger.String("consensus", res.Text),
			logger.Int("frames", res.Frames))
	}
	return res
}

// Groups summarizes the readings within the history timeout of now, largest first
func (s *Stabilizer) Groups(cfg *conf.Settings, now time.Time) []Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	for _, e := range s.history.All {
		if now.Sub(e.Timestamp) <= cfg.Stabilizer.HistoryTimeout {
			entries = append(entries, e)
		}
	}

	clusters := group(entries, cfg.Stabilizer.SimilarityOptions())
	out := make([]Group, 0, len(clusters))
	for _, g := range clusters {
		out = append(out, g.summary())
	}
	slices.SortStableFunc(out, func(a, b Group) int {
		if n := cmp.Compare(b.Frames, a.Frames); n != 0 {
			return n
		}
		return cmp.Compare(b.AverageConfidence, a.AverageConfidence)
	})
	return out
}

// History returns a copy of the frame history, oldest first
func (s *Stabilizer) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Snapshot()
}

// Reset clears the frame history
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}
