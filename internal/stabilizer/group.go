package stabilizer

import (
	"slices"
	"time"

	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/fusion"
)

// cluster is a set of history entries judged to be readings of one serial.
// The first member is the representative new entries are compared against.
type cluster struct {
	members []Entry
}

// group clusters entries greedily in history order
func group(entries []Entry, opts dsn.SimilarityOptions) []*cluster {
	var clusters []*cluster
	for _, e := range entries {
		if g := findGroup(clusters, e.CorrectedText, opts); g != nil {
			g.members = append(g.members, e)
			continue
		}
		clusters = append(clusters, &cluster{members: []Entry{e}})
	}
	return clusters
}

func findGroup(clusters []*cluster, corrected string, opts dsn.SimilarityOptions) *cluster {
	for _, g := range clusters {
		if dsn.Similar(g.members[0].CorrectedText, corrected, opts) {
			return g
		}
	}
	return nil
}

// frames counts the distinct frames that contributed a member
func (g *cluster) frames() int {
	seen := make(map[time.Time]struct{}, len(g.members))
	for _, m := range g.members {
		seen[m.Timestamp] = struct{}{}
	}
	return len(seen)
}

func (g *cluster) average() float64 {
	if len(g.members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range g.members {
		sum += m.Confidence
	}
	return fusion.RoundConfidence(sum / float64(len(g.members)))
}

// consensus returns the most frequent reading; ties go to the most recent
func (g *cluster) consensus() string {
	counts := make(map[string]int, len(g.members))
	last := make(map[string]int, len(g.members))
	for i, m := range g.members {
		counts[m.NormalizedText]++
		last[m.NormalizedText] = i
	}

	var best string
	for text, n := range counts {
		switch {
		case best == "":
			best = text
		case n > counts[best]:
			best = text
		case n == counts[best] && last[text] > last[best]:
			best = text
		}
	}
	return best
}

func (g *cluster) track() []fusion.BoundingBox {
	var out []fusion.BoundingBox
	for _, m := range g.members {
		if m.BoundingBox != nil {
			out = append(out, *m.BoundingBox)
		}
	}
	return out
}

func (g *cluster) variants() []string {
	var out []string
	for _, m := range g.members {
		if !slices.Contains(out, m.NormalizedText) {
			out = append(out, m.NormalizedText)
		}
	}
	return out
}

func (g *cluster) summary() Group {
	return Group{
		Text:              g.consensus(),
		Variants:          g.variants(),
		Members:           len(g.members),
		Frames:            g.frames(),
		AverageConfidence: g.average(),
		FirstSeen:         g.members[0].Timestamp,
		LastSeen:          g.members[len(g.members)-1].Timestamp,
	}
}
