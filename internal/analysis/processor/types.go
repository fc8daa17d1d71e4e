package processor

import (
	"context"
	"time"

	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/environment"
	"github.com/scanline/dsnscan/internal/fusion"
)

// Candidate is one text fragment reported by the recognition engine
type Candidate struct {
	Text        string              `json:"text" yaml:"text"`
	Confidence  *float64            `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	BoundingBox *fusion.BoundingBox `json:"bounding_box,omitempty" yaml:"bbox,omitempty"`
}

// Frame is the recognition output of one camera frame
type Frame struct {
	Timestamp  time.Time   `json:"timestamp" yaml:"timestamp"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
	// Expected is the component slot being scanned; ComponentUnknown infers it from the text
	Expected dsn.ComponentType   `json:"expected,omitempty" yaml:"expected,omitempty"`
	Sensors  *environment.Sample `json:"sensors,omitempty" yaml:"sensors,omitempty"`
}

// Reading is one scored serial of a frame
type Reading struct {
	fusion.EnhancedResult
	RawText              string  `json:"raw_text"`
	StabilizedConfidence float64 `json:"stabilized_confidence"`
	GroupAverage         float64 `json:"group_average"`
	Frames               int     `json:"frames"`
	FirstSeen            bool    `json:"first_seen"`
}

// FrameResult is the outcome of one analysis pass
type FrameResult struct {
	SessionID        string          `json:"session_id"`
	FrameID          uint64          `json:"frame_id"`
	Timestamp        time.Time       `json:"timestamp"`
	State            fusion.Decision `json:"state"`
	Readings         []Reading       `json:"readings"`
	EnvironmentScore float64         `json:"environment_score"`
	ConfigVersion    uint64          `json:"config_version"`
	Duration         time.Duration   `json:"duration"`
}

// Best returns the highest ranked reading
func (r FrameResult) Best() (Reading, bool) {
	if len(r.Readings) == 0 {
		return Reading{}, false
	}
	return r.Readings[0], true
}

// Publisher delivers frame results to an outside consumer
type Publisher interface {
	Publish(ctx context.Context, result FrameResult) error
}

// ResultHandler receives every frame result produced by the worker
type ResultHandler func(FrameResult)
