// Package environment turns ambient light and accelerometer samples into a
// single score describing how favorable conditions are for reading text.
package environment

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/ringbuf"
)

const (
	lightWeight  = 0.7
	motionWeight = 0.3

	// accelCapacity bounds the accelerometer history; the motion window is
	// applied on top of it when scoring
	accelCapacity = 256
)

// Sample is one push from the sensor layer. Either reading may be absent.
type Sample struct {
	Lux          *float64  `json:"lux,omitempty"`
	Acceleration *r3.Vec   `json:"acceleration,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Reading is a snapshot of the scorer state
type Reading struct {
	Score          float64  `json:"score"`
	LightScore     float64  `json:"light_score"`
	StabilityScore float64  `json:"stability_score"`
	MeanLux        *float64 `json:"mean_lux,omitempty"`
	MotionVariance *float64 `json:"motion_variance,omitempty"`
	LightSamples   int      `json:"light_samples"`
	MotionSamples  int      `json:"motion_samples"`
}

type lightSample struct {
	lux float64
	ts  time.Time
}

type accelSample struct {
	vec r3.Vec
	ts  time.Time
}

// Scorer is safe for concurrent use. Sensor goroutines push samples while the
// analysis worker reads Score. Samples only count while they are fresh
// relative to the time the score is taken at.
type Scorer struct {
	mu           sync.Mutex
	light        *ringbuf.Buffer[lightSample]
	accel        *ringbuf.Buffer[accelSample]
	lightTTL     time.Duration
	motionWindow time.Duration
	defaultScore float64
}

// New returns a scorer with no samples
func New(cfg conf.EnvironmentSettings) *Scorer {
	s := &Scorer{
		light: ringbuf.New[lightSample](max(cfg.LightWindow, 1)),
		accel: ringbuf.New[accelSample](accelCapacity),
	}
	s.applyLocked(cfg)
	return s
}

// Configure applies new settings, keeping the newest samples that still fit
func (s *Scorer) Configure(cfg conf.EnvironmentSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.light.Resize(max(cfg.LightWindow, 1))
	s.applyLocked(cfg)
}

func (s *Scorer) applyLocked(cfg conf.EnvironmentSettings) {
	s.lightTTL = cfg.LightTTL
	if s.lightTTL <= 0 {
		s.lightTTL = conf.DefaultLightTTL
	}
	s.motionWindow = cfg.MotionWindow
	if s.motionWindow <= 0 {
		s.motionWindow = conf.DefaultMotionWindow
	}
	s.defaultScore = clamp01(cfg.DefaultScore)
}

// Ingest records whichever readings the sample carries. A sample without a
// timestamp is taken as current.
func (s *Scorer) Ingest(sample Sample) {
	ts := sample.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if sample.Lux != nil {
		s.AddLight(*sample.Lux, ts)
	}
	if sample.Acceleration != nil {
		s.AddAcceleration(*sample.Acceleration, ts)
	}
}

// AddLight records a light reading in lux taken at ts. Negative and
// non-finite values are ignored.
func (s *Scorer) AddLight(lux float64, ts time.Time) {
	if lux < 0 || math.IsNaN(lux) || math.IsInf(lux, 0) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.light.Push(lightSample{lux: lux, ts: ts})
}

// AddAcceleration records a 3-axis accelerometer reading
func (s *Scorer) AddAcceleration(vec r3.Vec, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accel.Push(accelSample{vec: vec, ts: ts})
}

// Reset drops all samples
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.light.Clear()
	s.accel.Clear()
}

// Score returns the environmental score in [0,1] as of now. Missing or stale
// sensors contribute the configured neutral default.
func (s *Scorer) Score(now time.Time) float64 {
	return s.Snapshot(now).Score
}

// Snapshot returns the score as of now together with its parts. A zero now
// means the current time.
func (s *Scorer) Snapshot(now time.Time) Reading {
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := Reading{
		LightScore:     s.defaultScore,
		StabilityScore: s.defaultScore,
	}

	lightCutoff := now.Add(-s.lightTTL)
	var lux []float64
	for _, l := range s.light.All {
		if !l.ts.Before(lightCutoff) {
			lux = append(lux, l.lux)
		}
	}
	r.LightSamples = len(lux)
	if len(lux) > 0 {
		mean := stat.Mean(lux, nil)
		r.MeanLux = &mean
		r.LightScore = LightScore(mean)
	}

	motionCutoff := now.Add(-s.motionWindow)
	var motion []accelSample
	for _, a := range s.accel.All {
		if !a.ts.Before(motionCutoff) {
			motion = append(motion, a)
		}
	}
	r.MotionSamples = len(motion)
	if deltas := motionDeltas(motion); len(deltas) >= 2 {
		variance := stat.Variance(deltas, nil)
		r.MotionVariance = &variance
		r.StabilityScore = StabilityScore(variance)
	}

	if r.MeanLux == nil && r.MotionVariance == nil {
		r.Score = s.defaultScore
		return r
	}
	r.Score = clamp01(lightWeight*r.LightScore + motionWeight*r.StabilityScore)
	return r
}

// Live reports whether r was computed from at least one fresh sample
func (r Reading) Live() bool {
	return r.LightSamples > 0 || r.MotionSamples > 0
}

// motionDeltas returns the magnitudes of consecutive acceleration deltas
func motionDeltas(samples []accelSample) []float64 {
	if len(samples) < 2 {
		return nil
	}
	deltas := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		deltas = append(deltas, r3.Norm(r3.Sub(samples[i].vec, samples[i-1].vec)))
	}
	return deltas
}

// LightScore maps mean lux to a score. Both darkness and glare reduce it;
// 100 to 1000 lux scores 1.0.
func LightScore(lux float64) float64 {
	switch {
	case lux < 10:
		return 0.2
	case lux < 50:
		return 0.5
	case lux < 100:
		return 0.8
	case lux <= 1000:
		return 1.0
	case lux <= 5000:
		return 0.8
	case lux <= 10000:
		return 0.6
	default:
		return 0.4
	}
}

// StabilityScore buckets motion variance from very stable (1.0) to very unstable (0.2)
func StabilityScore(variance float64) float64 {
	switch {
	case variance < 0.1:
		return 1.0
	case variance < 0.5:
		return 0.8
	case variance < 1.0:
		return 0.6
	case variance < 2.0:
		return 0.4
	default:
		return 0.2
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
