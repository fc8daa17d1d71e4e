// Package processor runs the scan pipeline: it throttles incoming frames,
// classifies and stabilizes candidates, scores them and keeps snapshots of the
// session state for readers.
package processor

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/environment"
	"github.com/scanline/dsnscan/internal/fusion"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/observability/metrics"
	"github.com/scanline/dsnscan/internal/stabilizer"
)

const envCacheKey = "environment_score"

// cachedEnvironment is the last score computed from live samples
type cachedEnvironment struct {
	score float64
	at    time.Time
}

// Processor owns the state of one scan session. ProcessFrame is meant to be
// called from a single goroutine, normally the worker started by Start;
// the snapshot getters are safe from any goroutine.
type Processor struct {
	store      *conf.Store
	stabilizer *stabilizer.Stabilizer
	engine     *fusion.Engine
	env        *environment.Scorer
	envCache   *cache.Cache

	limiterMu sync.Mutex
	limiter   *rate.Limiter
	interval  time.Duration

	frames    chan Frame
	resets    chan chan string
	frameSeq  atomic.Uint64
	sessionID atomic.Pointer[string]

	metrics    *metrics.PipelineMetrics
	recorder   metrics.Recorder
	handler    ResultHandler
	publishers []Publisher
	log        logger.Logger

	mu        sync.RWMutex
	last      *FrameResult
	lastFrame time.Time

	runMu  sync.Mutex
	cancel func()
	done   chan struct{}
}

// Option configures a Processor
type Option func(*Processor)

// WithEnvironment uses scorer for environmental scoring
func WithEnvironment(scorer *environment.Scorer) Option {
	return func(p *Processor) { p.env = scorer }
}

// WithMetrics records pipeline metrics
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(p *Processor) {
		p.metrics = m
		if m != nil {
			p.recorder = m
		}
	}
}

// WithResultHandler calls h with every result produced by the worker
func WithResultHandler(h ResultHandler) Option {
	return func(p *Processor) { p.handler = h }
}

// WithPublisher adds a publisher the worker delivers every result to
func WithPublisher(pub Publisher) Option {
	return func(p *Processor) {
		if pub != nil {
			p.publishers = append(p.publishers, pub)
		}
	}
}

// WithLogger replaces the package logger
func WithLogger(l logger.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// WithSessionID sets the session id instead of generating one
func WithSessionID(id string) Option {
	return func(p *Processor) { p.sessionID.Store(&id) }
}

// New returns a processor reading its configuration from store
func New(store *conf.Store, opts ...Option) *Processor {
	cfg := store.Load()
	p := &Processor{
		store:      store,
		stabilizer: stabilizer.New(cfg.Stabilizer.MaxEntries),
		engine:     fusion.NewEngine(cfg.OCR.HistorySize),
		envCache:   cache.New(cfg.Environment.CacheTTL, 0),
		frames:     make(chan Frame),
		resets:     make(chan chan string),
		recorder:   metrics.NopRecorder{},
		log:        GetLogger(),
	}
	p.limiter = rate.NewLimiter(limitFor(cfg.OCR.AnalysisInterval), 1)
	p.interval = cfg.OCR.AnalysisInterval

	for _, opt := range opts {
		opt(p)
	}
	if p.env == nil {
		p.env = environment.New(cfg.Environment)
	}
	if p.sessionID.Load() == nil {
		id := uuid.NewString()
		p.sessionID.Store(&id)
	}
	return p
}

// SessionID returns the id of the current scan session
func (p *Processor) SessionID() string {
	return *p.sessionID.Load()
}

// Settings returns the configuration snapshot the next pass will use
func (p *Processor) Settings() *conf.Settings {
	return p.store.Load()
}

// Store returns the configuration store
func (p *Processor) Store() *conf.Store {
	return p.store
}

// IngestSensors records a sensor sample for environmental scoring
func (p *Processor) IngestSensors(sample environment.Sample) {
	p.env.Ingest(sample)
}

// ProcessFrame runs one analysis pass over frame against a single
// configuration snapshot and returns the readings ranked by composite confidence.
func (p *Processor) ProcessFrame(frame Frame) FrameResult {
	start := time.Now()
	cfg := p.store.Load()
	version := p.store.Version()

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = start
	}

	p.env.Configure(cfg.Environment)
	if frame.Sensors != nil {
		sample := *frame.Sensors
		if sample.Timestamp.IsZero() {
			sample.Timestamp = ts
		}
		p.env.Ingest(sample)
	}
	envScore := p.environmentScore(cfg, ts)

	candidates, estimated := p.prepare(cfg, frame)
	stabilized := p.stabilizer.Stabilize(cfg, candidates, ts)

	readings := make([]Reading, 0, len(stabilized))
	for _, s := range stabilized {
		native := s.Confidence
		isEstimated := estimated[s.Candidate.Text]
		res := p.engine.Score(cfg, fusion.Input{
			Text:              s.Text,
			Native:            &native,
			BoundingBox:       s.Candidate.BoundingBox,
			Track:             s.Track,
			ComponentType:     frame.Expected,
			Timestamp:         ts,
			Environmental:     envScore,
			ForceVerification: s.RequiresManualVerification || (isEstimated && !cfg.OCR.AllowEstimatedAutoAccept),
		})
		res.EstimatedNative = isEstimated
		readings = append(readings, Reading{
			EnhancedResult:       res,
			RawText:              s.Candidate.Text,
			StabilizedConfidence: s.Confidence,
			GroupAverage:         s.GroupAverage,
			Frames:               s.Frames,
			FirstSeen:            s.FirstSeen,
		})
	}
	slices.SortStableFunc(readings, func(a, b Reading) int {
		if n := cmp.Compare(b.CompositeConfidence, a.CompositeConfidence); n != 0 {
			return n
		}
		if n := cmp.Compare(b.Frames, a.Frames); n != 0 {
			return n
		}
		return cmp.Compare(a.Text, b.Text)
	})

	result := FrameResult{
		SessionID:     p.SessionID(),
		FrameID:       p.frameSeq.Add(1),
		Timestamp:     ts,
		State:         frameState(len(frame.Candidates), readings),
		Readings:      readings,
		ConfigVersion: version,
		Duration:      time.Since(start),
	}
	if envScore != nil {
		result.EnvironmentScore = *envScore
	} else {
		result.EnvironmentScore = cfg.Environment.DefaultScore
	}

	p.mu.Lock()
	p.last = &result
	p.lastFrame = ts
	p.mu.Unlock()

	p.record(cfg, result)
	return result
}

// prepare normalizes candidates, drops fragments too short to be a serial and
// estimates missing native confidence. The returned set names the texts whose
// confidence was estimated.
func (p *Processor) prepare(cfg *conf.Settings, frame Frame) ([]stabilizer.Candidate, map[string]bool) {
	out := make([]stabilizer.Candidate, 0, len(frame.Candidates))
	estimated := make(map[string]bool)

	for _, c := range frame.Candidates {
		normalized := dsn.Normalize(c.Text)
		if len(dsn.Compact(normalized)) < cfg.OCR.MinTextLength {
			p.log.Trace("ignoring short fragment", logger.String("text", normalized))
			continue
		}

		componentType := frame.Expected
		if !componentType.Known() {
			componentType = dsn.Classify(normalized).ComponentType
		}
		_, _, strictness := cfg.OCR.Thresholds(componentType)

		var confidence float64
		if c.Confidence != nil && !math.IsNaN(*c.Confidence) {
			confidence = min(max(*c.Confidence, 0), 1)
		} else {
			confidence = fusion.EstimateNative(normalized, strictness == conf.StrictnessStrict)
			estimated[normalized] = true
		}

		out = append(out, stabilizer.Candidate{
			Text:          normalized,
			Confidence:    confidence,
			BoundingBox:   c.BoundingBox,
			ComponentType: componentType,
		})
	}
	return out, estimated
}

// environmentScore returns the environmental score at the frame time ts.
// Without fresh samples the last live score is reused while it is younger
// than the cache TTL; nil means the configured default applies.
func (p *Processor) environmentScore(cfg *conf.Settings, ts time.Time) *float64 {
	reading := p.env.Snapshot(ts)
	if reading.Live() {
		score := reading.Score
		p.envCache.Set(envCacheKey, cachedEnvironment{score: score, at: ts}, cfg.Environment.CacheTTL)
		return &score
	}
	if v, ok := p.envCache.Get(envCacheKey); ok {
		cached := v.(cachedEnvironment)
		if age := ts.Sub(cached.at); age >= 0 && age <= cfg.Environment.CacheTTL {
			p.log.Trace("sensors silent, using last known environment score", logger.Duration("age", age))
			return &cached.score
		}
		p.envCache.Delete(envCacheKey)
	}
	return nil
}

func frameState(fragments int, readings []Reading) fusion.Decision {
	switch {
	case len(readings) > 0:
		return readings[0].Decision
	case fragments > 0:
		return fusion.DecisionCandidateDetected
	default:
		return fusion.DecisionScanning
	}
}

func (p *Processor) record(cfg *conf.Settings, result FrameResult) {
	status := metrics.StatusSuccess
	if len(result.Readings) == 0 {
		status = metrics.StatusEmpty
	}
	p.recorder.RecordOperation(metrics.OpFrame, status)
	p.recorder.RecordDuration(metrics.OpFrame, result.Duration.Seconds())

	if p.metrics != nil {
		for _, r := range result.Readings {
			p.metrics.RecordDecision(string(r.Decision), r.ComponentType.String(), r.CompositeConfidence)
		}
		p.metrics.SetEnvironmentScore(result.EnvironmentScore)
		p.metrics.SetStabilizedGroups(len(p.stabilizer.Groups(cfg, result.Timestamp)))
	}

	if best, ok := result.Best(); ok {
		p.log.Debug("frame analyzed",
			logger.String("session_id", result.SessionID),
			logger.Int("readings", len(result.Readings)),
			logger.String("best", best.Text),
			logger.Float64("composite", best.CompositeConfidence),
			logger.String("decision", string(best.Decision)),
			logger.Duration("duration", result.Duration))
	}
}

// LastResult returns the most recent frame result
func (p *Processor) LastResult() (FrameResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return FrameResult{}, false
	}
	out := *p.last
	out.Readings = slices.Clone(p.last.Readings)
	return out, true
}

// ConfidenceHistory returns a copy of the confidence history
func (p *Processor) ConfidenceHistory() []fusion.HistoryPoint {
	return p.engine.History()
}

// FrameHistory returns a copy of the stabilizer frame history
func (p *Processor) FrameHistory() []stabilizer.Entry {
	return p.stabilizer.History()
}

// StabilizedGroups returns the reading groups as of the last processed frame
func (p *Processor) StabilizedGroups() []stabilizer.Group {
	p.mu.RLock()
	at := p.lastFrame
	p.mu.RUnlock()
	return p.stabilizer.Groups(p.store.Load(), at)
}

// Environment returns the environmental reading as of the last processed
// frame, or as of now before the first frame
func (p *Processor) Environment() environment.Reading {
	p.mu.RLock()
	at := p.lastFrame
	p.mu.RUnlock()
	return p.env.Snapshot(at)
}

// Reset clears all session state and starts a new session. While the worker
// runs, the reset is handed to it and applied between frames.
func (p *Processor) Reset() string {
	p.runMu.Lock()
	done := p.done
	p.runMu.Unlock()

	if done != nil {
		reply := make(chan string, 1)
		select {
		case p.resets <- reply:
			return <-reply
		case <-done:
		}
	}
	return p.reset()
}

func (p *Processor) reset() string {
	p.stabilizer.Reset()
	p.engine.Reset()
	p.env.Reset()
	p.envCache.Flush()

	p.mu.Lock()
	p.last = nil
	p.lastFrame = time.Time{}
	p.mu.Unlock()

	id := uuid.NewString()
	p.sessionID.Store(&id)
	p.log.Info("scan session reset", logger.String("session_id", id))
	return id
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}
