package processor

import (
	"context"
	"time"

	"github.com/scanline/dsnscan/internal/errors"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

// Submit hands frame to the worker. Frames arriving faster than the analysis
// interval, measured on frame timestamps, and frames arriving while the worker
// is busy are dropped. It reports whether the frame was accepted.
func (p *Processor) Submit(frame Frame) bool {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	if !p.Allow(frame.Timestamp) {
		p.recorder.RecordOperation(metrics.OpFrame, metrics.StatusDropped)
		p.log.Trace("frame throttled", logger.Time("timestamp", frame.Timestamp))
		return false
	}

	select {
	case p.frames <- frame:
		return true
	default:
		p.recorder.RecordOperation(metrics.OpFrame, metrics.StatusDropped)
		p.log.Trace("worker busy, frame dropped", logger.Time("timestamp", frame.Timestamp))
		return false
	}
}

// SubmitWait is Submit for sources that can wait, such as a file of frames.
// Throttled frames are still dropped but a busy worker is waited for. It
// returns ctx.Err() when ctx ends first.
func (p *Processor) SubmitWait(ctx context.Context, frame Frame) (bool, error) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	if !p.Allow(frame.Timestamp) {
		p.recorder.RecordOperation(metrics.OpFrame, metrics.StatusDropped)
		return false, nil
	}

	select {
	case p.frames <- frame:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Allow reports whether a frame stamped ts passes the analysis throttle of the
// current snapshot. Submit calls it; callers driving ProcessFrame directly,
// such as replays, call it themselves.
func (p *Processor) Allow(ts time.Time) bool {
	interval := p.store.Load().OCR.AnalysisInterval

	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()
	if interval != p.interval {
		p.limiter.SetLimitAt(ts, limitFor(interval))
		p.interval = interval
	}
	return p.limiter.AllowN(ts, 1)
}

// Start runs the analysis worker until ctx is cancelled or Stop is called
func (p *Processor) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.done != nil {
		return errors.Newf("processor already running").
			Component("processor").
			Category(errors.CategoryState).
			Context("session_id", p.SessionID()).
			Build()
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	p.log.Info("analysis worker started", logger.String("session_id", p.SessionID()))
	return nil
}

// Stop stops the worker and waits for it to exit
func (p *Processor) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.done == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
	p.log.Info("analysis worker stopped", logger.String("session_id", p.SessionID()))
}

func (p *Processor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-p.frames:
			result := p.ProcessFrame(frame)
			p.deliver(ctx, result)
		case reply := <-p.resets:
			reply <- p.reset()
		}
	}
}

// deliver hands result to the handler and publishers. Publish failures are
// logged and counted, they never stop the worker.
func (p *Processor) deliver(ctx context.Context, result FrameResult) {
	if p.handler != nil {
		p.handler(result)
	}
	for _, pub := range p.publishers {
		start := time.Now()
		if err := pub.Publish(ctx, result); err != nil {
			p.recorder.RecordOperation(metrics.OpPublish, metrics.StatusError)
			p.log.Warn("failed to publish frame result",
				logger.Error(err),
				logger.Int("frame_id", int(result.FrameID)))
			continue
		}
		p.recorder.RecordOperation(metrics.OpPublish, metrics.StatusSuccess)
		p.recorder.RecordDuration(metrics.OpPublish, time.Since(start).Seconds())
	}
}
