package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/errors"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

// Publisher publishes frame results that carry a decision. A result is
// skipped when its best reading and decision repeat the previous publication
// of the same session.
type Publisher struct {
	client   Client
	topic    string
	instance string
	log      logger.Logger
	metrics  *metrics.MQTTMetrics

	mu      sync.Mutex
	lastKey string
	skipped uint64
}

// NewPublisher returns a publisher sending to topic through client. m may be nil.
func NewPublisher(client Client, topic, instance string, m *metrics.MQTTMetrics) *Publisher {
	return &Publisher{
		client:   client,
		topic:    topic,
		instance: instance,
		log:      GetLogger(),
		metrics:  m,
	}
}

// Publish implements processor.Publisher
func (p *Publisher) Publish(ctx context.Context, result processor.FrameResult) error {
	best, ok := result.Best()
	if !ok || !result.State.Terminal() {
		p.suppressed(metrics.SuppressNonTerminal)
		return nil
	}

	key := result.SessionID + "|" + best.Text + "|" + string(best.Decision)
	p.mu.Lock()
	if key == p.lastKey {
		p.skipped++
		p.mu.Unlock()
		p.suppressed(metrics.SuppressRepeat)
		return nil
	}
	p.mu.Unlock()

	payload, err := json.Marshal(NewFrameResultDTO(p.instance, &result))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal").
			Build()
	}

	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.lastKey = key
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.RecordPublished(string(best.Decision))
	}

	p.log.Debug("frame result published",
		logger.String("topic", p.topic),
		logger.String("text", best.Text),
		logger.String("decision", string(best.Decision)))
	return nil
}

// Skipped returns how many repeated results were not published
func (p *Publisher) Skipped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

func (p *Publisher) suppressed(reason string) {
	if p.metrics != nil {
		p.metrics.RecordSuppressed(reason)
	}
}
