package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"
)

type NSQPublisher struct {
	producer *nsq.Producer
}

func NewNSQPublisher(nsqdAddress string, logger *slog.Logger) (*NSQPublisher, error) {
	if strings.TrimSpace(nsqdAddress) == "" {
		return nil, errors.New("nsqd address is empty")
	}
	cfg := nsq.NewConfig()
	cfg.DialTimeout = 2 * time.Second
	// go-nsq requires ReadTimeout > HeartbeatInterval (default heartbeat is 30s).
	cfg.ReadTimeout = 35 * time.Second
	cfg.WriteTimeout = 5 * time.Second
	producer, err := nsq.NewProducer(nsqdAddress, cfg)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		producer.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo), nsq.LogLevelWarning)
	}
	return &NSQPublisher{producer: producer}, nil
}

// Publish waits for nsqd to acknowledge the message or for ctx to end.
func (p *NSQPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	done := make(chan *nsq.ProducerTransaction, 1)
	if err := p.producer.PublishAsync(NSQTopic(topic), body, done); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case tx := <-done:
		return tx.Error
	}
}

func (p *NSQPublisher) Close() {
	p.producer.Stop()
}

// NSQTopic maps a slash-separated topic onto the nsqd topic alphabet
// ([.a-zA-Z0-9_-], at most 64 chars).
func NSQTopic(topic string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(topic) {
		switch {
		case r == '/':
			b.WriteByte('.')
		case r == '.' || r == '_' || r == '-',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}
