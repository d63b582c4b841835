package queue

import (
	"context"

	"github.com/brewcast/ispindel/internal/obs"
)

type observedPublisher struct {
	inner Publisher
	stats *obs.Stats
}

func ObservePublisher(p Publisher, stats *obs.Stats) Publisher {
	if p == nil || stats == nil {
		return p
	}
	if _, ok := p.(*observedPublisher); ok {
		return p
	}
	return &observedPublisher{inner: p, stats: stats}
}

func (p *observedPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	err := p.inner.Publish(ctx, topic, body)
	p.stats.ObservePublish(len(body), err)
	return err
}

func (p *observedPublisher) Close() {
	if c, ok := p.inner.(Closer); ok {
		c.Close()
	}
}
