package testkit

import (
	"context"
	"sync"
)

type Message struct {
	Topic string
	Body  []byte
}

// RecordingPublisher stands in for a broker in tests.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// SetErr makes every following publish fail with err.
func (p *RecordingPublisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *RecordingPublisher) Publish(_ context.Context, topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, Message{Topic: topic, Body: append([]byte(nil), body...)})
	return nil
}

func (p *RecordingPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
