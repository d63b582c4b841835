package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type NATSOptions struct {
	URL    string
	Stream string
	// Subjects bound to the stream; published topics must fall under one of them.
	Subjects []string
}

type NATSPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewNATSPublisher(ctx context.Context, opts NATSOptions) (*NATSPublisher, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = nats.DefaultURL
	}
	if strings.TrimSpace(opts.Stream) == "" {
		return nil, errors.New("nats stream is empty")
	}
	subjects := make([]string, 0, len(opts.Subjects))
	for _, s := range opts.Subjects {
		if s = NATSSubject(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) == 0 {
		return nil, errors.New("nats stream needs at least one subject")
	}

	nc, err := nats.Connect(url, nats.Name("ispindel"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     opts.Stream,
		Subjects: subjects,
	}); err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSPublisher{nc: nc, js: js}, nil
}

// Publish blocks until the stream acknowledges the message.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	_, err := p.js.Publish(ctx, NATSSubject(topic), body)
	return err
}

func (p *NATSPublisher) Close() {
	_ = p.nc.Drain()
	p.nc.Close()
}

// NATSSubject converts a slash-separated topic into a dot-separated subject.
func NATSSubject(topic string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(topic), func(r rune) bool {
		return r == '/' || r == '.'
	})
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(part, " ", "_")
	}
	return strings.Join(parts, ".")
}
