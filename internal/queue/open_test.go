package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/brewcast/ispindel/internal/config"
)

func TestOpen_UnknownBus(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), config.Config{Bus: "kafka"}, nil); err == nil {
		t.Fatalf("expected error for unknown bus")
	}
}

func TestOpen_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	p, err := Open(context.Background(), config.Config{Bus: config.BusRedis, RedisAddr: mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rp, ok := p.(*RedisPublisher)
	if !ok {
		t.Fatalf("expected *RedisPublisher, got %T", p)
	}
	rp.Close()
}

func TestOpen_RedisUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Open(context.Background(), config.Config{Bus: config.BusRedis, RedisAddr: addr}, nil); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestOpen_NSQ(t *testing.T) {
	t.Parallel()

	p, err := Open(context.Background(), config.Config{Bus: config.BusNSQ, NSQDAddress: "127.0.0.1:1"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p.(Closer).Close()
}
