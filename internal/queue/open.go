package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brewcast/ispindel/internal/config"
)

// Open connects the publisher selected by cfg.Bus.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Publisher, error) {
	switch cfg.Bus {
	case config.BusMQTT:
		p, err := NewMQTTPublisher(MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			QoS:      1,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BusNSQ:
		p, err := NewNSQPublisher(cfg.NSQDAddress, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BusNATS:
		p, err := NewNATSPublisher(ctx, NATSOptions{
			URL:      cfg.NATSURL,
			Stream:   cfg.NATSStream,
			Subjects: []string{cfg.HistoryTopic},
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BusRedis:
		rdb, err := NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisPublisher(rdb), nil
	default:
		return nil, fmt.Errorf("unknown bus %q", cfg.Bus)
	}
}
