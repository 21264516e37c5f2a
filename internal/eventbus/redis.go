package eventbus

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
	"github.com/roach88/semstore/internal/logger"
)

// DefaultChannel is the Redis channel used when none is configured.
const DefaultChannel = "semstore-events"

// RedisBus publishes JSON events on a Redis pub/sub channel.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	logger  *zap.SugaredLogger
}

// NewRedisBus connects to addr and verifies the connection with PING.
func NewRedisBus(ctx context.Context, addr, channel string, log *zap.SugaredLogger) (*RedisBus, error) {
	if addr == "" {
		return nil, errors.New("redis address required")
	}
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis ping %s", addr)
	}

	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		logger:  logger.OrNop(log).With("bus", "redis", "channel", channel),
	}, nil
}

// Publish sends the event envelope to the channel.
func (b *RedisBus) Publish(ctx context.Context, event string, subject ir.Subject) error {
	raw, err := encodeEvent(event, subject)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return errors.Wrapf(err, "redis publish %q", event)
	}
	b.logger.Debugw("published", "event", event, "subject", subject.Key())
	return nil
}

// Close releases the connection pool.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func encodeEvent(event string, subject ir.Subject) ([]byte, error) {
	raw, err := json.Marshal(Event{Name: event, Subject: subject})
	if err != nil {
		return nil, errors.Wrap(err, "encode event")
	}
	return raw, nil
}

// DecodeEvent parses a payload produced by RedisBus.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, errors.Wrap(err, "decode event")
	}
	return ev, nil
}
