package worker

import (
	"context"

	"github.com/developer-yasir/support-panel/internal/persistence"
)

// RedisBus is a Bus over a Redis pub/sub channel.
type RedisBus struct {
	redis   *persistence.Redis
	channel string
}

// NewRedisBus returns a nil Bus when Redis is disabled so the relay falls
// back to local delivery.
func NewRedisBus(r *persistence.Redis, channel string) Bus {
	if !r.Enabled() {
		return nil
	}
	return &RedisBus{redis: r, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, frame []byte) error {
	return b.redis.Publish(ctx, b.channel, frame)
}

func (b *RedisBus) Messages(ctx context.Context) (<-chan []byte, error) {
	sub, err := b.redis.Subscribe(ctx, b.channel)
	if err != nil {
		return nil, err
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
