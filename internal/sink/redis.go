package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tjamescouch/visage/internal/face"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Redis PUBLISHes each frame as JSON so any number of renderers can
// SUBSCRIBE to the channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis connects and pings the server.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Channel == "" {
		opts.Channel = "visage:frames"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, channel: opts.Channel}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Channel() string { return r.channel }

func (r *Redis) Send(ctx context.Context, f face.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe streams frames published on the channel until ctx is done.
// Messages that are not frames are skipped.
func (r *Redis) Subscribe(ctx context.Context) (<-chan face.Frame, error) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan face.Frame, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var f face.Frame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					continue
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
