package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrChannelUnreachable reports that no paired device is listening. The
// bridge is best-effort: the caller must re-issue the command, no retry
// happens here.
var ErrChannelUnreachable = errors.New("command channel unreachable")

const PingCommand = "ping"

// Command is the small key/value payload relayed between a user's devices,
// e.g. phone to wearable.
type Command struct {
	Name         string `json:"command"`
	SessionID    string `json:"session_id,omitempty"`
	SessionName  string `json:"session_name,omitempty"`
	ActivityKind string `json:"activity_kind,omitempty"`
	IsHost       bool   `json:"is_host,omitempty"`
	ReplyTo      string `json:"reply_to,omitempty"`
}

type Bridge struct {
	redis *redis.Client
}

func NewBridge(client *redis.Client) *Bridge {
	return &Bridge{redis: client}
}

// Send publishes a command to the device's channel. It fails with
// ErrChannelUnreachable when nothing is subscribed on the other end.
func (b *Bridge) Send(ctx context.Context, deviceID string, cmd Command) error {
	if b.redis == nil {
		return ErrChannelUnreachable
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	receivers, err := b.redis.Publish(ctx, commandChannel(deviceID), payload).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnreachable, err)
	}
	if receivers == 0 {
		return ErrChannelUnreachable
	}
	return nil
}

// Request sends a command and waits for one reply, bounded by ctx.
func (b *Bridge) Request(ctx context.Context, deviceID string, cmd Command) (Command, error) {
	if b.redis == nil {
		return Command{}, ErrChannelUnreachable
	}

	cmd.ReplyTo = commandChannel(deviceID) + ":reply:" + uuid.NewString()
	pubsub := b.redis.Subscribe(ctx, cmd.ReplyTo)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrChannelUnreachable, err)
	}

	if err := b.Send(ctx, deviceID, cmd); err != nil {
		return Command{}, err
	}

	select {
	case <-ctx.Done():
		return Command{}, ctx.Err()
	case msg, ok := <-pubsub.Channel():
		if !ok {
			return Command{}, ErrChannelUnreachable
		}
		var reply Command
		if err := json.Unmarshal([]byte(msg.Payload), &reply); err != nil {
			return Command{}, err
		}
		return reply, nil
	}
}

// Reply answers a command received with a ReplyTo channel.
func (b *Bridge) Reply(ctx context.Context, replyTo string, cmd Command) error {
	if b.redis == nil || replyTo == "" {
		return ErrChannelUnreachable
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	receivers, err := b.redis.Publish(ctx, replyTo, payload).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnreachable, err)
	}
	if receivers == 0 {
		return ErrChannelUnreachable
	}
	return nil
}

// Listen subscribes to a device's command channel. The returned channel
// closes when ctx is cancelled. Malformed payloads are dropped and logged.
func (b *Bridge) Listen(ctx context.Context, deviceID string) (<-chan Command, error) {
	if b.redis == nil {
		return nil, ErrChannelUnreachable
	}

	pubsub := b.redis.Subscribe(ctx, commandChannel(deviceID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrChannelUnreachable, err)
	}

	out := make(chan Command, 8)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var cmd Command
				if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
					log.Warn().Err(err).Str("device_id", deviceID).Msg("dropping malformed command payload")
					continue
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping sends a liveness probe to the paired device.
func (b *Bridge) Ping(ctx context.Context, deviceID string) error {
	return b.Send(ctx, deviceID, Command{Name: PingCommand})
}

func commandChannel(deviceID string) string {
	return "bridge:" + deviceID + ":commands"
}
