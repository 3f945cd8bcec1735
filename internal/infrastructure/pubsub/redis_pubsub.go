// Package pubsub implements the claim-availability notification bus: a
// worker long-polling claim_service/claim_user can subscribe to its
// execution class's channel and wake immediately when a task of that class
// completes (which may satisfy other tasks' dependencies), instead of pure
// busy-polling. This is purely additive -
// it changes no claim, count, or completion semantics; a claim still goes
// through the atomic SQL selection in the claim engine regardless of what
// woke the poller.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sogos/mirai-scheduler/internal/domain/service"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// ClaimAvailableEvent is published when a task is marked complete; TaskID
// is the completed task and RunType its task type's run type.
type ClaimAvailableEvent struct {
	RunType valueobject.RunType `json:"run_type"`
	TaskID  string              `json:"task_id"`
}

// Publisher defines the interface for announcing claim availability.
type Publisher interface {
	PublishClaimAvailable(ctx context.Context, event ClaimAvailableEvent) error
}

// Subscriber defines the interface for subscribing to a run type's
// claim-availability channel.
type Subscriber interface {
	SubscribeClaimAvailable(ctx context.Context, runType valueobject.RunType) (<-chan ClaimAvailableEvent, func(), error)
}

// RedisPubSub implements Publisher and Subscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger service.Logger
}

// RedisConfig holds Redis pub/sub configuration.
type RedisConfig struct {
	URL string
}

// NewRedisPubSub creates a new Redis pub/sub client.
func NewRedisPubSub(cfg RedisConfig, logger service.Logger) (*RedisPubSub, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis for pubsub: %w", err)
	}

	return &RedisPubSub{client: client, logger: logger}, nil
}

// NewRedisPubSubFromClient creates a RedisPubSub using an existing Redis client.
func NewRedisPubSubFromClient(client *redis.Client, logger service.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// runTypeChannel returns the Redis channel name for a run type's
// claim-availability events.
func runTypeChannel(runType valueobject.RunType) string {
	return fmt.Sprintf("claims:available:%s", runType.String())
}

// PublishClaimAvailable publishes a claim-availability event to the
// relevant run type's channel.
func (p *RedisPubSub) PublishClaimAvailable(ctx context.Context, event ClaimAvailableEvent) error {
	channel := runTypeChannel(event.RunType)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal claim available event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish claim available event: %w", err)
	}

	p.logger.Debug("published claim available event", "channel", channel, "task_id", event.TaskID)
	return nil
}

// SubscribeClaimAvailable subscribes to a run type's claim-availability
// events. Returns a channel that receives events, a cleanup function, and
// an error.
func (p *RedisPubSub) SubscribeClaimAvailable(ctx context.Context, runType valueobject.RunType) (<-chan ClaimAvailableEvent, func(), error) {
	channel := runTypeChannel(runType)

	sub := p.client.Subscribe(ctx, channel)

	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	eventCh := make(chan ClaimAvailableEvent, 10)

	go func() {
		defer close(eventCh)

		msgCh := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var event ClaimAvailableEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					p.logger.Error("failed to unmarshal claim available event", "error", err, "payload", msg.Payload)
					continue
				}
				select {
				case eventCh <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	p.logger.Debug("subscribed to claim available events", "channel", channel)
	return eventCh, func() { sub.Close() }, nil
}

// Close closes the Redis connection.
func (p *RedisPubSub) Close() error {
	return p.client.Close()
}

// NotifyClaimAvailable implements domain/service.ClaimNotifier, adapting
// the richer Publisher interface for engines that only need to announce a
// single task's availability and don't care about delivery failures.
func (p *RedisPubSub) NotifyClaimAvailable(ctx context.Context, runType valueobject.RunType, taskID string) {
	if err := p.PublishClaimAvailable(ctx, ClaimAvailableEvent{RunType: runType, TaskID: taskID}); err != nil {
		p.logger.Warn("failed to publish claim available event", "run_type", runType.String(), "task_id", taskID, "error", err)
	}
}

// NoOpPubSub is a no-op implementation for when pub/sub is disabled
// (config.EnableRedisPubSub is false); workers fall back to plain polling.
type NoOpPubSub struct{}

// NewNoOpPubSub creates a new no-op pub/sub.
func NewNoOpPubSub() *NoOpPubSub { return &NoOpPubSub{} }

func (p *NoOpPubSub) PublishClaimAvailable(ctx context.Context, event ClaimAvailableEvent) error {
	return nil
}

func (p *NoOpPubSub) SubscribeClaimAvailable(ctx context.Context, runType valueobject.RunType) (<-chan ClaimAvailableEvent, func(), error) {
	ch := make(chan ClaimAvailableEvent)
	close(ch)
	return ch, func() {}, nil
}

// NotifyClaimAvailable implements domain/service.ClaimNotifier as a no-op.
func (p *NoOpPubSub) NotifyClaimAvailable(ctx context.Context, runType valueobject.RunType, taskID string) {
}
