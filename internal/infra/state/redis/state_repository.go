package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// DefaultKeyPrefix 默认 key 前缀 (arcade rooms)
const DefaultKeyPrefix = "ar:"

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// SessionChannel 房间会话事件的频道名
func SessionChannel(prefix, roomID string) string {
	return fmt.Sprintf("%sroom:%s:session", prefix, roomID)
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) roomSnapshotKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:snapshot", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) sessionChannelPattern() string {
	return r.keyPrefix + "room:*:session"
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return r.keyPrefix + "ratelimit:" + key
}

// --- Room Snapshot Caching ---

// GetRoomSnapshot 从缓存读取房间快照
func (r *RedisStateRepository) GetRoomSnapshot(ctx context.Context, roomID string) (*domain.RoomSnapshot, error) {
	key := r.roomSnapshotKey(roomID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: failed to get snapshot for room %s from %s: %w", roomID, key, err)
	}
	var snapshot domain.RoomSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal snapshot for room %s from %s: %w", roomID, key, err)
	}
	return &snapshot, nil
}

// SetRoomSnapshot 写入缓存 (ttl 为 0 表示永不过期)
func (r *RedisStateRepository) SetRoomSnapshot(ctx context.Context, snapshot *domain.RoomSnapshot, ttl time.Duration) error {
	key := r.roomSnapshotKey(snapshot.RoomID)
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal snapshot for room %s: %w", snapshot.RoomID, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set snapshot for room %s on key %s: %w", snapshot.RoomID, key, err)
	}
	return nil
}

// DeleteRoomSnapshot 使快照缓存失效
func (r *RedisStateRepository) DeleteRoomSnapshot(ctx context.Context, roomID string) error {
	key := r.roomSnapshotKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete snapshot key %s: %w", key, err)
	}
	return nil
}

// --- PubSub ---

// PublishSessionEvent 将事件发布到房间频道
func (r *RedisStateRepository) PublishSessionEvent(ctx context.Context, event repository.SessionEvent) error {
	channel := SessionChannel(r.keyPrefix, event.RoomID)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal %s event for room %s: %w", event.Type, event.RoomID, err)
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event_type":   event.Type,
			"room_id":      event.RoomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// SubscribeSessionEvents 通过 PSUBSCRIBE 接收所有房间的事件，handler 在接收 goroutine 中同步调用。
func (r *RedisStateRepository) SubscribeSessionEvents(ctx context.Context, handler func(repository.SessionEvent)) error {
	pattern := r.sessionChannelPattern()
	sub := r.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	// 等待订阅确认，确保之后发布的消息不会丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: failed to subscribe to %s: %w", pattern, err)
	}
	logrus.WithField("pattern", pattern).Info("Subscribed to session events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis: session event subscription closed")
			}
			var event repository.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.WithField("channel", msg.Channel).WithError(err).Warn("Dropping malformed session event")
				continue
			}
			if event.RoomID == "" {
				event.RoomID = roomIDFromChannel(r.keyPrefix, msg.Channel)
			}
			handler(event)
		}
	}
}

func roomIDFromChannel(prefix, channel string) string {
	id := strings.TrimPrefix(channel, prefix+"room:")
	return strings.TrimSuffix(id, ":session")
}

// --- Rate Limiting ---

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.rateLimitKey(key)
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	// 固定窗口：只在 key 还没有过期时间时设置
	ttlCmd := pipe.TTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	if ttl, _ := ttlCmd.Result(); ttl < 0 {
		if err := r.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis: failed to set rate limit window on key %s: %w", fullKey, err)
		}
	}
	return count > int64(limit), nil
}
