package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hotelguru/hotelguru/config"
	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client   *redis.Client
	roomsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, roomsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		roomsTTL: roomsTTL,
	}
}

// AcquireRoomHold takes a short-lived advisory hold on a room while a
// booking's check-and-write transaction runs. The database transaction
// is the correctness backstop; the hold only narrows the race window so
// concurrent requests fail fast instead of aborting on serialization.
func (c *RedisCache) AcquireRoomHold(ctx context.Context, roomID int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, roomHoldKey(roomID), "held", ttl).Result()
}

func (c *RedisCache) ReleaseRoomHold(ctx context.Context, roomID int64) error {
	return c.client.Del(ctx, roomHoldKey(roomID)).Err()
}

// GetAvailableRooms returns the cached listing for a search key, or nil
// on a cache miss.
func (c *RedisCache) GetAvailableRooms(ctx context.Context, key string) ([]domain.Room, error) {
	data, err := c.client.Get(ctx, availableRoomsKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var rooms []domain.Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *RedisCache) SetAvailableRooms(ctx context.Context, key string, rooms []domain.Room) error {
	payload, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, availableRoomsKey(key), payload, c.roomsTTL).Err()
}

func roomHoldKey(roomID int64) string {
	return fmt.Sprintf("hold:room:%d", roomID)
}

func availableRoomsKey(key string) string {
	return fmt.Sprintf("cache:rooms:%s", key)
}
