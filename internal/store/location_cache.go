package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fieldcrm/internal/model"
)

// LocationCache keeps each user's latest location in Redis in front of another Store.
// Every other method passes straight through to the embedded Store.
type LocationCache struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

// NewLocationCache wraps s. A ttl of zero keeps entries until overwritten.
func NewLocationCache(s Store, rdb *redis.Client, ttl time.Duration) *LocationCache {
	return &LocationCache{Store: s, rdb: rdb, ttl: ttl}
}

func latestKey(userID int64) string { return fmt.Sprintf("location:latest:%d", userID) }

// AppendLocation writes through and refreshes the cached entry when the new ping is not older.
func (c *LocationCache) AppendLocation(ctx context.Context, loc model.Location) (model.Location, error) {
	saved, err := c.Store.AppendLocation(ctx, loc)
	if err != nil { return saved, err }
	if cur, ok := c.get(ctx, saved.UserID); ok && saved.Timestamp.Before(cur.Timestamp) {
		return saved, nil
	}
	c.set(ctx, saved)
	return saved, nil
}

func (c *LocationCache) LatestLocation(ctx context.Context, userID int64) (model.Location, error) {
	if l, ok := c.get(ctx, userID); ok {
		return l, nil
	}
	l, err := c.Store.LatestLocation(ctx, userID)
	if err != nil { return l, err }
	c.set(ctx, l)
	return l, nil
}

// get treats any cache failure as a miss.
func (c *LocationCache) get(ctx context.Context, userID int64) (model.Location, bool) {
	str, err := c.rdb.Get(ctx, latestKey(userID)).Result()
	if err != nil {
		// redis.Nil when the key does not exist
		return model.Location{}, false
	}
	var l model.Location
	if err := json.Unmarshal([]byte(str), &l); err != nil {
		return model.Location{}, false
	}
	return l, true
}

func (c *LocationCache) set(ctx context.Context, l model.Location) {
	b, err := json.Marshal(l)
	if err != nil { return }
	_ = c.rdb.Set(ctx, latestKey(l.UserID), b, c.ttl).Err()
}
