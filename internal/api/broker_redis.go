package api

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so every API replica sees every event.
type RedisBroker struct {
    rdb  *redis.Client
    log  *zap.Logger
    mu   sync.Mutex
    subs map[chan Event]*redis.PubSub
}

func NewRedisBroker(rdb *redis.Client, log *zap.Logger) *RedisBroker {
    return &RedisBroker{rdb: rdb, log: log, subs: map[chan Event]*redis.PubSub{}}
}

func (b *RedisBroker) Subscribe(topic string) (chan Event, error) {
    ps := b.rdb.Subscribe(context.Background(), b.chanName(topic))
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    // initial consume to ensure subscription
    if _, err := ps.Receive(ctx); err != nil {
        _ = ps.Close()
        return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
    }
    ch := make(chan Event, 16)
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt Event
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch, nil
}

// Unsubscribe closes the Redis subscription; the forwarding goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(topic string, ch chan Event) {
    b.mu.Lock()
    ps := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ps != nil { _ = ps.Close() }
}

func (b *RedisBroker) Publish(topic string, evt Event) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    if err := b.rdb.Publish(ctx, b.chanName(topic), data).Err(); err != nil {
        b.log.Warn("redis publish failed", zap.String("topic", topic), zap.Error(err))
    }
}

func (b *RedisBroker) chanName(topic string) string { return "fieldcrm:events:" + topic }
