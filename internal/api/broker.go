package api

import (
    "sync"
)

// Event is a message fanned out to live subscribers, e.g. location.updated.
type Event struct {
    Type string         `json:"type"`
    Data map[string]any `json:"data"`
}

// Topics used by the server.
const topicLocations = "locations"

// EventBroker fans events out per topic. Implementations drop events for slow subscribers
// rather than blocking publishers. Subscribe fails when the backing transport cannot
// deliver to a new subscriber; no channel is returned then.
type EventBroker interface {
    Subscribe(topic string) (chan Event, error)
    Unsubscribe(topic string, ch chan Event)
    Publish(topic string, evt Event)
}

// Broker is the in-process EventBroker.
type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan Event]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) (chan Event, error) {
    ch := make(chan Event, 8)
    b.mu.Lock()
    if b.subs[topic] == nil { b.subs[topic] = map[chan Event]struct{}{} }
    b.subs[topic][ch] = struct{}{}
    b.mu.Unlock()
    return ch, nil
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[topic]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, topic) }
    close(ch)
}

func (b *Broker) Publish(topic string, evt Event) {
    b.mu.Lock()
    m := b.subs[topic]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
