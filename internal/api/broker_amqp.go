package api

import (
    "encoding/json"
    "fmt"
    "sync"

    "github.com/streadway/amqp"
    "go.uber.org/zap"
)

const amqpExchange = "fieldcrm.events"

// AMQPBroker implements EventBroker over a RabbitMQ topic exchange. Each subscriber gets an
// exclusive auto-delete queue bound to the topic.
type AMQPBroker struct {
    conn *amqp.Connection
    log  *zap.Logger

    pubMu sync.Mutex
    pub   *amqp.Channel

    mu   sync.Mutex
    subs map[chan Event]*amqp.Channel
}

func NewAMQPBroker(url string, log *zap.Logger) (*AMQPBroker, error) {
    conn, err := amqp.Dial(url)
    if err != nil { return nil, fmt.Errorf("amqp dial: %w", err) }
    pub, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("amqp channel: %w", err)
    }
    err = pub.ExchangeDeclare(
        amqpExchange, // name
        "topic",      // kind
        true,         // durable
        false,        // auto-delete
        false,        // internal
        false,        // no-wait
        nil,          // arguments
    )
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("amqp exchange: %w", err)
    }
    return &AMQPBroker{conn: conn, log: log, pub: pub, subs: map[chan Event]*amqp.Channel{}}, nil
}

func (b *AMQPBroker) Subscribe(topic string) (chan Event, error) {
    msgs, sub, err := b.consume(topic)
    if err != nil { return nil, fmt.Errorf("amqp subscribe %s: %w", topic, err) }
    ch := make(chan Event, 16)
    b.mu.Lock()
    b.subs[ch] = sub
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for d := range msgs {
            var evt Event
            if err := json.Unmarshal(d.Body, &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch, nil
}

func (b *AMQPBroker) consume(topic string) (<-chan amqp.Delivery, *amqp.Channel, error) {
    sub, err := b.conn.Channel()
    if err != nil { return nil, nil, err }
    q, err := sub.QueueDeclare(
        "",    // server-named
        false, // durable
        true,  // delete when unused
        true,  // exclusive
        false, // no-wait
        nil,   // arguments
    )
    if err != nil {
        _ = sub.Close()
        return nil, nil, err
    }
    if err := sub.QueueBind(q.Name, topic, amqpExchange, false, nil); err != nil {
        _ = sub.Close()
        return nil, nil, err
    }
    msgs, err := sub.Consume(q.Name, "", true, true, false, false, nil)
    if err != nil {
        _ = sub.Close()
        return nil, nil, err
    }
    return msgs, sub, nil
}

// Unsubscribe closes the subscriber's channel; the delivery stream ends and ch is closed.
func (b *AMQPBroker) Unsubscribe(topic string, ch chan Event) {
    b.mu.Lock()
    sub := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if sub != nil { _ = sub.Close() }
}

func (b *AMQPBroker) Publish(topic string, evt Event) {
    data, _ := json.Marshal(evt)
    b.pubMu.Lock()
    err := b.pub.Publish(amqpExchange, topic, false, false, amqp.Publishing{ContentType: "application/json", Body: data})
    b.pubMu.Unlock()
    if err != nil {
        b.log.Warn("amqp publish failed", zap.String("topic", topic), zap.Error(err))
    }
}

func (b *AMQPBroker) Close() error { return b.conn.Close() }
