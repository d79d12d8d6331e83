package api

import (
    "sync"
)

type SSEEvent struct {
    Type string
    Data map[string]any
}

// The gate topic carries issuance/halt/reinstate events; per-driver topics
// carry that driver's permits only.
const TopicGate = "gate"

type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan SSEEvent]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[topic] == nil { b.subs[topic] = map[chan SSEEvent]struct{}{} }
    b.subs[topic][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan SSEEvent) {
    b.mu.Lock()
    if m := b.subs[topic]; m != nil {
        delete(m, ch)
        if len(m) == 0 { delete(b.subs, topic) }
    }
    b.mu.Unlock()
    close(ch)
}

func (b *Broker) Publish(topic string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[topic]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
