package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe(TopicGate)
    defer func() { recover() }() // ignore close panic if already closed

    evt := SSEEvent{Type: "permit.halted", Data: map[string]any{"permit_id": "p1"}}
    b.Publish(TopicGate, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["permit_id"].(string) != "p1" { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(TopicGate, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        // acceptable if already drained and closed
    }
}

func TestBrokerTopicsAreIsolated(t *testing.T) {
    b := NewBroker()
    gate := b.Subscribe(TopicGate)
    drv := b.Subscribe("driver:d1")
    defer func() { recover() }()

    b.Publish("driver:d1", SSEEvent{Type: "permit.issued", Data: map[string]any{}})
    select {
    case <-gate:
        t.Fatal("gate topic received a driver event")
    case <-time.After(50 * time.Millisecond):
    }
    select {
    case got := <-drv:
        if got.Type != "permit.issued" { t.Fatalf("got %s", got.Type) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("driver event lost")
    }
    b.Unsubscribe(TopicGate, gate)
    b.Unsubscribe("driver:d1", drv)
}
