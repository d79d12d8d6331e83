package api

import (
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/gorilla/websocket"
)

func dialWS(t *testing.T, s *Server, hdr http.Header) (*websocket.Conn, func()) {
    t.Helper()
    ts := httptest.NewServer(http.HandlerFunc(s.EventsWSHandler))
    url := "ws" + strings.TrimPrefix(ts.URL, "http")
    c, _, err := websocket.DefaultDialer.Dial(url, hdr)
    if err != nil {
        ts.Close()
        t.Fatalf("dial: %v", err)
    }
    return c, func() { _ = c.Close(); ts.Close() }
}

func TestEventsWSSubscribeAndFanOut(t *testing.T) {
    s := newTestServer(t)
    c, done := dialWS(t, s, nil)
    defer done()

    for _, sub := range []wsMessage{
        {Type: "subscribe", ID: "1", Topic: TopicGate},
        {Type: "subscribe", ID: "2", Topic: "driver:d1"},
    } {
        if err := c.WriteJSON(sub); err != nil { t.Fatalf("subscribe: %v", err) }
        var ack wsMessage
        if err := c.ReadJSON(&ack); err != nil { t.Fatalf("ack: %v", err) }
        if ack.Type != "ack" || ack.ID != sub.ID { t.Fatalf("ack = %+v", ack) }
    }

    // Fan-out goroutines for both subscriptions write to one connection;
    // frames must arrive intact with concurrent publishers.
    const perTopic = 5
    var wg sync.WaitGroup
    wg.Add(2)
    go func() {
        defer wg.Done()
        for i := 0; i < perTopic; i++ {
            s.Broker.Publish(TopicGate, SSEEvent{Type: "permit.issued", Data: map[string]any{"n": i}})
            time.Sleep(time.Millisecond)
        }
    }()
    go func() {
        defer wg.Done()
        for i := 0; i < perTopic; i++ {
            s.Broker.Publish("driver:d1", SSEEvent{Type: "permit.halted", Data: map[string]any{"n": i}})
            time.Sleep(time.Millisecond)
        }
    }()

    got := map[string]int{}
    _ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
    for got["1"] < perTopic || got["2"] < perTopic {
        var m wsMessage
        if err := c.ReadJSON(&m); err != nil { t.Fatalf("read (got %v): %v", got, err) }
        if m.Type != "event" { continue }
        got[m.ID]++
    }
    wg.Wait()
}

func TestEventsWSDriverTopicRestriction(t *testing.T) {
    s := newTestServer(t)
    hdr := http.Header{}
    hdr.Set("X-Role", "driver")
    hdr.Set("X-Driver-Id", "d9")
    c, done := dialWS(t, s, hdr)
    defer done()

    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Topic: TopicGate}); err != nil {
        t.Fatalf("subscribe: %v", err)
    }
    var m wsMessage
    _ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
    if err := c.ReadJSON(&m); err != nil { t.Fatalf("read: %v", err) }
    if m.Type != "error" { t.Fatalf("gate subscribe as driver: %+v", m) }

    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "2", Topic: "driver:d9"}); err != nil {
        t.Fatalf("subscribe own: %v", err)
    }
    if err := c.ReadJSON(&m); err != nil { t.Fatalf("read: %v", err) }
    if m.Type != "ack" || m.Topic != "driver:d9" { t.Fatalf("own topic: %+v", m) }
}
