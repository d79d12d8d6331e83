package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket subscription endpoint for gate events (/v1/events/ws).
// Protocol: client sends {"type":"subscribe","id":"1","topic":"gate"},
// server answers {"type":"ack"} then streams {"type":"event", ...} frames.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventsWSHandler handles /v1/events/ws
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		topic string
		ch    chan SSEEvent
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// One writer at a time: the read loop, keepalive ticker and fan-out
	// goroutines all write to the same connection.
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}

	// Keepalive
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := write(wsMessage{Type: "ping"}); err != nil {
				return
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			topic := msg.Topic
			if topic == "" {
				topic = TopicGate
			}
			// Drivers may only follow their own permit topic.
			if !pr.IsOps() {
				if pr.Role != "driver" || pr.DriverID == "" || topic != "driver:"+pr.DriverID {
					_ = write(wsMessage{Type: "error", ID: msg.ID, Data: []byte(`{"message":"forbidden"}`)})
					continue
				}
			}
			if !strings.HasPrefix(topic, "driver:") && topic != TopicGate {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Data: []byte(`{"message":"unknown topic"}`)})
				continue
			}
			ch := s.Broker.Subscribe(topic)
			subs[msg.ID] = sub{topic: topic, ch: ch}
			_ = write(wsMessage{Type: "ack", ID: msg.ID, Topic: topic})
			go func(id string, c chan SSEEvent) {
				for evt := range c {
					data, _ := json.Marshal(evt.Data)
					_ = write(wsMessage{Type: "event", ID: id, Event: evt.Type, Data: data})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "unsubscribe":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.topic, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.topic, s0.ch)
		delete(subs, id)
	}
}
