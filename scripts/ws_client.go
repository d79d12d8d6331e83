// Package main runs a demo WebSocket client for gate events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func post(base, path string, body any, out any) error {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Seed an org, driver and slot
	var org struct {
		ID string `json:"id"`
	}
	if err := post(base, "/v1/organizations", map[string]any{"name": "WS Demo Haulage"}, &org); err != nil {
		log.Fatal(err)
	}
	var driver struct {
		ID string `json:"id"`
	}
	if err := post(base, "/v1/drivers", map[string]any{"org_id": org.ID, "name": "Demo Driver", "phone": "+15550199"}, &driver); err != nil {
		log.Fatal(err)
	}
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	var slot struct {
		ID string `json:"id"`
	}
	if err := post(base, "/v1/slots", map[string]any{"date": date, "start_time": "06:00", "end_time": "08:00", "capacity": 10}, &slot); err != nil {
		log.Fatal(err)
	}

	// Connect WS and subscribe to the gate topic
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Topic: "gate"}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			if m.Type == "ping" {
				_ = c.WriteJSON(wsMessage{Type: "pong"})
				continue
			}
			log.Printf("WS <- %s %s: %s", m.Type, m.Event, string(m.Data))
		}
	}()

	// Trigger a permit.issued event by booking directly
	time.Sleep(500 * time.Millisecond)
	var booked struct {
		PermitCode string `json:"permit_code"`
	}
	if err := post(base, "/v1/book", map[string]any{"org_id": org.ID, "driver_id": driver.ID, "slot_id": slot.ID, "cargo_type": "GENERAL"}, &booked); err != nil {
		log.Fatal(err)
	}
	log.Printf("booked permit %s", booked.PermitCode)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
