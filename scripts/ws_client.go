// Package main runs a demo WebSocket client for the heatmap stream.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	bbox := flag.String("bbox", "-74.02,40.70,-73.97,40.75", "minLng,minLat,maxLng,maxLat")
	days := flag.Int("days", 0, "window in days (0 = server default)")
	wait := flag.Duration("wait", 5*time.Second, "how long to listen")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/safety/heatmap/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	pl, _ := json.Marshal(map[string]any{"bbox": *bbox, "days": *days})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
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
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			if m.Type == "complete" {
				return
			}
		}
	}()

	select {
	case <-time.After(*wait):
		_ = c.WriteJSON(wsMessage{Type: "complete", ID: "1"})
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
}
