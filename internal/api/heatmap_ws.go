package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"safemap/internal/scoring"
)

// Heatmap stream over WebSocket. A client sends
//
//	{"type":"subscribe","id":"1","payload":{"bbox":"...","days":30}}
//
// and receives "next" messages carrying the heatmap immediately and on
// every refresh, until it sends {"type":"complete","id":"1"}.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type heatmapSubscription struct {
	BBox string `json:"bbox"`
	Days int    `json:"days"`
}

// HeatmapWSHandler handles /v1/safety/heatmap/ws
func (s *Server) HeatmapWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	writeErr := func(id, msg string) {
		pl, _ := json.Marshal(map[string]string{"message": msg})
		_ = write(wsMessage{Type: "error", ID: id, Payload: pl})
	}

	subs := map[string]context.CancelFunc{}
	var wg sync.WaitGroup
	defer func() {
		cancel()
		for _, stop := range subs {
			stop()
		}
		wg.Wait()
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				wmu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			_ = write(wsMessage{Type: "pong", ID: msg.ID})
		case "subscribe":
			if msg.ID == "" {
				writeErr("", "id required")
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				writeErr(msg.ID, "subscription id already in use")
				continue
			}
			var sub heatmapSubscription
			if err := json.Unmarshal(msg.Payload, &sub); err != nil || sub.BBox == "" {
				writeErr(msg.ID, "payload must contain bbox")
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			subCtx, stop := context.WithCancel(ctx)
			subs[msg.ID] = stop
			wg.Add(1)
			go func(id string, sub heatmapSubscription) {
				defer wg.Done()
				s.streamHeatmap(subCtx, id, sub, write, writeErr)
			}(msg.ID, sub)
		case "complete":
			if stop, ok := subs[msg.ID]; ok {
				stop()
				delete(subs, msg.ID)
			}
		default:
			writeErr(msg.ID, "unsupported message type: "+msg.Type)
		}
	}
}

func (s *Server) streamHeatmap(ctx context.Context, id string, sub heatmapSubscription, write func(any) error, writeErr func(id, msg string)) {
	interval := s.StreamInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		payload, _, err := s.Engine.Heatmap(ctx, sub.BBox, sub.Days)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, scoring.ErrInvalidInput) {
				writeErr(id, err.Error())
			} else {
				s.Log.Warn("heatmap stream query failed", "id", id, "err", err)
				writeErr(id, "heatmap unavailable")
			}
			_ = write(wsMessage{Type: "complete", ID: id})
			return
		}
		if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			_ = write(wsMessage{Type: "complete", ID: id})
			return
		case <-ticker.C:
		}
	}
}
