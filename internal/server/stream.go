package server

import (
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const streamPingInterval = 30 * time.Second

// handleRunStream implements GET /api/runs/stream: a websocket that pushes
// every RunEvent published on the bus to this connection until the client
// disconnects (spec §10, mirroring the teacher's market-status push
// channel but server-initiated rather than client-initiated).
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "run event stream not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to accept websocket connection")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	events, unsubscribe := s.events.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "stream closed")
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}
