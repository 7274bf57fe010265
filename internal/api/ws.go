package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kunaaa123/ai-mcp-hub/internal/events"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = 50 * time.Second
)

// handleWS upgrades the connection and streams session events. The
// client subscribes by sending "join:session <session_id>"; each
// subsequent join replaces the previous subscription.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", "error", err)
		return
	}

	joins := make(chan string, 4)
	done := make(chan struct{})

	go readJoins(conn, joins, done)

	s.writeLoop(conn, joins, done)
}

// readJoins parses join commands and detects disconnect. The send
// selects against done so the reader never hangs on a writer that has
// already returned.
func readJoins(conn *websocket.Conn, joins chan<- string, done <-chan struct{}) {
	defer close(joins)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		text := strings.TrimSpace(string(raw))
		if id, ok := strings.CutPrefix(text, "join:session "); ok {
			select {
			case joins <- strings.TrimSpace(id):
			case <-done:
				return
			}
		}
	}
}

// writeLoop owns the connection's write side: event fan-out and pings.
func (s *Server) writeLoop(conn *websocket.Conn, joins <-chan string, done chan<- struct{}) {
	defer close(done)
	defer conn.Close()

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	var active *events.Subscription
	var eventCh chan events.Event // nil until the first join; nil blocks
	defer func() {
		if active != nil {
			active.Close()
		}
	}()

	for {
		select {
		case sessionID, ok := <-joins:
			if !ok {
				return
			}
			if active != nil {
				active.Close()
			}
			active = s.bus.Subscribe(sessionID)
			eventCh = active.C

			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(map[string]any{"event": "joined", "session_id": sessionID}); err != nil {
				return
			}

		case event, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
