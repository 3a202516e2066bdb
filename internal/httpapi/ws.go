package httpapi

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

const wsWriteTimeout = 10 * time.Second

// handleStream upgrades to WebSocket and forwards live events. Slow
// clients get dropped events rather than a growing backlog.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(baseWriter(w), r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	clientCh := make(chan core.Event, 256)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	s.clients[clientCh] = struct{}{}
	s.metrics.IncWSClients(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, clientCh)
		s.mu.Unlock()
		s.metrics.IncWSClients(-1)
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case ev, ok := <-clientCh:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return
			}
			s.metrics.IncEventsSent(string(ev.Kind))
		}
	}
}

func (s *Server) originPatterns() []string {
	if s.cors == nil {
		return nil
	}
	if s.cors.allowAll {
		return []string{"*"}
	}
	// AcceptOptions match on host patterns, not full origins.
	patterns := make([]string, 0, len(s.cors.origins))
	for origin := range s.cors.origins {
		patterns = append(patterns, stripScheme(origin))
	}
	return patterns
}

func stripScheme(origin string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(origin) > len(prefix) && origin[:len(prefix)] == prefix {
			return origin[len(prefix):]
		}
	}
	return origin
}
