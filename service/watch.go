package service

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dkrizic/groupstore/group"
	"github.com/dkrizic/groupstore/telemetry/localmetrics"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
)

const (
	watchBuffer  = 16
	writeTimeout = 10 * time.Second
)

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWatch streams the current group and then every change as JSON text
// messages. A client that falls more than watchBuffer values behind is
// disconnected, Set never waits for a socket.
func (a *API) handleWatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("service/watch").Start(r.Context(), "Watch")
	defer span.End()

	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(ctx, "Problem initiating websocket", "error", err)
		return
	}
	defer conn.Close()
	localmetrics.WatchCounter().Add(ctx, 1)

	updates := make(chan group.Group, watchBuffer)
	overflow := make(chan struct{})
	overflowed := false
	unsubscribe := a.store.Subscribe(func(g group.Group) {
		select {
		case updates <- g:
		default:
			if !overflowed {
				overflowed = true
				close(overflow)
			}
		}
	})
	defer unsubscribe()

	// the read loop only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	slog.DebugContext(ctx, "Watch started", "remote", r.RemoteAddr)
	for {
		select {
		case g := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(g); err != nil {
				slog.DebugContext(ctx, "Watch write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-overflow:
			slog.WarnContext(ctx, "Watch client too slow, closing", "remote", r.RemoteAddr)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
				time.Now().Add(writeTimeout))
			return
		case <-closed:
			slog.DebugContext(ctx, "Watch client disconnected", "remote", r.RemoteAddr)
			return
		case <-a.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			return
		}
	}
}
