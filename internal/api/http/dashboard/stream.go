package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/oshokin/cucoon/internal/logger"
)

// writeTimeout bounds a single snapshot write to a slow browser.
const writeTimeout = 5 * time.Second

// stream pushes the current snapshot and then every update over a WebSocket.
// Clients never send anything; reads only serve close frames.
func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.WarnKV(h.ctx, "WebSocket upgrade failed", "error", err)
		return
	}

	defer conn.Close(websocket.StatusNormalClosure, "closing")

	sub := h.service.Subscribe()
	defer sub.Close()

	ctx := conn.CloseRead(r.Context())

	if err = write(ctx, conn, h.service.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.DebugKV(h.ctx, "WebSocket client left", "remote", r.RemoteAddr)
			return
		case snapshot, ok := <-sub.Updates():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "dashboard stopping")
				return
			}

			if err = write(ctx, conn, snapshot); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.DebugKV(h.ctx, "WebSocket write failed", "remote", r.RemoteAddr, "error", err)
				}

				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, v)
}
