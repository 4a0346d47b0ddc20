package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
)

const defaultKeepAlive = 30 * time.Second

// SessionFeed is the read side of the session store. *session.Store satisfies it.
type SessionFeed interface {
	SnapshotSource
	Subscribe(buffer int) (<-chan domainauth.Snapshot, func())
}

// SessionHandlers expose the session snapshot to the dashboard.
type SessionHandlers struct {
	Sessions  SessionFeed
	KeepAlive time.Duration
	Logger    *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Get returns the current snapshot.
// GET /session.
func (h *SessionHandlers) Get(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, h.Sessions.State())
}

// Events streams snapshots as server-sent events: the current snapshot on connect, then every
// change, with comment lines as keepalives.
// GET /session/events.
func (h *SessionHandlers) Events(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if accept != "" && accept != "*/*" && !strings.HasPrefix(accept, "text/event-stream") {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotAcceptable,
			ErrCode: "not_acceptable",
			Err:     fmt.Errorf("content-type %s is not supported", accept),
		})
		return
	}
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, cancel := h.Sessions.Subscribe(4)
	defer cancel()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	h.logger().DebugContext(ctx, "session stream opened", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			h.logger().DebugContext(ctx, "session stream closed", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				return
			}
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				h.logger().ErrorContext(ctx, "encode snapshot failed", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: session\nid: %d\ndata: %s\n\n", snap.Version, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
