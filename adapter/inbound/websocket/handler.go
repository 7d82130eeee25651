// Package websocket streams coordinator events (sent/failed/queued) to
// connected admin clients, grounded on the teacher's per-connection
// gorilla/websocket handler but fanned out from the event dispatcher
// instead of a per-queue subscription.
package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ajkula/sendcoordinator/domain/model"
	"github.com/ajkula/sendcoordinator/domain/port/outbound"
)

// Dispatcher is the subset of model.Dispatcher the handler needs, kept as
// an interface so tests can substitute a fake.
type Dispatcher interface {
	Subscribe(kind model.EventKind, handler model.EventHandler) string
	Unsubscribe(kind model.EventKind, id string)
}

// Handler upgrades admin clients to a websocket and streams every
// published coordinator event to them as JSON.
type Handler struct {
	events   Dispatcher
	upgrader websocket.Upgrader
	logger   outbound.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func NewHandler(events Dispatcher, logger outbound.Logger) *Handler {
	return &Handler{
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]bool),
	}
}

// eventEnvelope is the wire shape pushed to every connected client.
type eventEnvelope struct {
	ID          string               `json:"id"`
	Kind        model.EventKind      `json:"kind"`
	Fingerprint model.Fingerprint    `json:"fingerprint"`
	Success     *model.SuccessResult `json:"success,omitempty"`
	ErrorDesc   string               `json:"errorDesc,omitempty"`
}

// HandleConnection upgrades the request and subscribes the connection to
// every event kind until the client disconnects.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	var writeMu sync.Mutex
	send := func(e model.Event) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(eventEnvelope{
			ID:          e.ID,
			Kind:        e.Kind,
			Fingerprint: e.Fingerprint,
			Success:     e.Success,
			ErrorDesc:   e.ErrorDesc,
		})
	}

	subs := map[model.EventKind]string{
		model.EventSent:   h.events.Subscribe(model.EventSent, send),
		model.EventFailed: h.events.Subscribe(model.EventFailed, send),
		model.EventQueued: h.events.Subscribe(model.EventQueued, send),
	}

	defer func() {
		for kind, id := range subs {
			h.events.Unsubscribe(kind, id)
		}
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard client frames; this is a push-only stream. The read
	// loop's only job is to notice the connection closing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
