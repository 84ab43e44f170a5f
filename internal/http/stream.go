package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/agromarket/internal/client"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	FrameSession  = "session"
	FrameCatalog  = "catalog"
	FrameCheckout = "checkout"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var frameOrder = []string{FrameSession, FrameCatalog, FrameCheckout}

type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origins are enforced by the CORS layer
		return true
	},
}

// pending keeps only the newest frame of each type until the writer sends it.
type pending struct {
	mu     sync.Mutex
	frames map[string]interface{}
	notify chan struct{}
}

func newPending() *pending {
	return &pending{
		frames: make(map[string]interface{}),
		notify: make(chan struct{}, 1),
	}
}

func (p *pending) put(kind string, data interface{}) {
	p.mu.Lock()
	p.frames[kind] = data
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *pending) drain() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Frame, 0, len(p.frames))
	for _, kind := range frameOrder {
		if data, ok := p.frames[kind]; ok {
			out = append(out, Frame{Type: kind, Data: data})
		}
	}
	p.frames = make(map[string]interface{})
	return out
}

// Stream upgrades to a websocket and pushes session, catalog and checkout
// snapshots as they change. Each frame carries a full replacement value.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	log := h.log.WithField("client_id", ws.ID)
	log.Debug("stream opened")

	out := newPending()
	out.put(FrameSession, newSessionResponse(ws.Session.Current()))
	out.put(FrameCatalog, h.catalog.Snapshot())
	if cs := ws.Checkout.Current(); cs != nil {
		out.put(FrameCheckout, cs)
	}

	cancelSession := ws.Session.Subscribe(func(*domain.Session) {
		out.put(FrameSession, newSessionResponse(ws.Session.Current()))
	})
	defer cancelSession()
	cancelCatalog := h.catalog.Subscribe(func(products []domain.Product) {
		out.put(FrameCatalog, products)
	})
	defer cancelCatalog()
	cancelCheckout := ws.Checkout.Subscribe(func(cs *domain.CheckoutSession) {
		out.put(FrameCheckout, cs)
	})
	defer cancelCheckout()

	done := make(chan struct{})
	go readPump(conn, done)

	h.writePump(conn, ws, out, done, log)
	log.Debug("stream closed")
}

// readPump discards client messages and reports when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, ws *client.Workspace, out *pending, done <-chan struct{}, log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-out.notify:
			for _, f := range out.drain() {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(f); err != nil {
					log.WithError(err).Debug("stream write failed")
					return
				}
			}
		case <-ticker.C:
			// keeps the workspace from being evicted while the stream is open
			if _, err := h.workspaces.Get(context.Background(), ws.ID); err != nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
