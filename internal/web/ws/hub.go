package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/podvault/podvault/internal/store/constants"
	"github.com/podvault/podvault/internal/store/types"
	"github.com/podvault/podvault/internal/syslog"
	"github.com/podvault/podvault/internal/utils/safemap"
)

// Hub broadcasts engine events to connected UI clients. It is the
// presentation adapter: the runner calls JobUpdate/BatchDone and every
// connected socket receives the event as JSON. A slow client's buffer
// overflowing drops that client, never blocks the engine.
type Hub struct {
	upgrader websocket.Upgrader
	clients  *safemap.Map[*client, struct{}]
}

type client struct {
	conn  *websocket.Conn
	send  chan event
	done  chan struct{}
	close sync.Once
}

type event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type jobUpdatePayload struct {
	TargetID    string         `json:"target_id"`
	State       types.JobState `json:"state"`
	Percent     int            `json:"percent"`
	StepLabel   string         `json:"step_label,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is handled by the CORS middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: safemap.New[*client, struct{}](),
	}
}

// Handler upgrades the request and keeps the connection until the
// client goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			syslog.L.Error(err).WithMessage("websocket upgrade failed").Write()
			return
		}

		c := &client{
			conn: conn,
			send: make(chan event, 64),
			done: make(chan struct{}),
		}
		h.clients.Set(c, struct{}{})

		go h.writeLoop(c)
		go h.readLoop(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readLoop discards inbound frames; the socket is push-only. It exists
// to notice closes and process control frames.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	c.close.Do(func() {
		h.clients.Del(c)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (h *Hub) broadcast(ev event) {
	h.clients.ForEach(func(c *client, _ struct{}) bool {
		select {
		case c.send <- ev:
		default:
			// Buffer full; the client is too slow to keep up.
			h.drop(c)
		}
		return true
	})
}

// JobUpdate implements orchestrator.Presenter.
func (h *Hub) JobUpdate(targetID string, u types.ProgressUpdate) {
	h.broadcast(event{
		Type: "job_update",
		Payload: jobUpdatePayload{
			TargetID:    targetID,
			State:       u.State,
			Percent:     u.Percent,
			StepLabel:   u.StepLabel,
			ErrorDetail: u.ErrorDetail,
		},
	})
}

// BatchDone implements orchestrator.Presenter.
func (h *Hub) BatchDone(summary types.BatchSummary) {
	h.broadcast(event{
		Type:    "batch_done",
		Payload: summary,
	})
}
