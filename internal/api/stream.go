package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"garage-backend-go/internal/core"
	"garage-backend-go/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StateSource is what the stream needs from core.SyncController.
type StateSource interface {
	State() core.State
	Observe(fn core.Observer) func()
}

type streamClient struct {
	conn *websocket.Conn
	uid  string // user the socket was opened for
	wake chan struct{}

	mu      sync.Mutex
	pending *core.State
	sent    bool
	last    uint64 // version of the last state written
	ended   bool   // the session of uid is over
}

func newStreamClient(conn *websocket.Conn, uid string) *streamClient {
	return &streamClient{conn: conn, uid: uid, wake: make(chan struct{}, 1)}
}

// offer queues st for the writer. Only the newest state is kept; a state
// not newer than the pending or the last written one is dropped. Once the
// socket's user signs out, or another user signs in, the client is ended.
func (cl *streamClient) offer(st core.State) {
	cl.mu.Lock()
	switch {
	case cl.ended:
	case st.Phase == core.PhaseSignedOut, st.UID != "" && cl.uid != "" && st.UID != cl.uid:
		cl.ended = true
		cl.pending = nil
	case cl.pending != nil && st.Version <= cl.pending.Version:
	case cl.sent && st.Version <= cl.last:
	default:
		cl.pending = &st
	}
	cl.mu.Unlock()

	select {
	case cl.wake <- struct{}{}:
	default:
	}
}

// next takes the pending state. ended reports that the socket must close.
func (cl *streamClient) next() (st *core.State, ended bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.ended {
		return nil, true
	}
	st, cl.pending = cl.pending, nil
	if st != nil {
		cl.sent = true
		cl.last = st.Version
	}
	return st, false
}

// StreamHub pushes the controller state to websocket clients: the current
// state on connect, then the newest state after each change.
type StreamHub struct {
	source   StateSource
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

// NewStreamHub creates a hub. allowOrigin decides the websocket origin
// check; nil accepts every origin.
func NewStreamHub(source StateSource, logger *zap.Logger, allowOrigin func(origin string) bool) *StreamHub {
	h := &StreamHub{
		source:  source,
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowOrigin == nil || origin == "" || allowOrigin(origin)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS handles GET /stream. The socket is closed when its session ends.
func (h *StreamHub) ServeWS(c *gin.Context) {
	uid := ""
	if s := middleware.SessionFrom(c); s != nil {
		uid = s.UID
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	client := newStreamClient(conn, uid)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	unsubscribe := h.source.Observe(client.offer)
	client.offer(h.source.State())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(client, done)
	}()

	defer func() {
		unsubscribe()
		close(done)
		wg.Wait()
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients only listen; reading detects the close.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writeLoop(client *streamClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-client.wake:
			st, ended := client.next()
			if ended {
				_ = client.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"), time.Now().Add(writeWait))
				_ = client.conn.Close()
				return
			}
			if st == nil {
				continue
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(st); err != nil {
				h.logger.Debug("Stream write failed", zap.Error(err))
				_ = client.conn.Close()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = client.conn.Close()
				return
			}
		case <-done:
			_ = client.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
