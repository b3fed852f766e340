package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
	maxReadSize   = 512
)

// wsWriter pumps one subscription into a websocket connection. Viewers only
// listen, so the read side exists to process control frames and notice
// disconnects.
type wsWriter struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	sub      *Subscription
	readDone chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ServeWebSocket delivers sub to conn until either side goes away. It closes
// both before returning.
func ServeWebSocket(conn *websocket.Conn, sub *Subscription, clock clockwork.Clock) {
	w := &wsWriter{
		conn:     conn,
		clock:    clock,
		sub:      sub,
		readDone: make(chan struct{}),
	}
	w.configureReader()

	w.wg.Add(1)
	go w.readLoop()

	reason := w.writeLoop()
	w.stop(reason)
}

func (w *wsWriter) configureReader() {
	w.conn.SetReadLimit(maxReadSize)
	w.updateReadDeadline()
	w.conn.SetPongHandler(func(string) error {
		w.updateReadDeadline()
		return nil
	})
}

func (w *wsWriter) readLoop() {
	defer w.wg.Done()
	defer close(w.readDone)
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop returns the close reason to send, or "" when the connection is
// already gone.
func (w *wsWriter) writeLoop() string {
	ticker := w.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.sub.Ready():
			for _, msg := range w.sub.Drain() {
				w.updateWriteDeadline()
				if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					slog.Debug("Websocket write failed", "error", err)
					return ""
				}
			}
		case <-ticker.Chan():
			w.updateWriteDeadline()
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return ""
			}
		case <-w.readDone:
			return ""
		case <-w.sub.Done():
			return "server shutting down"
		}
	}
}

func (w *wsWriter) stop(reason string) {
	w.stopOnce.Do(func() {
		w.sub.Close()
		if reason != "" {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
			_ = w.conn.WriteControl(websocket.CloseMessage, closeMsg, w.clock.Now().Add(writeDeadline))
		}
		_ = w.conn.Close()
		w.wg.Wait()
	})
}

func (w *wsWriter) updateWriteDeadline() {
	_ = w.conn.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
}

func (w *wsWriter) updateReadDeadline() {
	_ = w.conn.SetReadDeadline(w.clock.Now().Add(pongDeadline))
}
