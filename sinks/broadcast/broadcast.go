// Package broadcast pushes every packet, as JSON, to live websocket clients.
// Each connection gets its own dispatcher handle, so a slow client only ever
// loses its own backlog.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gr-butler/lorastation/dispatch"
	logger "github.com/sirupsen/logrus"
)

// Registry is the dispatcher side of a subscription.
type Registry interface {
	Subscribe(name string, size int) *dispatch.Handle
	Unsubscribe(h *dispatch.Handle)
}

type Hub struct {
	reg          Registry
	queueSize    int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	clients      int64
}

func New(reg Registry, queueSize int, writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	return &Hub{
		reg:          reg,
		queueSize:    queueSize,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	return int(atomic.LoadInt64(&h.clients))
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("Websocket upgrade from [%v] failed [%v]", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	sub := h.reg.Subscribe("ws "+r.RemoteAddr, h.queueSize)
	defer h.reg.Unsubscribe(sub)

	n := atomic.AddInt64(&h.clients, 1)
	defer atomic.AddInt64(&h.clients, -1)
	logger.Infof("Websocket client [%v] connected, [%v] clients", r.RemoteAddr, n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// clients only talk to say goodbye, but reading is what notices it
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		p, ok := sub.Next(ctx)
		if !ok {
			break
		}
		msg, err := json.Marshal(p)
		if err != nil {
			logger.Errorf("JSON error [%v]", err)
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Infof("Websocket client [%v] write failed [%v]", r.RemoteAddr, err)
			break
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.writeTimeout))
	logger.Infof("Websocket client [%v] disconnected, dropped [%v]", r.RemoteAddr, sub.Dropped())
}
