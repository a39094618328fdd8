// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"listener/internal/event"
	applog "listener/internal/log"
	"listener/pkg/build"
)

const (
	wsQueueSize    = 256
	wsWriteTimeout = 250 * time.Millisecond
)

// Envelope is the JSON object every WebSocket message is wrapped in.
type Envelope struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Data    any    `json:"data"`
}

// Hello is the first message a client receives after connecting.
type Hello struct {
	Version string `json:"version"`
}

// WebSocketTransport broadcasts every event as JSON to all clients
// connected on /ws.
type WebSocketTransport struct {
	session   string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Envelope
	done      chan struct{}
	wg        sync.WaitGroup
	server    *http.Server
	listener  net.Listener
	dropped   uint64
	closeOnce sync.Once
}

// NewWebSocketTransport listens on addr and starts serving. session is
// stamped on every envelope so clients can detect restarts.
func NewWebSocketTransport(addr, session string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket transport: listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Visualisers are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Envelope, wsQueueSize),
		done:      make(chan struct{}),
		listener:  ln,
	}
	wst.start()
	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		applog.Infof("WebSocketTransport: Serving on ws://%s/ws (session %s)", wst.Addr(), wst.session)
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
}

// handleWebSocket upgrades the connection, greets the client and registers
// it for broadcasts.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	hello := Envelope{Type: "hello", Session: wst.session, Data: Hello{Version: build.GetBuildFlags().Version}}

	wst.clientsMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		wst.clientsMu.Unlock()
		applog.Warnf("WebSocketTransport: Hello failed: %v", err)
		conn.Close()
		return
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients never send anything; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	conn.Close()
	if ok {
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued envelopes to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case env := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				_ = client.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := client.WriteJSON(env); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Send queues ev for broadcast. When the queue is full the event is
// dropped rather than stalling the capture goroutine.
func (wst *WebSocketTransport) Send(ev event.Event) error {
	select {
	case wst.broadcast <- Envelope{Type: ev.Name(), Session: wst.session, Data: ev}:
	default:
		wst.dropped++
		if wst.dropped%1000 == 1 {
			applog.Warnf("WebSocketTransport: Queue full, %d events dropped so far", wst.dropped)
		}
	}
	return nil
}

// Close disconnects all clients and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		err = wst.server.Close()
		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
