// SPDX-License-Identifier: MIT
package transport

import (
	"chladni/internal/log"
	"chladni/internal/plate"
	"chladni/internal/render"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = time.Second

// WebSocketSink serves /ws and broadcasts every frame to connected clients
// as JSON. A client first receives a "bank" message, then "frame" messages.
// Frames are queued without blocking; when the queue is full they are
// dropped.
type WebSocketSink struct {
	addr      string
	bank      BankMessage
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan FrameMessage
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	server    *http.Server
	listener  net.Listener
}

// NewWebSocketSink prepares a sink for bank. Call Start to listen on addr,
// or mount Handler on an existing server.
func NewWebSocketSink(addr string, bank *plate.Bank, epsilon float64) *WebSocketSink {
	s := &WebSocketSink{
		addr: addr,
		bank: NewBankMessage(bank, epsilon),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualiser clients are served from anywhere
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan FrameMessage, 256),
		done:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.handleBroadcasts()
	return s
}

// Handler returns the HTTP handler serving /ws.
func (s *WebSocketSink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *WebSocketSink) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Infof("WebSocketSink: Serving frames on ws://%s/ws", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocketSink: Server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *WebSocketSink) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Clients returns the number of connected clients.
func (s *WebSocketSink) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketSink: Upgrade error: %v", err)
		return
	}

	// The bank goes out under the client lock so no frame can overtake it.
	s.clientsMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(s.bank); err != nil {
		s.clientsMu.Unlock()
		log.Warnf("WebSocketSink: Error sending mode bank: %v", err)
		conn.Close()
		return
	}
	s.clients[conn] = true
	total := len(s.clients)
	s.clientsMu.Unlock()
	log.Infof("WebSocketSink: Client connected, total: %d", total)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

func (s *WebSocketSink) drop(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	total := len(s.clients)
	s.clientsMu.Unlock()
	conn.Close()
	if ok {
		log.Infof("WebSocketSink: Client disconnected, total: %d", total)
	}
}

func (s *WebSocketSink) handleBroadcasts() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.broadcast:
			s.clientsMu.Lock()
			for client := range s.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(msg); err != nil {
					log.Warnf("WebSocketSink: Error sending to client: %v", err)
					client.Close()
					delete(s.clients, client)
				}
			}
			s.clientsMu.Unlock()
		}
	}
}

// Render queues f for broadcast. It never blocks.
func (s *WebSocketSink) Render(f render.Frame) error {
	select {
	case <-s.done:
		return errors.New("websocket sink is closed")
	default:
	}

	select {
	case s.broadcast <- NewFrameMessage(f):
	default:
		log.Debugf("WebSocketSink: Queue full, dropped frame %d", f.Seq)
	}
	return nil
}

// Close stops broadcasting, disconnects clients and shuts the server down.
func (s *WebSocketSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		log.Infof("WebSocketSink: Closing server")
		close(s.done)
		s.wg.Wait()

		s.clientsMu.Lock()
		for client := range s.clients {
			client.Close()
		}
		s.clients = make(map[*websocket.Conn]bool)
		s.clientsMu.Unlock()

		if s.server != nil {
			err = s.server.Close()
		}
	})
	return err
}

var _ render.Sink = (*WebSocketSink)(nil)
