package watch

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Reload message types.
const (
	MessageBuilding = "building"
	MessageRebuilt  = "rebuilt"
	MessageError    = "error"
)

// ReloadServer pushes catalog rebuild events to connected browsers.
type ReloadServer struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *ReloadMessage
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// ReloadMessage is one event sent to browsers.
type ReloadMessage struct {
	Type      string   `json:"type"`
	Timestamp int64    `json:"timestamp"`
	Files     []string `json:"files,omitempty"`
	Endpoints int      `json:"endpoints,omitempty"`
	Failed    int      `json:"failed,omitempty"`
	// Duration is in milliseconds.
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// NewReloadServer creates a reload server and starts its broadcast loop.
func NewReloadServer(logger *zap.Logger) *ReloadServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	rs := &ReloadServer{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *ReloadMessage, 256),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     localOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go rs.run()

	return rs
}

// localOrigin accepts same-origin requests and pages served from localhost.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://127.0.0.1")
}

func (rs *ReloadServer) run() {
	for {
		select {
		case <-rs.done:
			return

		case conn := <-rs.register:
			rs.mutex.Lock()
			rs.connections[conn] = true
			total := len(rs.connections)
			rs.mutex.Unlock()
			rs.logger.Debug("reload client connected", zap.Int("clients", total))

		case conn := <-rs.unregister:
			rs.mutex.Lock()
			if _, ok := rs.connections[conn]; ok {
				delete(rs.connections, conn)
				conn.Close()
			}
			total := len(rs.connections)
			rs.mutex.Unlock()
			rs.logger.Debug("reload client disconnected", zap.Int("clients", total))

		case message := <-rs.broadcast:
			rs.sendToAll(message)
		}
	}
}

func (rs *ReloadServer) sendToAll(message *ReloadMessage) {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		rs.logger.Error("failed to encode reload message", zap.Error(err))
		return
	}

	rs.mutex.RLock()
	var failedConns []*websocket.Conn
	for conn := range rs.connections {
		if err := conn.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
			rs.logger.Debug("failed to send reload message", zap.Error(err))
			failedConns = append(failedConns, conn)
		}
	}
	rs.mutex.RUnlock()

	if len(failedConns) > 0 {
		rs.mutex.Lock()
		for _, conn := range failedConns {
			if _, ok := rs.connections[conn]; ok {
				conn.Close()
				delete(rs.connections, conn)
			}
		}
		rs.mutex.Unlock()
	}
}

// ServeHTTP upgrades the request to a websocket and registers it.
func (rs *ReloadServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rs.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	select {
	case rs.register <- conn:
	case <-rs.done:
		conn.Close()
		return
	}

	go rs.readMessages(conn)
}

// readMessages keeps the connection alive until the client leaves.
func (rs *ReloadServer) readMessages(conn *websocket.Conn) {
	defer func() {
		select {
		case rs.unregister <- conn:
		case <-rs.done:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				rs.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
	}
}

func (rs *ReloadServer) send(msg *ReloadMessage) {
	msg.Timestamp = time.Now().Unix()
	select {
	case rs.broadcast <- msg:
	case <-rs.done:
	}
}

// NotifyBuilding announces a rebuild triggered by files.
func (rs *ReloadServer) NotifyBuilding(files []string) {
	rs.send(&ReloadMessage{Type: MessageBuilding, Files: files})
}

// NotifyRebuilt announces a published catalog.
func (rs *ReloadServer) NotifyRebuilt(endpoints, failed int, duration time.Duration) {
	rs.send(&ReloadMessage{
		Type:      MessageRebuilt,
		Endpoints: endpoints,
		Failed:    failed,
		Duration:  float64(duration.Milliseconds()),
	})
}

// NotifyError announces a rebuild that could not load the manifests.
func (rs *ReloadServer) NotifyError(files []string, err error) {
	rs.send(&ReloadMessage{Type: MessageError, Files: files, Error: err.Error()})
}

// ConnectionCount returns the number of active connections
func (rs *ReloadServer) ConnectionCount() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.connections)
}

// Close closes all connections and stops the broadcast loop.
func (rs *ReloadServer) Close() {
	rs.closeOnce.Do(func() {
		close(rs.done)

		rs.mutex.Lock()
		defer rs.mutex.Unlock()
		for conn := range rs.connections {
			conn.Close()
		}
		rs.connections = make(map[*websocket.Conn]bool)
	})
}
