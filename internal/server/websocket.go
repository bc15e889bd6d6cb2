package server

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// wsHub fans session events out to every observer connected for that
// session id.
type wsHub struct {
	mu     sync.Mutex
	log    *logrus.Logger
	groups map[uint]map[*websocket.Conn]struct{}
}

func newWSHub(log *logrus.Logger) *wsHub {
	return &wsHub{
		log:    log,
		groups: make(map[uint]map[*websocket.Conn]struct{}),
	}
}

func (h *wsHub) Add(sessionID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	if group == nil {
		group = make(map[*websocket.Conn]struct{})
		h.groups[sessionID] = group
	}
	group[conn] = struct{}{}
}

func (h *wsHub) Remove(sessionID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[sessionID]
	if group == nil {
		return
	}
	delete(group, conn)
	_ = conn.Close()
	if len(group) == 0 {
		delete(h.groups, sessionID)
	}
}

func (h *wsHub) Send(conn *websocket.Conn, payload any) {
	_ = conn.WriteJSON(payload)
}

// Publish implements game.Notifier. Writes are best-effort; a failed write
// drops the connection.
func (h *wsHub) Publish(sessionID uint, event string, payload map[string]any) {
	h.mu.Lock()
	group := h.groups[sessionID]
	conns := make([]*websocket.Conn, 0, len(group))
	for conn := range group {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	message := map[string]any{
		"event":   event,
		"payload": payload,
	}
	for _, conn := range conns {
		if err := conn.WriteJSON(message); err != nil {
			h.Remove(sessionID, conn)
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sessionID := uint(id)
	snap, err := s.game.GetSession(r.Context(), sessionID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"remote":     r.RemoteAddr,
	}).Info("websocket connected")
	s.ws.Add(sessionID, conn)
	s.ws.Send(conn, snap)
	go s.readWS(sessionID, conn)
}

func (s *Server) readWS(sessionID uint, conn *websocket.Conn) {
	defer s.ws.Remove(sessionID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err,
			}).Info("websocket disconnected")
			return
		}
	}
}
