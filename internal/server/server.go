package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"twentyone/internal/config"
	"twentyone/internal/game"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errUnknownToken = errors.New("unknown bearer token")
)

type Server struct {
	game       *game.Service
	ws         *wsHub
	identities *identityStore
	log        *logrus.Logger
}

// New wires the session core to its transport. Extra notifiers (e.g. the
// redis publisher) are fanned out alongside the websocket hub.
func New(conn *gorm.DB, cfg config.Config, log *logrus.Logger, extra ...game.Notifier) *Server {
	if log == nil {
		log = logrus.New()
	}
	hub := newWSHub(log)
	notifiers := append(game.MultiNotifier{hub}, extra...)
	return &Server{
		game:       game.NewService(conn, cfg, log, notifiers),
		ws:         hub,
		identities: newIdentityStore(conn),
		log:        log,
	}
}

// Game exposes the session core, mainly for shutdown hooks.
func (s *Server) Game() *game.Service { return s.game }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/join", s.handleJoin)
	mux.HandleFunc("POST /api/sessions/{id}/start", s.handleStart)
	mux.HandleFunc("POST /api/sessions/{id}/request-card", s.handleRequestCard)
	mux.HandleFunc("POST /api/sessions/{id}/deal-card", s.handleDealCard)
	mux.HandleFunc("POST /api/sessions/{id}/stand", s.handleStand)
	mux.HandleFunc("POST /api/sessions/{id}/stand-player", s.handleStandPlayer)
	mux.HandleFunc("POST /api/sessions/{id}/leave", s.handleLeave)
	mux.HandleFunc("POST /api/sessions/{id}/finish", s.handleFinish)
	mux.HandleFunc("POST /api/sessions/{id}/reveal", s.handleReveal)
	mux.HandleFunc("POST /api/sessions/{id}/rematch", s.handleProposeRematch)
	mux.HandleFunc("POST /api/sessions/{id}/rematch-response", s.handleRematchResponse)
	mux.HandleFunc("GET /api/sessions/{id}/card-requests", s.handleCardRequests)
	mux.HandleFunc("GET /ws/sessions/{id}", s.handleWebsocket)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Info("http request")
	})
}
