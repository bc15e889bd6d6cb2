package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"twentyone/internal/config"
	"twentyone/internal/db"
)

// User is the external identity a caller acts as. Issuance and verification
// of identities happen outside this core.
type User struct {
	ID   string
	Name string
}

// Service is the session core. Every read-modify-write it performs runs
// inside one transaction holding an exclusive lock on the session row, so
// concurrent handlers (and server instances) serialize on the store rather
// than on in-process memory.
type Service struct {
	db       *gorm.DB
	cfg      config.Config
	log      *logrus.Logger
	notifier Notifier

	timersMu sync.Mutex
	timers   map[uint]*time.Timer
}

func NewService(conn *gorm.DB, cfg config.Config, log *logrus.Logger, notifier Notifier) *Service {
	if log == nil {
		log = logrus.New()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		db:       conn,
		cfg:      cfg,
		log:      log,
		notifier: notifier,
		timers:   make(map[uint]*time.Timer),
	}
}

// withSessionLock runs fn inside a transaction that holds an exclusive lock
// on the session row, players and cards preloaded in seat-id order. The lock
// wait is bounded by timeoutMS; expiry or deadlock surfaces as a retryable
// error. Postgres-only clauses are skipped on other dialects (tests run on
// sqlite, where transactions serialize on the whole database).
func (s *Service) withSessionLock(ctx context.Context, sessionID uint, timeoutMS int, fn func(tx *gorm.DB, session *db.Session) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		postgres := tx.Dialector.Name() == "postgres"
		if postgres {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMS)).Error; err != nil {
				return err
			}
		}
		query := tx.
			Preload("Players", func(conn *gorm.DB) *gorm.DB {
				return conn.Order("players.id ASC")
			}).
			Preload("Players.Cards")
		if postgres {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var session db.Session
		if err := query.First(&session, sessionID).Error; err != nil {
			return err
		}
		return fn(tx, &session)
	})
	return translateStoreError(err)
}

func (s *Service) publish(sessionID uint, event string, payload map[string]any) {
	s.notifier.Publish(sessionID, event, payload)
}

func nonHostPlayers(session *db.Session) []db.Player {
	players := make([]db.Player, 0, len(session.Players))
	for _, p := range session.Players {
		if !p.IsHost {
			players = append(players, p)
		}
	}
	return players
}

func hostPlayer(session *db.Session) *db.Player {
	for i := range session.Players {
		if session.Players[i].IsHost {
			return &session.Players[i]
		}
	}
	return nil
}

func playerByID(session *db.Session, playerID uint) *db.Player {
	for i := range session.Players {
		if session.Players[i].ID == playerID {
			return &session.Players[i]
		}
	}
	return nil
}

func playerByUser(session *db.Session, userID string) *db.Player {
	for i := range session.Players {
		if session.Players[i].UserID == userID {
			return &session.Players[i]
		}
	}
	return nil
}

func cardTokens(player *db.Player) []string {
	tokens := make([]string, 0, len(player.Cards))
	for _, card := range player.Cards {
		tokens = append(tokens, card.Token)
	}
	return tokens
}
