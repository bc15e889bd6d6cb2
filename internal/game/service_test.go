package game

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"twentyone/internal/config"
	"twentyone/internal/db"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// One connection so every pool handle sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.Default()
	// Keep the deferred-start timer from firing mid-test; tests invoke
	// CompleteStart explicitly.
	cfg.StartDelayMS = 3_600_000
	svc := NewService(conn, cfg, log, nil)
	t.Cleanup(svc.StopTimers)
	return svc, conn
}

func testUser(n int) User {
	return User{ID: fmt.Sprintf("user-%d", n), Name: fmt.Sprintf("Player %d", n)}
}

// newPlayingSession creates a capacity-sized session, fills it, and runs the
// deferred start. Returns the session id, the host seat id and the non-host
// seat ids in turn order.
func newPlayingSession(t *testing.T, svc *Service, capacity int) (uint, uint, []uint) {
	t.Helper()
	sessionID, hostID, playerIDs := newFullSession(t, svc, capacity)
	if err := svc.CompleteStart(context.Background(), sessionID); err != nil {
		t.Fatalf("CompleteStart failed: %v", err)
	}
	return sessionID, hostID, playerIDs
}

func newFullSession(t *testing.T, svc *Service, capacity int) (uint, uint, []uint) {
	t.Helper()
	created, err := svc.CreateSession(context.Background(), testUser(0), capacity, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	playerIDs := make([]uint, 0, capacity)
	for i := 1; i <= capacity; i++ {
		joined, err := svc.JoinSession(context.Background(), created.SessionID, testUser(i))
		if err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
		playerIDs = append(playerIDs, joined.PlayerID)
	}
	return created.SessionID, created.HostID, playerIDs
}

func loadSession(t *testing.T, conn *gorm.DB, sessionID uint) *db.Session {
	t.Helper()
	var session db.Session
	err := conn.
		Preload("Players", func(conn *gorm.DB) *gorm.DB {
			return conn.Order("players.id ASC")
		}).
		Preload("Players.Cards").
		First(&session, sessionID).Error
	if err != nil {
		t.Fatalf("failed to load session %d: %v", sessionID, err)
	}
	return &session
}

func setDeck(t *testing.T, conn *gorm.DB, sessionID uint, tokens []string) {
	t.Helper()
	if err := conn.Model(&db.Session{}).Where("id = ?", sessionID).
		Update("deck", marshalDeck(tokens)).Error; err != nil {
		t.Fatalf("failed to set deck: %v", err)
	}
}

func setPoints(t *testing.T, conn *gorm.DB, playerID uint, points int) {
	t.Helper()
	if err := conn.Model(&db.Player{}).Where("id = ?", playerID).
		Update("total_points", points).Error; err != nil {
		t.Fatalf("failed to set points: %v", err)
	}
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected %v error, got %v (%v)", kind, KindOf(err), err)
	}
}
