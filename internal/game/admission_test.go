package game

import (
	"context"
	"sync"
	"testing"

	"twentyone/internal/db"
)

func TestCreateSessionValidatesCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	for _, capacity := range []int{0, 2, 7} {
		_, err := svc.CreateSession(context.Background(), testUser(0), capacity, "Host")
		wantKind(t, err, KindValidation)
	}
	created, err := svc.CreateSession(context.Background(), testUser(0), 3, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Status != db.StatusWaiting {
		t.Fatalf("expected waiting, got %s", created.Status)
	}
}

func TestCreateSessionSeatsSingleHost(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, _, _ := newFullSession(t, svc, 3)
	session := loadSession(t, conn, sessionID)
	hosts := 0
	for _, p := range session.Players {
		if p.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		t.Fatalf("expected exactly one host, got %d", hosts)
	}
}

func TestJoinFillsAndAutoStarts(t *testing.T) {
	svc, conn := newTestService(t)
	created, err := svc.CreateSession(context.Background(), testUser(0), 3, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	for i := 1; i <= 2; i++ {
		joined, err := svc.JoinSession(context.Background(), created.SessionID, testUser(i))
		if err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
		if joined.AutoStarting {
			t.Fatalf("join %d should not trigger the start", i)
		}
	}
	joined, err := svc.JoinSession(context.Background(), created.SessionID, testUser(3))
	if err != nil {
		t.Fatalf("final join failed: %v", err)
	}
	if !joined.AutoStarting || joined.Status != db.StatusStarting {
		t.Fatalf("final join should flip to starting, got %+v", joined)
	}

	if err := svc.CompleteStart(context.Background(), created.SessionID); err != nil {
		t.Fatalf("CompleteStart failed: %v", err)
	}
	session := loadSession(t, conn, created.SessionID)
	if session.Status != db.StatusPlaying {
		t.Fatalf("expected playing, got %s", session.Status)
	}
	var lowest uint
	for _, p := range session.Players {
		if p.IsHost {
			if len(p.Cards) != 0 {
				t.Fatalf("host should hold no cards")
			}
			continue
		}
		if len(p.Cards) != 1 {
			t.Fatalf("player %d should hold exactly one card, has %d", p.ID, len(p.Cards))
		}
		if lowest == 0 || p.ID < lowest {
			lowest = p.ID
		}
	}
	if session.CurrentTurnPlayerID == nil || *session.CurrentTurnPlayerID != lowest {
		t.Fatalf("expected first turn for seat %d, got %v", lowest, session.CurrentTurnPlayerID)
	}
}

func TestCompleteStartIsIdempotent(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, _, _ := newPlayingSession(t, svc, 3)
	if err := svc.CompleteStart(context.Background(), sessionID); err != nil {
		t.Fatalf("second CompleteStart failed: %v", err)
	}
	session := loadSession(t, conn, sessionID)
	for _, p := range session.Players {
		if !p.IsHost && len(p.Cards) != 1 {
			t.Fatalf("duplicate invocation re-dealt seat %d: %d cards", p.ID, len(p.Cards))
		}
	}
}

func TestCompleteStartRevertsWhenSeatsRegress(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, _, playerIDs := newFullSession(t, svc, 3)
	if err := conn.Delete(&db.Player{}, playerIDs[2]).Error; err != nil {
		t.Fatalf("failed to remove seat: %v", err)
	}
	if err := svc.CompleteStart(context.Background(), sessionID); err != nil {
		t.Fatalf("CompleteStart failed: %v", err)
	}
	session := loadSession(t, conn, sessionID)
	if session.Status != db.StatusWaiting {
		t.Fatalf("expected revert to waiting, got %s", session.Status)
	}
}

func TestJoinRejectsDuplicateAndStarted(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.CreateSession(context.Background(), testUser(0), 3, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := svc.JoinSession(context.Background(), created.SessionID, testUser(1)); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	_, err = svc.JoinSession(context.Background(), created.SessionID, testUser(1))
	wantKind(t, err, KindDuplicate)

	// The host already holds a seat too.
	_, err = svc.JoinSession(context.Background(), created.SessionID, testUser(0))
	wantKind(t, err, KindDuplicate)

	sessionID, _, _ := newPlayingSession(t, svc, 3)
	_, err = svc.JoinSession(context.Background(), sessionID, testUser(9))
	wantKind(t, err, KindInvalidState)
}

func TestJoinRejectsFullWaitingSession(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, _, _ := newFullSession(t, svc, 3)
	// Simulate the deferred-start revert leaving a full session in waiting.
	if err := conn.Model(&db.Session{}).Where("id = ?", sessionID).
		Update("status", db.StatusWaiting).Error; err != nil {
		t.Fatalf("failed to reset status: %v", err)
	}
	_, err := svc.JoinSession(context.Background(), sessionID, testUser(9))
	wantKind(t, err, KindCapacity)
}

func TestConcurrentJoinsNeverOvershootCapacity(t *testing.T) {
	svc, conn := newTestService(t)
	created, err := svc.CreateSession(context.Background(), testUser(0), 3, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	const joiners = 10
	var wg sync.WaitGroup
	errs := make([]error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.JoinSession(context.Background(), created.SessionID, testUser(i+1))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		switch KindOf(err) {
		case KindCapacity, KindInvalidState:
		default:
			t.Fatalf("unexpected join failure: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful joins, got %d", succeeded)
	}
	session := loadSession(t, conn, created.SessionID)
	if n := len(nonHostPlayers(session)); n != 3 {
		t.Fatalf("expected 3 seated players, got %d", n)
	}
}

func TestStartSessionManually(t *testing.T) {
	svc, conn := newTestService(t)
	created, err := svc.CreateSession(context.Background(), testUser(0), 6, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	var firstPlayerID uint
	for i := 1; i <= 3; i++ {
		joined, err := svc.JoinSession(context.Background(), created.SessionID, testUser(i))
		if err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
		if i == 1 {
			firstPlayerID = joined.PlayerID
		}
	}

	_, err = svc.StartSession(context.Background(), created.SessionID, firstPlayerID)
	wantKind(t, err, KindPermission)

	result, err := svc.StartSession(context.Background(), created.SessionID, created.HostID)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if result.Status != db.StatusPlaying || result.CurrentTurnPlayerID != firstPlayerID {
		t.Fatalf("unexpected start result %+v", result)
	}
	session := loadSession(t, conn, created.SessionID)
	for _, p := range session.Players {
		if !p.IsHost && len(p.Cards) != 1 {
			t.Fatalf("seat %d should hold one card", p.ID)
		}
	}

	_, err = svc.StartSession(context.Background(), created.SessionID, created.HostID)
	wantKind(t, err, KindInvalidState)
}

func TestStartSessionNeedsMinimumPlayers(t *testing.T) {
	svc, _ := newTestService(t)
	created, err := svc.CreateSession(context.Background(), testUser(0), 5, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	for i := 1; i <= 2; i++ {
		if _, err := svc.JoinSession(context.Background(), created.SessionID, testUser(i)); err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}
	_, err = svc.StartSession(context.Background(), created.SessionID, created.HostID)
	wantKind(t, err, KindValidation)
}

func TestLeaveWaitingSession(t *testing.T) {
	svc, conn := newTestService(t)
	created, err := svc.CreateSession(context.Background(), testUser(0), 4, "Host")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := svc.JoinSession(context.Background(), created.SessionID, testUser(1)); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	result, err := svc.LeaveSession(context.Background(), created.SessionID, testUser(1))
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if result.SessionClosed {
		t.Fatalf("session should stay open with the host seated")
	}

	result, err = svc.LeaveSession(context.Background(), created.SessionID, testUser(0))
	if err != nil {
		t.Fatalf("host leave failed: %v", err)
	}
	if !result.SessionClosed {
		t.Fatalf("host departure should close a waiting session")
	}
	session := loadSession(t, conn, created.SessionID)
	if session.Status != db.StatusFinished {
		t.Fatalf("expected finished, got %s", session.Status)
	}
}

func TestLeaveDuringPlayRetainsSeat(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, _, playerIDs := newPlayingSession(t, svc, 3)

	result, err := svc.LeaveSession(context.Background(), sessionID, testUser(1))
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if result.Finished {
		t.Fatalf("two seats still active, session should continue")
	}
	session := loadSession(t, conn, sessionID)
	seat := playerByID(session, playerIDs[0])
	if seat == nil || !seat.HasLeft || !seat.IsStand {
		t.Fatalf("departed seat should be retained with terminal flags, got %+v", seat)
	}
	if session.CurrentTurnPlayerID == nil || *session.CurrentTurnPlayerID != playerIDs[1] {
		t.Fatalf("turn should advance past the departed seat, got %v", session.CurrentTurnPlayerID)
	}
}

func TestLeaveFinishedSessionRejected(t *testing.T) {
	svc, _ := newTestService(t)
	sessionID, _, _ := newPlayingSession(t, svc, 3)
	if _, err := svc.FinishSession(context.Background(), sessionID); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	_, err := svc.LeaveSession(context.Background(), sessionID, testUser(1))
	wantKind(t, err, KindInvalidState)
}
