package game

import (
	"context"
	"testing"

	"twentyone/internal/db"
)

// finishedSession plays a session to completion by standing every seat.
func finishedSession(t *testing.T, svc *Service) (uint, uint, []uint) {
	t.Helper()
	sessionID, hostID, playerIDs := newPlayingSession(t, svc, 3)
	for i := range playerIDs {
		if _, err := svc.Stand(context.Background(), sessionID, testUser(i+1)); err != nil {
			t.Fatalf("stand %d failed: %v", i, err)
		}
	}
	return sessionID, hostID, playerIDs
}

func TestProposeRematchValidations(t *testing.T) {
	svc, _ := newTestService(t)
	sessionID, hostID, playerIDs := newPlayingSession(t, svc, 3)

	// The round is still running.
	_, err := svc.ProposeRematch(context.Background(), sessionID, hostID)
	wantKind(t, err, KindInvalidState)

	for i := range playerIDs {
		if _, err := svc.Stand(context.Background(), sessionID, testUser(i+1)); err != nil {
			t.Fatalf("stand %d failed: %v", i, err)
		}
	}

	// Only the host may open the vote.
	_, err = svc.ProposeRematch(context.Background(), sessionID, playerIDs[0])
	wantKind(t, err, KindPermission)

	proposal, err := svc.ProposeRematch(context.Background(), sessionID, hostID)
	if err != nil {
		t.Fatalf("ProposeRematch failed: %v", err)
	}
	if len(proposal.PendingPlayerIDs) != len(playerIDs) {
		t.Fatalf("expected %d pending votes, got %v", len(playerIDs), proposal.PendingPlayerIDs)
	}

	// A second vote while one is open.
	_, err = svc.ProposeRematch(context.Background(), sessionID, hostID)
	wantKind(t, err, KindDuplicate)
}

func TestRespondToRematchTracksRemaining(t *testing.T) {
	svc, _ := newTestService(t)
	sessionID, hostID, playerIDs := finishedSession(t, svc)
	if _, err := svc.ProposeRematch(context.Background(), sessionID, hostID); err != nil {
		t.Fatalf("ProposeRematch failed: %v", err)
	}

	result, err := svc.RespondToRematch(context.Background(), sessionID, playerIDs[0], true)
	if err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	if result.Outcome != RematchPending || result.Remaining != 2 {
		t.Fatalf("expected pending with 2 remaining, got %+v", result)
	}

	// Double-voting is rejected.
	_, err = svc.RespondToRematch(context.Background(), sessionID, playerIDs[0], true)
	wantKind(t, err, KindDuplicate)

	// Seats outside the vote have no slot.
	_, err = svc.RespondToRematch(context.Background(), sessionID, 9999, true)
	wantKind(t, err, KindNotFound)
}

func TestUnanimousAcceptanceRestartsSession(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, hostID, playerIDs := finishedSession(t, svc)
	if _, err := svc.ProposeRematch(context.Background(), sessionID, hostID); err != nil {
		t.Fatalf("ProposeRematch failed: %v", err)
	}

	var last *RematchVoteResult
	for _, playerID := range playerIDs {
		result, err := svc.RespondToRematch(context.Background(), sessionID, playerID, true)
		if err != nil {
			t.Fatalf("accept for %d failed: %v", playerID, err)
		}
		last = result
	}
	if last.Outcome != RematchRestarted || last.RematchRound != 2 {
		t.Fatalf("expected restart at round 2, got %+v", last)
	}

	session := loadSession(t, conn, sessionID)
	if session.Status != db.StatusWaiting {
		t.Fatalf("restarted session should be waiting, got %s", session.Status)
	}
	if session.RematchProposed || len(session.RematchResponses) != 0 {
		t.Fatalf("vote state should be cleared, got proposed=%v responses=%s",
			session.RematchProposed, session.RematchResponses)
	}
	if session.WinnerID != nil || session.CurrentTurnPlayerID != nil {
		t.Fatalf("round state should be cleared, got winner=%v turn=%v",
			session.WinnerID, session.CurrentTurnPlayerID)
	}
	if session.RematchRound != 2 {
		t.Fatalf("expected rematch round 2, got %d", session.RematchRound)
	}
	for _, p := range session.Players {
		if p.TotalPoints != 0 || p.IsStand || p.HasCardRequest || len(p.Cards) != 0 {
			t.Fatalf("seat %d not reset: %+v", p.ID, p)
		}
	}
}

func TestRestartDropsDepartedSeats(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, hostID, playerIDs := newPlayingSession(t, svc, 3)

	// Seat 1 walks away mid-round, then the rest finish.
	if _, err := svc.LeaveSession(context.Background(), sessionID, testUser(1)); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	for i := 1; i < len(playerIDs); i++ {
		if _, err := svc.Stand(context.Background(), sessionID, testUser(i+1)); err != nil {
			t.Fatalf("stand %d failed: %v", i, err)
		}
	}

	proposal, err := svc.ProposeRematch(context.Background(), sessionID, hostID)
	if err != nil {
		t.Fatalf("ProposeRematch failed: %v", err)
	}
	if len(proposal.PendingPlayerIDs) != 2 {
		t.Fatalf("departed seat should have no vote, got %v", proposal.PendingPlayerIDs)
	}
	for _, playerID := range proposal.PendingPlayerIDs {
		if _, err := svc.RespondToRematch(context.Background(), sessionID, playerID, true); err != nil {
			t.Fatalf("accept for %d failed: %v", playerID, err)
		}
	}

	session := loadSession(t, conn, sessionID)
	if len(session.Players) != 3 { // host plus the two seats that stayed
		t.Fatalf("expected 3 seats after restart, got %d", len(session.Players))
	}
	for _, p := range session.Players {
		if p.ID == playerIDs[0] {
			t.Fatalf("departed seat %d should be gone", playerIDs[0])
		}
	}
}

func TestRejectionCancelsVoteForEveryone(t *testing.T) {
	svc, conn := newTestService(t)
	sessionID, hostID, playerIDs := finishedSession(t, svc)
	if _, err := svc.ProposeRematch(context.Background(), sessionID, hostID); err != nil {
		t.Fatalf("ProposeRematch failed: %v", err)
	}

	// A prior acceptance does not save the session from a later rejection.
	if _, err := svc.RespondToRematch(context.Background(), sessionID, playerIDs[0], true); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	result, err := svc.RespondToRematch(context.Background(), sessionID, playerIDs[1], false)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if result.Outcome != RematchCancelled {
		t.Fatalf("expected cancellation, got %+v", result)
	}

	session := loadSession(t, conn, sessionID)
	if session.Status != db.StatusLobbyRedirect {
		t.Fatalf("expected lobby_redirect, got %s", session.Status)
	}
	if session.RematchProposed || len(session.RematchResponses) != 0 {
		t.Fatalf("vote state should be cleared after cancellation")
	}

	// The dead-end is permanent: no further votes and no new proposal.
	_, err = svc.RespondToRematch(context.Background(), sessionID, playerIDs[2], true)
	wantKind(t, err, KindInvalidState)
	_, err = svc.ProposeRematch(context.Background(), sessionID, hostID)
	wantKind(t, err, KindInvalidState)
}

func TestRespondWithoutOpenVote(t *testing.T) {
	svc, _ := newTestService(t)
	sessionID, _, playerIDs := finishedSession(t, svc)
	_, err := svc.RespondToRematch(context.Background(), sessionID, playerIDs[0], true)
	wantKind(t, err, KindInvalidState)
}
