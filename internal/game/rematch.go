package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"twentyone/internal/db"
)

func marshalResponses(responses []rematchResponse) datatypes.JSON {
	data, _ := json.Marshal(responses)
	return datatypes.JSON(data)
}

func unmarshalResponses(raw datatypes.JSON) ([]rematchResponse, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var responses []rematchResponse
	if err := json.Unmarshal(raw, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// RematchProposal reports an opened vote and who still has to answer.
type RematchProposal struct {
	SessionID        uint   `json:"session_id"`
	PendingPlayerIDs []uint `json:"pending_player_ids"`
}

// ProposeRematch opens a unanimous-consent vote on a finished session, one
// pending slot per non-host seat still present. Only one vote can ever be
// open at a time.
func (s *Service) ProposeRematch(ctx context.Context, sessionID uint, requesterPlayerID uint) (*RematchProposal, error) {
	var proposal RematchProposal
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		requester := playerByID(session, requesterPlayerID)
		if requester == nil || !requester.IsHost {
			return newError(KindPermission, "only the host can propose a rematch")
		}
		if session.Status != db.StatusFinished {
			return newError(KindInvalidState, "rematch requires a finished session, session %d is %s", session.ID, session.Status)
		}
		if session.RematchProposed {
			return newError(KindDuplicate, "a rematch vote is already open on session %d", session.ID)
		}
		responses := make([]rematchResponse, 0, len(session.Players))
		for _, p := range session.Players {
			if p.IsHost || p.HasLeft {
				continue
			}
			responses = append(responses, rematchResponse{PlayerID: p.ID})
			proposal.PendingPlayerIDs = append(proposal.PendingPlayerIDs, p.ID)
		}
		proposal.SessionID = session.ID
		return tx.Model(&db.Session{}).Where("id = ?", session.ID).Updates(map[string]any{
			"rematch_proposed":  true,
			"rematch_responses": marshalResponses(responses),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, EventRematchProposed, map[string]any{
		"session_id":         sessionID,
		"pending_player_ids": proposal.PendingPlayerIDs,
	})
	return &proposal, nil
}

// RespondToRematch records one seat's answer. A single rejection cancels the
// vote for everyone and dead-ends the session in lobby_redirect; unanimous
// acceptance restarts the same session in place for another round.
func (s *Service) RespondToRematch(ctx context.Context, sessionID uint, playerID uint, accepted bool) (*RematchVoteResult, error) {
	var result RematchVoteResult
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		if session.Status == db.StatusLobbyRedirect {
			return newError(KindInvalidState, "session %d was cancelled, create a new session", session.ID)
		}
		if !session.RematchProposed || session.Status != db.StatusFinished {
			return newError(KindInvalidState, "no rematch vote is open on session %d", session.ID)
		}
		responses, err := unmarshalResponses(session.RematchResponses)
		if err != nil {
			return err
		}
		slot := -1
		for i := range responses {
			if responses[i].PlayerID == playerID {
				slot = i
				break
			}
		}
		if slot < 0 {
			return newError(KindNotFound, "player %d has no vote in session %d", playerID, session.ID)
		}
		if responses[slot].Accepted != nil {
			return newError(KindDuplicate, "player %d already answered", playerID)
		}
		now := time.Now().UTC()
		responses[slot].Accepted = &accepted
		responses[slot].RespondedAt = &now

		if !accepted {
			// One rejection forecloses this session permanently.
			result = RematchVoteResult{Outcome: RematchCancelled}
			return tx.Model(&db.Session{}).Where("id = ?", session.ID).Updates(map[string]any{
				"status":            db.StatusLobbyRedirect,
				"rematch_proposed":  false,
				"rematch_responses": nil,
			}).Error
		}

		remaining := 0
		for _, r := range responses {
			if r.Accepted == nil {
				remaining++
			}
		}
		if remaining > 0 {
			result = RematchVoteResult{Outcome: RematchPending, Remaining: remaining}
			return tx.Model(&db.Session{}).Where("id = ?", session.ID).
				Update("rematch_responses", marshalResponses(responses)).Error
		}

		round, err := s.restartSession(tx, session)
		if err != nil {
			return err
		}
		result = RematchVoteResult{Outcome: RematchRestarted, RematchRound: round}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, EventRematchResponse, map[string]any{
		"session_id": sessionID,
		"player_id":  playerID,
		"accepted":   accepted,
	})
	switch result.Outcome {
	case RematchCancelled:
		s.log.WithFields(logrus.Fields{
			"session_id":  sessionID,
			"rejected_by": playerID,
		}).Info("rematch cancelled")
		s.publish(sessionID, EventRematchCancelled, map[string]any{
			"session_id":  sessionID,
			"rejected_by": playerID,
		})
	case RematchRestarted:
		s.log.WithFields(logrus.Fields{
			"session_id":    sessionID,
			"rematch_round": result.RematchRound,
		}).Info("rematch restarted")
		s.publish(sessionID, EventRematchRestarted, map[string]any{
			"session_id":    sessionID,
			"rematch_round": result.RematchRound,
		})
	}
	return &result, nil
}

// restartSession resets the same session in place for another round: fresh
// deck, cards wiped, per-seat counters cleared, departed seats dropped,
// rematch round incremented. Session identity and the remaining roster
// survive.
func (s *Service) restartSession(tx *gorm.DB, session *db.Session) (int, error) {
	seatIDs := make([]uint, 0, len(session.Players))
	for _, p := range session.Players {
		seatIDs = append(seatIDs, p.ID)
	}
	if len(seatIDs) > 0 {
		if err := tx.Where("player_id IN ?", seatIDs).Delete(&db.Card{}).Error; err != nil {
			return 0, err
		}
	}
	if err := tx.Where("session_id = ? AND has_left = ?", session.ID, true).
		Delete(&db.Player{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&db.Player{}).Where("session_id = ?", session.ID).Updates(map[string]any{
		"total_points":     0,
		"is_stand":         false,
		"has_card_request": false,
	}).Error; err != nil {
		return 0, err
	}
	round := session.RematchRound + 1
	err := tx.Model(&db.Session{}).Where("id = ?", session.ID).Updates(map[string]any{
		"status":                 db.StatusWaiting,
		"deck":                   marshalDeck(NewDeck()),
		"current_turn_player_id": nil,
		"winner_id":              nil,
		"rematch_proposed":       false,
		"rematch_responses":      nil,
		"rematch_round":          round,
	}).Error
	if err != nil {
		return 0, err
	}
	return round, nil
}
