package game

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"twentyone/internal/db"
)

// eligiblePlayers returns the seats that can still take a turn, in seat-id
// order: non-host, not stood, not departed, not bust.
func eligiblePlayers(session *db.Session) []db.Player {
	players := make([]db.Player, 0, len(session.Players))
	for _, p := range session.Players {
		if p.IsHost || p.IsStand || p.HasLeft || p.TotalPoints > blackjackLimit {
			continue
		}
		players = append(players, p)
	}
	return players
}

// nextEligibleAfter picks the eligible seat immediately following currentID,
// wrapping to the first. The list is recomputed on every advancement, so
// stood, busted and departed seats drop out transparently.
func nextEligibleAfter(players []db.Player, currentID uint) *db.Player {
	for i := range players {
		if players[i].ID > currentID {
			return &players[i]
		}
	}
	if len(players) > 0 {
		return &players[0]
	}
	return nil
}

// allPlayersDone reports whether no non-host seat can act anymore.
func allPlayersDone(session *db.Session) bool {
	for _, p := range session.Players {
		if p.IsHost {
			continue
		}
		if !p.IsStand && p.TotalPoints <= blackjackLimit {
			return false
		}
	}
	return true
}

// RequestCard flags a pending draw request for the host to act on. The
// request is only accepted on the caller's own turn.
func (s *Service) RequestCard(ctx context.Context, sessionID uint, user User) (*CardRequest, error) {
	var request CardRequest
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		if session.Status != db.StatusPlaying {
			return newError(KindInvalidState, "session %d is not in progress", session.ID)
		}
		seat := playerByUser(session, user.ID)
		if seat == nil {
			return newError(KindNotFound, "user is not seated in session %d", session.ID)
		}
		if session.CurrentTurnPlayerID == nil || *session.CurrentTurnPlayerID != seat.ID {
			return newError(KindInvalidState, "not your turn")
		}
		if seat.IsStand {
			return newError(KindInvalidState, "player already stood")
		}
		request = CardRequest{PlayerID: seat.ID, Name: seat.Name}
		return tx.Model(&db.Player{}).Where("id = ?", seat.ID).
			Update("has_card_request", true).Error
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, EventCardRequested, map[string]any{
		"session_id": sessionID,
		"player_id":  request.PlayerID,
	})
	return &request, nil
}

// DealCard is the host-mediated draw for the current-turn player. A draw
// reaching exactly 21 ends the session immediately with that player as the
// sole winner; a draw past 21 forces a stand. Any pending request flag is
// cleared.
func (s *Service) DealCard(ctx context.Context, sessionID uint, hostUser User, targetPlayerID uint) (*DealResult, error) {
	var result DealResult
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		host := playerByUser(session, hostUser.ID)
		if host == nil || !host.IsHost {
			return newError(KindPermission, "only the host can deal cards")
		}
		if session.Status != db.StatusPlaying {
			return newError(KindInvalidState, "session %d is not in progress", session.ID)
		}
		target := playerByID(session, targetPlayerID)
		if target == nil {
			return newError(KindNotFound, "player %d is not seated in session %d", targetPlayerID, session.ID)
		}
		if target.IsHost {
			return newError(KindValidation, "the host does not play a hand")
		}
		if session.CurrentTurnPlayerID == nil || *session.CurrentTurnPlayerID != target.ID {
			return newError(KindInvalidState, "it is not player %d's turn", target.ID)
		}
		if target.IsStand {
			return newError(KindInvalidState, "player %d already stood", target.ID)
		}

		token, err := drawCard(tx, session)
		if err != nil {
			return err
		}
		card := db.Card{PlayerID: target.ID, Token: token}
		if err := tx.Create(&card).Error; err != nil {
			return err
		}
		target.Cards = append(target.Cards, card)
		score := ScoreHand(cardTokens(target))
		target.TotalPoints = score.Total
		target.HasCardRequest = false
		target.IsStand = score.IsBust || score.IsExact
		if err := tx.Model(&db.Player{}).Where("id = ?", target.ID).Updates(map[string]any{
			"total_points":     target.TotalPoints,
			"is_stand":         target.IsStand,
			"has_card_request": false,
		}).Error; err != nil {
			return err
		}

		result = DealResult{
			Token:       token,
			TotalPoints: score.Total,
			IsStand:     target.IsStand,
		}
		if score.IsExact {
			// Instant win: skips the all-stood check and normal advancement.
			outcome, err := s.terminate(tx, session, &target.ID)
			if err != nil {
				return err
			}
			result.Finished = true
			result.Outcome = outcome
			return nil
		}
		finished, outcome, err := s.settleAfterTurn(tx, session, target.ID)
		if err != nil {
			return err
		}
		result.Finished = finished
		result.Outcome = outcome
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"player_id":  targetPlayerID,
		"card":       result.Token,
		"total":      result.TotalPoints,
	}).Info("card dealt")
	s.publish(sessionID, EventCardDealt, map[string]any{
		"session_id":   sessionID,
		"player_id":    targetPlayerID,
		"total_points": result.TotalPoints,
		"is_stand":     result.IsStand,
	})
	if result.Finished {
		s.publish(sessionID, EventSessionFinished, map[string]any{
			"session_id": sessionID,
			"outcome":    result.Outcome,
		})
	}
	return &result, nil
}

// Stand marks the caller's own seat as stood on their turn.
func (s *Service) Stand(ctx context.Context, sessionID uint, user User) (*StandResult, error) {
	return s.stand(ctx, sessionID, func(session *db.Session) (*db.Player, error) {
		seat := playerByUser(session, user.ID)
		if seat == nil {
			return nil, newError(KindNotFound, "user is not seated in session %d", session.ID)
		}
		return seat, nil
	})
}

// StandPlayer is the host-mediated stand for the current-turn player.
func (s *Service) StandPlayer(ctx context.Context, sessionID uint, hostUser User, targetPlayerID uint) (*StandResult, error) {
	return s.stand(ctx, sessionID, func(session *db.Session) (*db.Player, error) {
		host := playerByUser(session, hostUser.ID)
		if host == nil || !host.IsHost {
			return nil, newError(KindPermission, "only the host can stand another player")
		}
		target := playerByID(session, targetPlayerID)
		if target == nil {
			return nil, newError(KindNotFound, "player %d is not seated in session %d", targetPlayerID, session.ID)
		}
		return target, nil
	})
}

func (s *Service) stand(ctx context.Context, sessionID uint, pick func(*db.Session) (*db.Player, error)) (*StandResult, error) {
	var result StandResult
	var seatID uint
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		if session.Status != db.StatusPlaying {
			return newError(KindInvalidState, "session %d is not in progress", session.ID)
		}
		seat, err := pick(session)
		if err != nil {
			return err
		}
		if session.CurrentTurnPlayerID == nil || *session.CurrentTurnPlayerID != seat.ID {
			return newError(KindInvalidState, "it is not player %d's turn", seat.ID)
		}
		if seat.IsStand {
			return newError(KindInvalidState, "player %d already stood", seat.ID)
		}
		seat.IsStand = true
		seat.HasCardRequest = false
		seatID = seat.ID
		if err := tx.Model(&db.Player{}).Where("id = ?", seat.ID).Updates(map[string]any{
			"is_stand":         true,
			"has_card_request": false,
		}).Error; err != nil {
			return err
		}
		finished, outcome, err := s.settleAfterTurn(tx, session, seat.ID)
		if err != nil {
			return err
		}
		result.Finished = finished
		result.Outcome = outcome
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, EventPlayerStood, map[string]any{
		"session_id": sessionID,
		"player_id":  seatID,
	})
	if result.Finished {
		s.publish(sessionID, EventSessionFinished, map[string]any{
			"session_id": sessionID,
			"outcome":    result.Outcome,
		})
	}
	return &result, nil
}

// settleAfterTurn runs the shared post-action check: terminate when no
// active seat remains, otherwise hand the turn to the next eligible seat.
func (s *Service) settleAfterTurn(tx *gorm.DB, session *db.Session, actedPlayerID uint) (bool, *Outcome, error) {
	if allPlayersDone(session) {
		outcome, err := s.terminate(tx, session, nil)
		if err != nil {
			return false, nil, err
		}
		return true, outcome, nil
	}
	next := nextEligibleAfter(eligiblePlayers(session), actedPlayerID)
	if next == nil {
		outcome, err := s.terminate(tx, session, nil)
		if err != nil {
			return false, nil, err
		}
		return true, outcome, nil
	}
	session.CurrentTurnPlayerID = &next.ID
	if err := tx.Model(&db.Session{}).Where("id = ?", session.ID).
		Update("current_turn_player_id", next.ID).Error; err != nil {
		return false, nil, err
	}
	return false, nil, nil
}

// terminate moves the session to finished and resolves the winner. With
// instantWinner set the caller already decided the outcome (an exact 21);
// otherwise the single highest-scoring non-bust seat wins, an exact tie
// records no winner while still reporting every co-winner, and no valid seat
// at all ends the session as a draw.
func (s *Service) terminate(tx *gorm.DB, session *db.Session, instantWinner *uint) (*Outcome, error) {
	results := make([]PlayerResult, 0, len(session.Players))
	for i := range session.Players {
		p := &session.Players[i]
		if p.IsHost {
			continue
		}
		isBust := p.TotalPoints > blackjackLimit
		finalScore := p.TotalPoints
		if isBust {
			finalScore = 0
		}
		results = append(results, PlayerResult{
			PlayerID:    p.ID,
			Name:        p.Name,
			TotalPoints: p.TotalPoints,
			FinalScore:  finalScore,
			IsBust:      isBust,
			IsHost:      false,
			Cards:       cardTokens(p),
		})
	}

	outcome := &Outcome{Results: results}
	if instantWinner != nil {
		for _, r := range results {
			if r.PlayerID == *instantWinner {
				outcome.Winners = []PlayerResult{r}
			}
		}
		outcome.WinnerID = instantWinner
	} else {
		best := 0
		for _, r := range results {
			if !r.IsBust && r.FinalScore > best {
				best = r.FinalScore
			}
		}
		if best == 0 {
			outcome.Draw = true
		} else {
			for _, r := range results {
				if !r.IsBust && r.FinalScore == best {
					outcome.Winners = append(outcome.Winners, r)
				}
			}
			if len(outcome.Winners) == 1 {
				outcome.WinnerID = &outcome.Winners[0].PlayerID
			}
		}
	}

	updates := map[string]any{
		"status":                 db.StatusFinished,
		"current_turn_player_id": nil,
		"winner_id":              nil,
	}
	if outcome.WinnerID != nil {
		updates["winner_id"] = *outcome.WinnerID
	}
	if err := tx.Model(&db.Session{}).Where("id = ?", session.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	session.Status = db.StatusFinished
	session.CurrentTurnPlayerID = nil
	session.WinnerID = outcome.WinnerID
	return outcome, nil
}

// FinishSession force-terminates a playing session.
func (s *Service) FinishSession(ctx context.Context, sessionID uint) (*Outcome, error) {
	return s.finish(ctx, sessionID)
}

// RevealAndFinish terminates a playing session and returns the full per-seat
// reveal, cards included.
func (s *Service) RevealAndFinish(ctx context.Context, sessionID uint) (*Outcome, error) {
	return s.finish(ctx, sessionID)
}

func (s *Service) finish(ctx context.Context, sessionID uint) (*Outcome, error) {
	var outcome *Outcome
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		if session.Status != db.StatusPlaying {
			return newError(KindInvalidState, "session %d is not in progress", session.ID)
		}
		var err error
		outcome, err = s.terminate(tx, session, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, EventSessionFinished, map[string]any{
		"session_id": sessionID,
		"outcome":    outcome,
	})
	return outcome, nil
}
