package game

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"twentyone/internal/db"
)

const (
	minCapacity      = 3
	maxCapacity      = 6
	minPlayersToDeal = 3
)

// CreateSession persists a new waiting session with a fresh shuffled deck and
// seats the creator as host. The host deals but never plays a hand.
func (s *Service) CreateSession(ctx context.Context, user User, capacity int, hostName string) (*CreateResult, error) {
	if capacity < minCapacity || capacity > maxCapacity {
		return nil, newError(KindValidation, "capacity must be between %d and %d", minCapacity, maxCapacity)
	}
	if hostName == "" {
		hostName = user.Name
	}
	var session db.Session
	var host db.Player
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session = db.Session{
			Status:       db.StatusWaiting,
			HostName:     hostName,
			MaxPlayers:   capacity,
			Deck:         marshalDeck(NewDeck()),
			RematchRound: 1,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		host = db.Player{
			SessionID: session.ID,
			UserID:    user.ID,
			Name:      hostName,
			IsHost:    true,
		}
		return tx.Create(&host).Error
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	s.log.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"host":        hostName,
		"max_players": capacity,
	}).Info("session created")
	s.publish(session.ID, EventSessionCreated, map[string]any{
		"session_id":  session.ID,
		"host_name":   hostName,
		"max_players": capacity,
	})
	return &CreateResult{
		SessionID:  session.ID,
		Status:     session.Status,
		MaxPlayers: capacity,
		HostID:     host.ID,
	}, nil
}

// JoinSession admits a user into a waiting session. The whole check-and-insert
// runs under the session's exclusive row lock; the seat count is re-read
// authoritatively after the insert so two racing joiners can never both land
// in the last seat. The joiner whose insert brings the non-host count to
// exactly the capacity flips the session to starting and schedules the
// deferred deal.
func (s *Service) JoinSession(ctx context.Context, sessionID uint, user User) (*JoinResult, error) {
	var result JoinResult
	autoStarting := false
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		if session.Status != db.StatusWaiting {
			return newError(KindInvalidState, "session %d is not accepting players", session.ID)
		}
		if playerByUser(session, user.ID) != nil {
			return newError(KindDuplicate, "user already seated in session %d", session.ID)
		}
		if len(nonHostPlayers(session)) >= session.MaxPlayers {
			return newError(KindCapacity, "session %d is full (%d players)", session.ID, session.MaxPlayers)
		}
		seat := db.Player{
			SessionID: session.ID,
			UserID:    user.ID,
			Name:      user.Name,
		}
		if err := tx.Create(&seat).Error; err != nil {
			return err
		}
		// Authoritative recount inside the lock scope; the preloaded set was
		// read before the insert.
		var count int64
		if err := tx.Model(&db.Player{}).
			Where("session_id = ? AND is_host = ?", session.ID, false).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) > session.MaxPlayers {
			return newError(KindCapacity, "session %d is full (%d players)", session.ID, session.MaxPlayers)
		}
		if int(count) == session.MaxPlayers {
			if err := tx.Model(&db.Session{}).Where("id = ?", session.ID).
				Update("status", db.StatusStarting).Error; err != nil {
				return err
			}
			session.Status = db.StatusStarting
			autoStarting = true
		}
		result = JoinResult{
			PlayerID:       seat.ID,
			AutoStarting:   autoStarting,
			Status:         session.Status,
			CurrentPlayers: int(count),
			MaxPlayers:     session.MaxPlayers,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, EventPlayerJoined, map[string]any{
		"player_id":       result.PlayerID,
		"player_name":     user.Name,
		"current_players": result.CurrentPlayers,
		"max_players":     result.MaxPlayers,
	})
	if autoStarting {
		s.scheduleStart(sessionID)
	}
	return &result, nil
}

// scheduleStart arms the deferred deal for a session that just flipped to
// starting. Re-arming replaces any pending timer.
func (s *Service) scheduleStart(sessionID uint) {
	delay := time.Duration(s.cfg.StartDelayMS) * time.Millisecond
	s.timersMu.Lock()
	if existing, ok := s.timers[sessionID]; ok {
		existing.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(delay, func() {
		s.timersMu.Lock()
		delete(s.timers, sessionID)
		s.timersMu.Unlock()
		if err := s.CompleteStart(context.Background(), sessionID); err != nil {
			// The joiner already got their response; the session stays
			// manually startable, so this only gets observed, not propagated.
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"error":      err,
			}).Warn("deferred start failed")
		}
	})
	s.timersMu.Unlock()
}

// StopTimers cancels all pending deferred-start timers. Shutdown hook.
func (s *Service) StopTimers() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// CompleteStart is the idempotent reconciliation from starting to playing.
// It re-acquires the session lock, re-validates the preconditions, deals one
// card to every non-host seat that does not hold one yet, assigns the first
// turn and flips to playing. Invoked more than once it becomes a no-op; if
// the seat count regressed it reverts the session to waiting.
func (s *Service) CompleteStart(ctx context.Context, sessionID uint) error {
	started := false
	var turnPlayerID uint
	err := s.withSessionLock(ctx, sessionID, s.cfg.TaskLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		if session.Status != db.StatusStarting {
			return nil
		}
		players := nonHostPlayers(session)
		if len(players) != session.MaxPlayers {
			session.Status = db.StatusWaiting
			return tx.Model(&db.Session{}).Where("id = ?", session.ID).
				Update("status", db.StatusWaiting).Error
		}
		if err := s.dealOpeningCards(tx, session); err != nil {
			return err
		}
		turnPlayerID = players[0].ID
		started = true
		return tx.Model(&db.Session{}).Where("id = ?", session.ID).Updates(map[string]any{
			"status":                 db.StatusPlaying,
			"current_turn_player_id": turnPlayerID,
		}).Error
	})
	if err != nil {
		return err
	}
	if started {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"first_turn": turnPlayerID,
		}).Info("session started")
		s.publish(sessionID, EventSessionStarted, map[string]any{
			"session_id":             sessionID,
			"current_turn_player_id": turnPlayerID,
		})
	}
	return nil
}

// StartSession is the host-triggered start for a session that has at least
// the minimum seats but has not filled up.
func (s *Service) StartSession(ctx context.Context, sessionID uint, requesterPlayerID uint) (*StartResult, error) {
	var result StartResult
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		requester := playerByID(session, requesterPlayerID)
		if requester == nil || !requester.IsHost {
			return newError(KindPermission, "only the host can start session %d", session.ID)
		}
		if session.Status != db.StatusWaiting {
			return newError(KindInvalidState, "session %d already started or ended", session.ID)
		}
		players := nonHostPlayers(session)
		if len(players) < minPlayersToDeal {
			return newError(KindValidation, "need at least %d players to start", minPlayersToDeal)
		}
		if err := s.dealOpeningCards(tx, session); err != nil {
			return err
		}
		result = StartResult{
			Status:              db.StatusPlaying,
			CurrentTurnPlayerID: players[0].ID,
		}
		return tx.Model(&db.Session{}).Where("id = ?", session.ID).Updates(map[string]any{
			"status":                 db.StatusPlaying,
			"current_turn_player_id": players[0].ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"first_turn": result.CurrentTurnPlayerID,
	}).Info("session started manually")
	s.publish(sessionID, EventSessionStarted, map[string]any{
		"session_id":             sessionID,
		"current_turn_player_id": result.CurrentTurnPlayerID,
	})
	return &result, nil
}

// dealOpeningCards gives every non-host seat its opening card. Seats that
// already hold one are skipped, which makes a duplicate invocation of the
// deferred start harmless.
func (s *Service) dealOpeningCards(tx *gorm.DB, session *db.Session) error {
	for i := range session.Players {
		player := &session.Players[i]
		if player.IsHost || len(player.Cards) > 0 {
			continue
		}
		token, err := drawCard(tx, session)
		if err != nil {
			return err
		}
		card := db.Card{PlayerID: player.ID, Token: token}
		if err := tx.Create(&card).Error; err != nil {
			return err
		}
		player.Cards = append(player.Cards, card)
		player.TotalPoints = ScoreHand(cardTokens(player)).Total
		if err := tx.Model(&db.Player{}).Where("id = ?", player.ID).
			Update("total_points", player.TotalPoints).Error; err != nil {
			return err
		}
	}
	return nil
}

// LeaveSession removes a seat from a waiting session, or marks it stood and
// departed during play. A host or last player leaving a waiting session
// finishes it for everyone.
func (s *Service) LeaveSession(ctx context.Context, sessionID uint, user User) (*LeaveResult, error) {
	var result LeaveResult
	var events []func()
	err := s.withSessionLock(ctx, sessionID, s.cfg.JoinLockTimeoutMS, func(tx *gorm.DB, session *db.Session) error {
		seat := playerByUser(session, user.ID)
		if seat == nil {
			return newError(KindNotFound, "user is not seated in session %d", session.ID)
		}
		switch session.Status {
		case db.StatusWaiting, db.StatusStarting:
			if err := tx.Where("player_id = ?", seat.ID).Delete(&db.Card{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&db.Player{}, seat.ID).Error; err != nil {
				return err
			}
			var remaining int64
			if err := tx.Model(&db.Player{}).Where("session_id = ?", session.ID).
				Count(&remaining).Error; err != nil {
				return err
			}
			if seat.IsHost || remaining == 0 {
				if err := tx.Model(&db.Session{}).Where("id = ?", session.ID).
					Update("status", db.StatusFinished).Error; err != nil {
					return err
				}
				result.SessionClosed = true
			}
			return nil
		case db.StatusPlaying:
			seat.IsStand = true
			seat.HasLeft = true
			seat.HasCardRequest = false
			if err := tx.Model(&db.Player{}).Where("id = ?", seat.ID).Updates(map[string]any{
				"is_stand":         true,
				"has_left":         true,
				"has_card_request": false,
			}).Error; err != nil {
				return err
			}
			wasTurn := session.CurrentTurnPlayerID != nil && *session.CurrentTurnPlayerID == seat.ID
			if allPlayersDone(session) {
				outcome, err := s.terminate(tx, session, nil)
				if err != nil {
					return err
				}
				result.Finished = true
				result.Outcome = outcome
			} else if wasTurn {
				if _, _, err := s.settleAfterTurn(tx, session, seat.ID); err != nil {
					return err
				}
			}
			if result.Finished {
				outcome := result.Outcome
				events = append(events, func() {
					s.publish(session.ID, EventSessionFinished, map[string]any{
						"session_id": session.ID,
						"outcome":    outcome,
					})
				})
			}
			return nil
		default:
			return newError(KindInvalidState, "cannot leave a %s session", session.Status)
		}
	})
	if err != nil {
		return nil, err
	}
	s.publish(sessionID, EventPlayerLeft, map[string]any{
		"session_id":     sessionID,
		"user_id":        user.ID,
		"session_closed": result.SessionClosed,
	})
	for _, emit := range events {
		emit()
	}
	return &result, nil
}
