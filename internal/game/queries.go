package game

import (
	"context"

	"gorm.io/gorm"

	"twentyone/internal/db"
)

// ListOpenSessions returns waiting sessions, newest first.
func (s *Service) ListOpenSessions(ctx context.Context) ([]SessionSummary, error) {
	var sessions []db.Session
	err := s.db.WithContext(ctx).
		Preload("Players").
		Where("status = ?", db.StatusWaiting).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, translateStoreError(err)
	}
	summaries := make([]SessionSummary, 0, len(sessions))
	for i := range sessions {
		session := &sessions[i]
		seated := len(nonHostPlayers(session))
		summaries = append(summaries, SessionSummary{
			SessionID:      session.ID,
			HostName:       session.HostName,
			CurrentPlayers: seated,
			MaxPlayers:     session.MaxPlayers,
			Status:         session.Status,
			CanJoin:        seated < session.MaxPlayers,
			CreatedAt:      session.CreatedAt,
		})
	}
	return summaries, nil
}

// GetSession returns the full observer snapshot of one session.
func (s *Service) GetSession(ctx context.Context, sessionID uint) (*SessionSnapshot, error) {
	var session db.Session
	err := s.db.WithContext(ctx).
		Preload("Players", func(conn *gorm.DB) *gorm.DB {
			return conn.Order("players.id ASC")
		}).
		Preload("Players.Cards").
		First(&session, sessionID).Error
	if err != nil {
		return nil, translateStoreError(err)
	}
	return snapshot(&session), nil
}

func snapshot(session *db.Session) *SessionSnapshot {
	deck, _ := unmarshalDeck(session.Deck)
	seats := make([]SeatSnapshot, 0, len(session.Players))
	for i := range session.Players {
		p := &session.Players[i]
		seats = append(seats, SeatSnapshot{
			PlayerID:       p.ID,
			UserID:         p.UserID,
			Name:           p.Name,
			IsHost:         p.IsHost,
			TotalPoints:    p.TotalPoints,
			IsStand:        p.IsStand,
			HasCardRequest: p.HasCardRequest,
			HasLeft:        p.HasLeft,
			Cards:          cardTokens(p),
		})
	}
	return &SessionSnapshot{
		SessionID:           session.ID,
		Status:              session.Status,
		HostName:            session.HostName,
		MaxPlayers:          session.MaxPlayers,
		CurrentTurnPlayerID: session.CurrentTurnPlayerID,
		WinnerID:            session.WinnerID,
		DeckRemaining:       len(deck),
		RematchProposed:     session.RematchProposed,
		RematchRound:        session.RematchRound,
		Players:             seats,
	}
}

// PendingCardRequests lists seats waiting on the host to deal.
func (s *Service) PendingCardRequests(ctx context.Context, sessionID uint) ([]CardRequest, error) {
	var session db.Session
	err := s.db.WithContext(ctx).
		Preload("Players", func(conn *gorm.DB) *gorm.DB {
			return conn.Order("players.id ASC")
		}).
		First(&session, sessionID).Error
	if err != nil {
		return nil, translateStoreError(err)
	}
	requests := make([]CardRequest, 0)
	for _, p := range session.Players {
		if p.HasCardRequest {
			requests = append(requests, CardRequest{PlayerID: p.ID, Name: p.Name})
		}
	}
	return requests, nil
}
