package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusWaiting       = "waiting"
	StatusStarting      = "starting"
	StatusPlaying       = "playing"
	StatusFinished      = "finished"
	StatusLobbyRedirect = "lobby_redirect"
)

type Session struct {
	ID                  uint   `gorm:"primaryKey"`
	Status              string `gorm:"size:32;not null;index"`
	HostName            string `gorm:"size:64;not null"`
	MaxPlayers          int    `gorm:"not null"`
	CurrentTurnPlayerID *uint
	WinnerID            *uint
	Deck                datatypes.JSON `gorm:"type:jsonb"`
	RematchProposed     bool           `gorm:"not null;default:false"`
	RematchResponses    datatypes.JSON `gorm:"type:jsonb"`
	RematchRound        int            `gorm:"not null;default:1"`
	CreatedAt           time.Time      `gorm:"not null"`
	UpdatedAt           time.Time      `gorm:"not null"`
	Players             []Player
}

type Player struct {
	ID             uint      `gorm:"primaryKey"`
	SessionID      uint      `gorm:"index;not null;uniqueIndex:idx_players_session_user"`
	UserID         string    `gorm:"size:64;not null;uniqueIndex:idx_players_session_user"`
	Name           string    `gorm:"size:64;not null"`
	IsHost         bool      `gorm:"not null;default:false"`
	TotalPoints    int       `gorm:"not null;default:0"`
	IsStand        bool      `gorm:"not null;default:false"`
	HasCardRequest bool      `gorm:"not null;default:false"`
	HasLeft        bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
	Cards          []Card
}

type Card struct {
	ID        uint      `gorm:"primaryKey"`
	PlayerID  uint      `gorm:"index;not null"`
	Token     string    `gorm:"size:8;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// Identity maps a bearer token to an external user. Token issuance itself
// happens outside this service.
type Identity struct {
	Token       string    `gorm:"primaryKey;size:64"`
	UserID      string    `gorm:"size:64;not null;index"`
	DisplayName string    `gorm:"size:64;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}
