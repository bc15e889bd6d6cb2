package game

import "time"

// CreateResult reports a freshly created session and its host seat.
type CreateResult struct {
	SessionID  uint   `json:"session_id"`
	Status     string `json:"status"`
	MaxPlayers int    `json:"max_players"`
	HostID     uint   `json:"host_id"`
}

// JoinResult reports a successful admission.
type JoinResult struct {
	PlayerID       uint   `json:"player_id"`
	AutoStarting   bool   `json:"auto_starting"`
	Status         string `json:"status"`
	CurrentPlayers int    `json:"current_players"`
	MaxPlayers     int    `json:"max_players"`
}

// StartResult reports the transition into play.
type StartResult struct {
	Status              string `json:"status"`
	CurrentTurnPlayerID uint   `json:"current_turn_player_id"`
}

// DealResult reports one dealt card and whatever it caused.
type DealResult struct {
	Token       string   `json:"card"`
	TotalPoints int      `json:"total_points"`
	IsStand     bool     `json:"is_stand"`
	Finished    bool     `json:"finished"`
	Outcome     *Outcome `json:"outcome,omitempty"`
}

// StandResult reports a stand and whatever it caused.
type StandResult struct {
	Finished bool     `json:"finished"`
	Outcome  *Outcome `json:"outcome,omitempty"`
}

// LeaveResult reports a departure.
type LeaveResult struct {
	SessionClosed bool     `json:"session_closed"`
	NewHostID     uint     `json:"new_host_id,omitempty"`
	Finished      bool     `json:"finished"`
	Outcome       *Outcome `json:"outcome,omitempty"`
}

// PlayerResult is one seat's final reckoning at termination.
type PlayerResult struct {
	PlayerID    uint     `json:"player_id"`
	Name        string   `json:"name"`
	TotalPoints int      `json:"total_points"`
	FinalScore  int      `json:"final_score"`
	IsBust      bool     `json:"is_bust"`
	IsHost      bool     `json:"is_host"`
	Cards       []string `json:"cards"`
}

// Outcome describes how a session ended. WinnerID is set only when a single
// highest-scoring valid player exists; an exact tie leaves it nil while
// Winners still names every co-winner for observers.
type Outcome struct {
	WinnerID *uint          `json:"winner_id"`
	Winners  []PlayerResult `json:"winners"`
	Draw     bool           `json:"draw"`
	Results  []PlayerResult `json:"results"`
}

// Rematch vote outcomes.
const (
	RematchPending   = "pending"
	RematchRestarted = "restarted"
	RematchCancelled = "cancelled"
)

// RematchVoteResult reports the state of a rematch vote after one answer.
type RematchVoteResult struct {
	Outcome      string `json:"outcome"`
	Remaining    int    `json:"remaining"`
	RematchRound int    `json:"rematch_round,omitempty"`
}

// rematchResponse is one seat's recorded answer, serialized into the
// session's rematch_responses column while a vote is open.
type rematchResponse struct {
	PlayerID    uint       `json:"player_id"`
	Accepted    *bool      `json:"accepted"`
	RespondedAt *time.Time `json:"responded_at"`
}

// SeatSnapshot is one seat in a session snapshot.
type SeatSnapshot struct {
	PlayerID       uint     `json:"player_id"`
	UserID         string   `json:"user_id"`
	Name           string   `json:"name"`
	IsHost         bool     `json:"is_host"`
	TotalPoints    int      `json:"total_points"`
	IsStand        bool     `json:"is_stand"`
	HasCardRequest bool     `json:"has_card_request"`
	HasLeft        bool     `json:"has_left"`
	Cards          []string `json:"cards"`
}

// SessionSnapshot is the full observer view of one session.
type SessionSnapshot struct {
	SessionID           uint           `json:"session_id"`
	Status              string         `json:"status"`
	HostName            string         `json:"host_name"`
	MaxPlayers          int            `json:"max_players"`
	CurrentTurnPlayerID *uint          `json:"current_turn_player_id"`
	WinnerID            *uint          `json:"winner_id"`
	DeckRemaining       int            `json:"deck_remaining"`
	RematchProposed     bool           `json:"rematch_proposed"`
	RematchRound        int            `json:"rematch_round"`
	Players             []SeatSnapshot `json:"players"`
}

// SessionSummary is one row of the open-sessions listing.
type SessionSummary struct {
	SessionID      uint      `json:"session_id"`
	HostName       string    `json:"host_name"`
	CurrentPlayers int       `json:"current_players"`
	MaxPlayers     int       `json:"max_players"`
	Status         string    `json:"status"`
	CanJoin        bool      `json:"can_join"`
	CreatedAt      time.Time `json:"created_at"`
}

// CardRequest is one pending draw request awaiting host action.
type CardRequest struct {
	PlayerID uint   `json:"player_id"`
	Name     string `json:"name"`
}
