package server

import (
	"net/http"
	"strings"
	"sync"

	"gorm.io/gorm"

	"twentyone/internal/db"
	"twentyone/internal/game"
)

// identityStore resolves bearer tokens to users. Tokens are issued by the
// external auth service and land in the identities table; resolved entries
// are cached in process since tokens are immutable.
type identityStore struct {
	db    *gorm.DB
	mu    sync.Mutex
	cache map[string]game.User
}

func newIdentityStore(conn *gorm.DB) *identityStore {
	return &identityStore{
		db:    conn,
		cache: make(map[string]game.User),
	}
}

func (s *identityStore) Resolve(r *http.Request) (game.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return game.User{}, errMissingToken
	}
	s.mu.Lock()
	user, ok := s.cache[token]
	s.mu.Unlock()
	if ok {
		return user, nil
	}
	var record db.Identity
	if err := s.db.Where("token = ?", token).First(&record).Error; err != nil {
		return game.User{}, errUnknownToken
	}
	user = game.User{ID: record.UserID, Name: record.DisplayName}
	s.mu.Lock()
	s.cache[token] = user
	s.mu.Unlock()
	return user, nil
}
