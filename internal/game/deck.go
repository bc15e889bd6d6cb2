package game

import (
	"encoding/json"
	"math/rand/v2"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"twentyone/internal/db"
)

var deckRanks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
var deckSuits = []string{"♠", "♥", "♦", "♣"}

// NewDeck returns all 52 rank-suit tokens in uniform random order.
func NewDeck() []string {
	deck := make([]string, 0, len(deckRanks)*len(deckSuits))
	for _, rank := range deckRanks {
		for _, suit := range deckSuits {
			deck = append(deck, rank+suit)
		}
	}
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

func marshalDeck(deck []string) datatypes.JSON {
	data, _ := json.Marshal(deck)
	return datatypes.JSON(data)
}

func unmarshalDeck(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var deck []string
	if err := json.Unmarshal(raw, &deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// drawCard pops the head token off the session's deck and persists the
// shrunken deck within the caller's transaction, so a dealt card can never be
// re-dealt by a competing writer.
func drawCard(tx *gorm.DB, session *db.Session) (string, error) {
	deck, err := unmarshalDeck(session.Deck)
	if err != nil {
		return "", err
	}
	if len(deck) == 0 {
		return "", newError(KindDeckExhausted, "deck exhausted in session %d", session.ID)
	}
	token := deck[0]
	session.Deck = marshalDeck(deck[1:])
	if err := tx.Model(&db.Session{}).Where("id = ?", session.ID).
		Update("deck", session.Deck).Error; err != nil {
		return "", err
	}
	return token, nil
}
