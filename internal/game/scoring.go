package game

import (
	"strconv"
	"strings"
)

const blackjackLimit = 21

// HandScore is the result of scoring one player's drawn cards.
type HandScore struct {
	Total   int
	IsBust  bool
	IsExact bool
}

// ScoreHand sums the rank values of the given card tokens. Number cards count
// at face value, J/Q/K count 10, and aces count a fixed 1. There is no
// soft/hard ace re-valuation; the session rules pin the ace at 1.
// Pure and order-independent over the token collection.
func ScoreHand(tokens []string) HandScore {
	total := 0
	for _, token := range tokens {
		total += cardValue(token)
	}
	return HandScore{
		Total:   total,
		IsBust:  total > blackjackLimit,
		IsExact: total == blackjackLimit,
	}
}

func cardValue(token string) int {
	rank := strings.TrimRightFunc(token, func(r rune) bool {
		return r > 127
	})
	switch rank {
	case "J", "Q", "K":
		return 10
	case "A":
		return 1
	default:
		value, err := strconv.Atoi(rank)
		if err != nil {
			return 0
		}
		return value
	}
}
