// internal/room/deck.go
package room

import (
	"math/rand"

	"github.com/cardroom/tabletop/internal/models"
)

// NewFullDeck returns the 52-card space in suit/rank order, all face-down,
// exactly one of each (suite, value) pair.
func NewFullDeck() []*models.Card {
	cards := make([]*models.Card, 0, 52)
	for _, suite := range models.AllSuits() {
		for _, value := range models.AllRanks() {
			cards = append(cards, models.NewCard(suite, value))
		}
	}
	return cards
}

// shuffle applies a uniform Fisher-Yates permutation in place.
func shuffle(cards []*models.Card) {
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
