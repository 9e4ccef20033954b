// internal/models/card.go
package models

// Suit is one of the four card suits. The values match the wire format.
type Suit string

const (
	SuitClub    Suit = "Club"
	SuitHeart   Suit = "Heart"
	SuitDiamond Suit = "Diamond"
	SuitSpade   Suit = "Spade"
)

// Rank is a card rank spelled out in full, as it appears on the wire.
type Rank string

const (
	RankAce   Rank = "Ace"
	RankTwo   Rank = "Two"
	RankThree Rank = "Three"
	RankFour  Rank = "Four"
	RankFive  Rank = "Five"
	RankSix   Rank = "Six"
	RankSeven Rank = "Seven"
	RankEight Rank = "Eight"
	RankNine  Rank = "Nine"
	RankTen   Rank = "Ten"
	RankJack  Rank = "Jack"
	RankQueen Rank = "Queen"
	RankKing  Rank = "King"
)

// AllSuits returns every suit in a stable order.
func AllSuits() []Suit {
	return []Suit{SuitClub, SuitHeart, SuitDiamond, SuitSpade}
}

// AllRanks returns every rank in a stable order.
func AllRanks() []Rank {
	return []Rank{
		RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
		RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
	}
}

// Card is a single card. Identity is (Suite, Value); Visible is the public
// face-up flag and starts false.
type Card struct {
	Suite   Suit `json:"suite"`
	Value   Rank `json:"value"`
	Visible bool `json:"visible"`
}

// NewCard returns a face-down card of the given suit and rank.
func NewCard(suite Suit, value Rank) *Card {
	return &Card{Suite: suite, Value: value}
}

// Is reports whether the card has the given identity.
func (c *Card) Is(suite Suit, value Rank) bool {
	return c.Suite == suite && c.Value == value
}

// CardView is the privacy-respecting projection of a card delivered to
// non-owners. A hidden card carries only visible=false; suite and value are
// omitted from the JSON entirely.
type CardView struct {
	Suite   Suit `json:"suite,omitempty"`
	Value   Rank `json:"value,omitempty"`
	Visible bool `json:"visible"`
}

// View projects the card for recipients other than its holder. Face-up cards
// keep their identity; face-down cards reveal nothing but the flag.
func (c *Card) View() CardView {
	if c.Visible {
		return CardView{Suite: c.Suite, Value: c.Value, Visible: true}
	}
	return CardView{}
}
