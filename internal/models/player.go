// internal/models/player.go
package models

import (
	"github.com/google/uuid"
)

// Sink is the outbound message queue linking a player to its connection
// writer. The handler that accepts the WebSocket owns the channel; the
// player only ever enqueues onto it.
type Sink chan []byte

// Player is a connected participant: a stable id, a display name, an
// outbound sink, and a private ordered hand.
type Player struct {
	ID   uuid.UUID
	Name string
	Hand []*Card

	out Sink
}

// NewPlayer creates a player with a fresh id whose events are delivered on
// the given sink.
func NewPlayer(name string, out Sink) *Player {
	return &Player{
		ID:   uuid.New(),
		Name: name,
		Hand: []*Card{},
		out:  out,
	}
}

// Send enqueues an encoded event without blocking. It reports false when the
// sink is full, in which case the caller treats the recipient as slow and
// reaps it; room state must never wait on a stalled writer.
func (p *Player) Send(payload []byte) bool {
	select {
	case p.out <- payload:
		return true
	default:
		return false
	}
}

// AddToHand appends a card to the player's hand.
func (p *Player) AddToHand(card *Card) {
	p.Hand = append(p.Hand, card)
}

// Find returns the card in the player's hand with the given identity, or nil.
func (p *Player) Find(suite Suit, value Rank) *Card {
	for _, c := range p.Hand {
		if c.Is(suite, value) {
			return c
		}
	}
	return nil
}

// ToggleVisibility flips the face-up flag on the matching hand card and
// returns it, or nil if the player does not hold that card.
func (p *Player) ToggleVisibility(suite Suit, value Rank) *Card {
	c := p.Find(suite, value)
	if c == nil {
		return nil
	}
	c.Visible = !c.Visible
	return c
}

// Discard removes the matching card from the player's hand and returns it,
// or nil if the player does not hold that card.
func (p *Player) Discard(suite Suit, value Rank) *Card {
	for i, c := range p.Hand {
		if c.Is(suite, value) {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return c
		}
	}
	return nil
}

// EmptyHand drops every card from the player's hand.
func (p *Player) EmptyHand() {
	p.Hand = p.Hand[:0]
}

// HandViews projects the player's hand for non-owners.
func (p *Player) HandViews() []CardView {
	views := make([]CardView, 0, len(p.Hand))
	for _, c := range p.Hand {
		views = append(views, c.View())
	}
	return views
}

// PlayerView is the public roster entry broadcast to other players: identity
// plus the hand reduced to CardViews.
type PlayerView struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Hand []CardView `json:"hand"`
}

// PublicView returns the player's roster entry as seen by everyone else.
func (p *Player) PublicView() PlayerView {
	return PlayerView{
		ID:   p.ID.String(),
		Name: p.Name,
		Hand: p.HandViews(),
	}
}
