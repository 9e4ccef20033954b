// internal/room/room.go
package room

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cardroom/tabletop/internal/models"
	"github.com/cardroom/tabletop/internal/protocol"
)

// Room is the authoritative aggregate for one session: a 4-digit code, the
// ordered roster (first entry is the creator), the face-down draw deck, and
// the public discard pile.
//
// Every mutation runs under Mu, held by the dispatching hub. Fan-out is a
// non-blocking enqueue onto each recipient's sink, so nothing inside the
// critical section can wait on a connection. Command methods return the ids
// of players whose sinks overflowed; the hub reaps those by synthesizing a
// Quit through the same removal path as a disconnect.
type Room struct {
	Code        string
	Players     []*models.Player
	DrawDeck    []*models.Card
	DiscardPile []*models.Card

	Mu sync.Mutex

	// OnEmpty is invoked by the hub after the last player leaves, typically
	// to delete the room from the registry. Called outside Mu.
	OnEmpty func(code string)

	retired bool
}

// Retire marks the room as removed from the registry. A joiner that resolved
// the room before the last member quit checks this under Mu instead of
// landing on an unregistered roster. Caller must hold Mu.
func (r *Room) Retire() {
	r.retired = true
}

// Retired reports whether the room has been retired. Caller must hold Mu.
func (r *Room) Retired() bool {
	return r.retired
}

// NewRoom builds a room seeded with a freshly shuffled full deck and the
// creator as sole roster member, and tells the creator about it.
func NewRoom(code string, creator *models.Player) *Room {
	r := &Room{
		Code:        code,
		Players:     []*models.Player{creator},
		DiscardPile: []*models.Card{},
	}
	r.resetDrawDeck()

	if ev, ok := buildEvent(protocol.NewEvent(protocol.EventGameCreated).
		RoomCode(r.Code).
		PlayerID(creator.ID.String()).
		PlayerName(creator.Name).
		DrawDeckSize(len(r.DrawDeck))); ok {
		sendTo(creator, ev)
	}
	return r
}

// resetDrawDeck rebuilds and shuffles the full 52-card draw deck.
func (r *Room) resetDrawDeck() {
	r.DrawDeck = NewFullDeck()
	shuffle(r.DrawDeck)
}

// DrawDeckSize returns the number of cards left in the draw deck.
// Caller must hold Mu.
func (r *Room) DrawDeckSize() int {
	return len(r.DrawDeck)
}

// Empty reports whether the roster has no players left. Caller must hold Mu.
func (r *Room) Empty() bool {
	return len(r.Players) == 0
}

// findPlayer returns the roster member with the given id, or nil.
func (r *Room) findPlayer(playerID uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// discardValues copies the discard pile by value for an event payload.
func (r *Room) discardValues() []models.Card {
	pile := make([]models.Card, 0, len(r.DiscardPile))
	for _, c := range r.DiscardPile {
		pile = append(pile, *c)
	}
	return pile
}

// Join appends a new player to the roster. The joiner learns the room state
// (other players' hands as CardViews, the public discard pile); everyone
// already present learns only the joiner's id and name.
// Caller must hold Mu.
func (r *Room) Join(p *models.Player) (overflow []uuid.UUID) {
	others := make([]models.PlayerView, 0, len(r.Players))
	for _, existing := range r.Players {
		others = append(others, existing.PublicView())
	}

	if ev, ok := buildEvent(protocol.NewEvent(protocol.EventRoomJoined).
		RoomCode(r.Code).
		PlayerID(p.ID.String()).
		PlayerName(p.Name).
		DrawDeckSize(len(r.DrawDeck)).
		OtherPlayers(others).
		DiscardPile(r.discardValues())); ok {
		sendTo(p, ev)
	}

	r.Players = append(r.Players, p)

	if ev, ok := buildEvent(protocol.NewEvent(protocol.EventPlayerJoinedRoomInSession).
		PlayerID(p.ID.String()).
		PlayerName(p.Name)); ok {
		overflow = r.broadcastOthers(ev, p.ID)
	}
	return overflow
}

// Chat fans a chat line out to the whole room, tagged with the sender's name
// and the current deck size so every client's counter stays in agreement.
// Caller must hold Mu.
func (r *Room) Chat(playerID uuid.UUID, text string) (overflow []uuid.UUID) {
	p := r.findPlayer(playerID)
	if p == nil {
		return nil
	}
	ev, ok := buildEvent(protocol.NewEvent(protocol.EventChat).
		PlayerName(p.Name).
		Message(text).
		DrawDeckSize(len(r.DrawDeck)))
	if !ok {
		return nil
	}
	return r.broadcastRoom(ev)
}

// DrawCard pops the top card of the draw deck into the issuer's hand. The
// issuer sees the card; everyone else only sees the deck shrink. Drawing
// from an empty deck answers an Error to the issuer and changes nothing.
// Caller must hold Mu.
func (r *Room) DrawCard(playerID uuid.UUID) (overflow []uuid.UUID) {
	p := r.findPlayer(playerID)
	if p == nil {
		return nil
	}
	if len(r.DrawDeck) == 0 {
		sendError(p, "draw deck is empty")
		return nil
	}

	card := r.DrawDeck[len(r.DrawDeck)-1]
	r.DrawDeck = r.DrawDeck[:len(r.DrawDeck)-1]
	card.Visible = false // drawn cards always enter the hand face-down
	p.AddToHand(card)

	if ev, ok := buildEvent(protocol.NewEvent(protocol.EventCardDrawn).
		Card(*card).
		DrawDeckSize(len(r.DrawDeck))); ok {
		if !sendTo(p, ev) {
			overflow = append(overflow, p.ID)
		}
	}
	// The same event with the card elided: non-holders must not learn the
	// identity, but their deck-size displays still have to agree.
	if ev, ok := buildEvent(protocol.NewEvent(protocol.EventCardDrawn).
		DrawDeckSize(len(r.DrawDeck))); ok {
		overflow = append(overflow, r.broadcastOthers(ev, p.ID)...)
	}
	return overflow
}

// ToggleVisibility flips the face-up flag on a card in the issuer's hand and
// announces the full card to the room. Toggling lifts concealment either
// way: flipping back to face-down still broadcasts the identity once.
// Unknown cards are a silent no-op. Caller must hold Mu.
func (r *Room) ToggleVisibility(playerID uuid.UUID, suite models.Suit, value models.Rank) (overflow []uuid.UUID) {
	p := r.findPlayer(playerID)
	if p == nil {
		return nil
	}
	card := p.ToggleVisibility(suite, value)
	if card == nil {
		return nil
	}
	ev, ok := buildEvent(protocol.NewEvent(protocol.EventToggleVisibilityOfCard).
		PlayerID(p.ID.String()).
		Card(*card))
	if !ok {
		return nil
	}
	return r.broadcastRoom(ev)
}

// DiscardCard moves a card from the issuer's hand onto the discard pile.
// Discards are public, so the card is forced face-up in transit and the
// whole room sees it along with the issuer's remaining hand as CardViews.
// Unknown cards are a silent no-op. Caller must hold Mu.
func (r *Room) DiscardCard(playerID uuid.UUID, suite models.Suit, value models.Rank) (overflow []uuid.UUID) {
	p := r.findPlayer(playerID)
	if p == nil {
		return nil
	}
	card := p.Discard(suite, value)
	if card == nil {
		return nil
	}
	card.Visible = true
	r.DiscardPile = append(r.DiscardPile, card)

	ev, ok := buildEvent(protocol.NewEvent(protocol.EventDiscardCard).
		PlayerID(p.ID.String()).
		Card(*card).
		Hand(p.HandViews()))
	if !ok {
		return nil
	}
	return r.broadcastRoom(ev)
}

// ResetDeck returns the session to its initial shape: every hand and the
// discard pile emptied, a fresh shuffled 52-card draw deck. Caller must
// hold Mu.
func (r *Room) ResetDeck() (overflow []uuid.UUID) {
	r.resetDrawDeck()
	r.DiscardPile = r.DiscardPile[:0]
	for _, p := range r.Players {
		p.EmptyHand()
	}

	ev, ok := buildEvent(protocol.NewEvent(protocol.EventResetDeck).
		DiscardPile([]models.Card{}).
		DrawDeckSize(len(r.DrawDeck)).
		Message("Deck reset and shuffled"))
	if !ok {
		return nil
	}
	return r.broadcastRoom(ev)
}

// RemovePlayer takes a player out of the roster, moving their hand face-up
// onto the discard pile, and tells the remaining players. It reports whether
// the player was present; the hub checks Empty afterwards to retire the
// room. Caller must hold Mu.
func (r *Room) RemovePlayer(playerID uuid.UUID) (overflow []uuid.UUID, removed bool) {
	idx := -1
	for i, p := range r.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false
	}

	departing := r.Players[idx]
	for _, c := range departing.Hand {
		c.Visible = true
		r.DiscardPile = append(r.DiscardPile, c)
	}
	departing.EmptyHand()
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	ev, ok := buildEvent(protocol.NewEvent(protocol.EventQuit).
		PlayerID(playerID.String()).
		DiscardPile(r.discardValues()).
		Message(fmt.Sprintf("%s left the room", departing.Name)))
	if !ok {
		return nil, true
	}
	return r.broadcastRoom(ev), true
}

// broadcastRoom enqueues the event for every roster member and returns the
// ids of players whose sinks were full.
func (r *Room) broadcastRoom(ev protocol.Event) (overflow []uuid.UUID) {
	payload := protocol.Encode(ev)
	for _, p := range r.Players {
		if !p.Send(payload) {
			overflow = append(overflow, p.ID)
		}
	}
	return overflow
}

// broadcastOthers is broadcastRoom minus the issuer.
func (r *Room) broadcastOthers(ev protocol.Event, except uuid.UUID) (overflow []uuid.UUID) {
	payload := protocol.Encode(ev)
	for _, p := range r.Players {
		if p.ID == except {
			continue
		}
		if !p.Send(payload) {
			overflow = append(overflow, p.ID)
		}
	}
	return overflow
}

// sendTo delivers a single event to one player, reporting enqueue success.
func sendTo(p *models.Player, ev protocol.Event) bool {
	return p.Send(protocol.Encode(ev))
}

// sendError delivers an application-level error to the issuer only.
func sendError(p *models.Player, msg string) {
	if ev, ok := buildEvent(protocol.NewEvent(protocol.EventError).Error(msg)); ok {
		sendTo(p, ev)
	}
}

// buildEvent finalizes a builder. A validation failure here means a bug in
// the emitting code path, so it is logged and the event dropped rather than
// propagated.
func buildEvent(b *protocol.EventBuilder) (protocol.Event, bool) {
	ev, err := b.Build()
	if err != nil {
		logrus.Warnf("dropping event: %v", err)
		return protocol.Event{}, false
	}
	return ev, true
}
