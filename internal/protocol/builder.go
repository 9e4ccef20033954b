// internal/protocol/builder.go
package protocol

import (
	"fmt"

	"github.com/cardroom/tabletop/internal/models"
)

// EventBuilder assembles an outgoing event field by field and checks at
// Build time that the chosen event kind carries everything it must.
type EventBuilder struct {
	action EventType
	data   EventData
}

// NewEvent starts a builder for the given event kind.
func NewEvent(action EventType) *EventBuilder {
	return &EventBuilder{action: action}
}

func (b *EventBuilder) RoomCode(code string) *EventBuilder {
	b.data.RoomCode = code
	return b
}

func (b *EventBuilder) PlayerID(id string) *EventBuilder {
	b.data.PlayerID = id
	return b
}

func (b *EventBuilder) PlayerName(name string) *EventBuilder {
	b.data.PlayerName = name
	return b
}

func (b *EventBuilder) DrawDeckSize(n int) *EventBuilder {
	b.data.DrawDeckSize = &n
	return b
}

// Card attaches a copy of the full card, identity and visibility included.
func (b *EventBuilder) Card(c models.Card) *EventBuilder {
	b.data.Card = &c
	return b
}

// Hand attaches the issuer's hand projected to CardViews. A nil slice is
// normalized so an emptied hand still serializes as [].
func (b *EventBuilder) Hand(views []models.CardView) *EventBuilder {
	if views == nil {
		views = []models.CardView{}
	}
	b.data.Hand = views
	return b
}

func (b *EventBuilder) OtherPlayers(players []models.PlayerView) *EventBuilder {
	if players == nil {
		players = []models.PlayerView{}
	}
	b.data.OtherPlayers = players
	return b
}

// DiscardPile attaches the full discard pile. Discards are public, so the
// cards go out with identity intact.
func (b *EventBuilder) DiscardPile(cards []models.Card) *EventBuilder {
	if cards == nil {
		cards = []models.Card{}
	}
	b.data.DiscardPile = cards
	return b
}

func (b *EventBuilder) Message(msg string) *EventBuilder {
	b.data.Message = msg
	return b
}

func (b *EventBuilder) Error(msg string) *EventBuilder {
	b.data.Error = msg
	return b
}

// Build validates the per-kind required fields and returns the event.
func (b *EventBuilder) Build() (Event, error) {
	if err := b.validate(); err != nil {
		return Event{}, fmt.Errorf("build %s event: %w", b.action, err)
	}
	return Event{Action: b.action, Data: b.data}, nil
}

func (b *EventBuilder) validate() error {
	switch b.action {
	case EventGameCreated:
		return b.require(needRoomCode | needPlayerID | needPlayerName | needDeckSize)
	case EventRoomJoined:
		return b.require(needRoomCode | needPlayerID | needPlayerName | needDeckSize | needOtherPlayers | needDiscardPile)
	case EventPlayerJoinedRoomInSession:
		return b.require(needPlayerID | needPlayerName)
	case EventChat:
		return b.require(needPlayerName | needMessage)
	case EventCardDrawn, EventDrawDeckUpdated:
		return b.require(needDeckSize)
	case EventToggleVisibilityOfCard:
		return b.require(needPlayerID | needCard)
	case EventDiscardCard:
		return b.require(needPlayerID | needCard | needHand)
	case EventResetDeck:
		return b.require(needDeckSize | needDiscardPile | needMessage)
	case EventQuit:
		return b.require(needPlayerID | needDiscardPile | needMessage)
	case EventError:
		return b.require(needError)
	case "":
		return fmt.Errorf("action is not set")
	default:
		return fmt.Errorf("unknown action %q", b.action)
	}
}

type requirement uint

const (
	needRoomCode requirement = 1 << iota
	needPlayerID
	needPlayerName
	needDeckSize
	needCard
	needHand
	needOtherPlayers
	needDiscardPile
	needMessage
	needError
)

func (b *EventBuilder) require(req requirement) error {
	missing := func(field string) error {
		return fmt.Errorf("required field %s is not set", field)
	}
	if req&needRoomCode != 0 && b.data.RoomCode == "" {
		return missing("room_code")
	}
	if req&needPlayerID != 0 && b.data.PlayerID == "" {
		return missing("player_id")
	}
	if req&needPlayerName != 0 && b.data.PlayerName == "" {
		return missing("player_name")
	}
	if req&needDeckSize != 0 && b.data.DrawDeckSize == nil {
		return missing("draw_deck_size")
	}
	if req&needCard != 0 && b.data.Card == nil {
		return missing("card")
	}
	if req&needHand != 0 && b.data.Hand == nil {
		return missing("hand")
	}
	if req&needOtherPlayers != 0 && b.data.OtherPlayers == nil {
		return missing("other_players")
	}
	if req&needDiscardPile != 0 && b.data.DiscardPile == nil {
		return missing("discard_pile")
	}
	if req&needMessage != 0 && b.data.Message == "" {
		return missing("message")
	}
	if req&needError != 0 && b.data.Error == "" {
		return missing("error")
	}
	return nil
}
