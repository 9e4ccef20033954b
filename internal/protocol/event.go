// internal/protocol/event.go
package protocol

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/cardroom/tabletop/internal/models"
)

// EventType identifies an outgoing server event.
type EventType string

const (
	EventGameCreated               EventType = "GameCreated"
	EventRoomJoined                EventType = "RoomJoined"
	EventPlayerJoinedRoomInSession EventType = "PlayerJoinedRoomInSession"
	EventChat                      EventType = "Chat"
	EventCardDrawn                 EventType = "CardDrawn"
	EventDrawDeckUpdated           EventType = "DrawDeckUpdated"
	EventToggleVisibilityOfCard    EventType = "ToggleVisibilityOfCard"
	EventDiscardCard               EventType = "DiscardCard"
	EventResetDeck                 EventType = "ResetDeck"
	EventQuit                      EventType = "Quit"
	EventError                     EventType = "Error"
)

// Event is the outgoing envelope: a tagged action plus its data payload.
type Event struct {
	Action EventType `json:"action"`
	Data   EventData `json:"data"`
}

// EventData carries the union of all event payload fields. Everything is
// optional at the wire level; the builder enforces what each event kind
// must carry. DrawDeckSize is a pointer so a drained deck (size 0) still
// serializes. The slice fields use omitzero so an intentionally empty list
// stays distinguishable from an absent one.
type EventData struct {
	RoomCode     string              `json:"room_code,omitempty"`
	PlayerID     string              `json:"player_id,omitempty"`
	PlayerName   string              `json:"player_name,omitempty"`
	DrawDeckSize *int                `json:"draw_deck_size,omitempty"`
	Card         *models.Card        `json:"card,omitempty"`
	Hand         []models.CardView   `json:"hand,omitzero"`
	OtherPlayers []models.PlayerView `json:"other_players,omitzero"`
	DiscardPile  []models.Card       `json:"discard_pile,omitzero"`
	Message      string              `json:"message,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Encode marshals an event into the bytes written to each recipient's sink.
// Marshalling these payloads cannot realistically fail; if it somehow does,
// the event degrades to an empty envelope rather than crashing fan-out.
func Encode(ev Event) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.Warnf("failed to marshal %s event: %v", ev.Action, err)
		return []byte("{}")
	}
	return data
}
