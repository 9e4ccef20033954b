// internal/protocol/command.go
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/cardroom/tabletop/internal/models"
)

// CommandType identifies an incoming client command.
type CommandType string

const (
	CmdCreateGame             CommandType = "CreateGame"
	CmdJoinRoom               CommandType = "JoinRoom"
	CmdChat                   CommandType = "Chat"
	CmdDrawCard               CommandType = "DrawCard"
	CmdToggleVisibilityOfCard CommandType = "ToggleVisibilityOfCard"
	CmdDiscardCard            CommandType = "DiscardCard"
	CmdResetDeck              CommandType = "ResetDeck"
	CmdQuit                   CommandType = "Quit"
)

// CardRef identifies a card by (suite, value) in an incoming command.
// Visibility is never trusted from the wire.
type CardRef struct {
	Suite models.Suit `json:"suite"`
	Value models.Rank `json:"value"`
}

// Command is the incoming envelope. Every field other than Command is
// optional at the wire level; the hub enforces per-command requirements.
// The player id is always derived from the connection, never the payload.
type Command struct {
	Command    CommandType `json:"command"`
	RoomCode   string      `json:"room_code,omitempty"`
	PlayerName string      `json:"player_name,omitempty"`
	Message    string      `json:"message,omitempty"`
	Card       *CardRef    `json:"card,omitempty"`
}

// DecodeCommand parses a text frame into a Command. It fails on malformed
// JSON and on unknown command kinds.
func DecodeCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("invalid command envelope: %w", err)
	}
	switch cmd.Command {
	case CmdCreateGame, CmdJoinRoom, CmdChat, CmdDrawCard,
		CmdToggleVisibilityOfCard, CmdDiscardCard, CmdResetDeck, CmdQuit:
		return &cmd, nil
	case "":
		return nil, fmt.Errorf("missing command kind")
	default:
		return nil, fmt.Errorf("unknown command kind %q", cmd.Command)
	}
}
