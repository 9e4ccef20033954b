// internal/hub/hub.go
package hub

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cardroom/tabletop/internal/journal"
	"github.com/cardroom/tabletop/internal/models"
	"github.com/cardroom/tabletop/internal/protocol"
	"github.com/cardroom/tabletop/internal/room"
)

// Routing errors surfaced to the issuer as Error events.
var (
	ErrAlreadyInRoom      = errors.New("already in a room")
	ErrNotInRoom          = errors.New("not in a room")
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

// codeAttempts bounds the random-code allocation retries before giving up
// with ErrCodeSpaceExhausted.
const codeAttempts = 32

// session binds a connection's sink to the player acting through it. The
// player id is only ever taken from here, never from a wire payload.
type session struct {
	playerID uuid.UUID
	name     string
	roomCode string
}

// Hub is the process-wide registry: room code to room, connection sink to
// session. It creates rooms on demand, dispatches every command to its
// target room under that room's lock, and retires rooms whose roster
// empties.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*room.Room
	sessions map[models.Sink]session

	log     *logrus.Logger
	journal *journal.Journal
}

// New returns an empty hub. The journal may be nil.
func New(log *logrus.Logger, j *journal.Journal) *Hub {
	return &Hub{
		rooms:    make(map[string]*room.Room),
		sessions: make(map[models.Sink]session),
		log:      log,
		journal:  j,
	}
}

// Dispatch routes a decoded command issued on the given connection sink.
// Application-level failures are answered on the sink as Error events; the
// connection is never closed from here.
func (h *Hub) Dispatch(sink models.Sink, cmd *protocol.Command) {
	switch cmd.Command {
	case protocol.CmdCreateGame:
		h.handleCreateGame(sink, cmd)
	case protocol.CmdJoinRoom:
		h.handleJoinRoom(sink, cmd)
	default:
		h.handleRoomCommand(sink, cmd)
	}
}

func (h *Hub) handleCreateGame(sink models.Sink, cmd *protocol.Command) {
	if cmd.PlayerName == "" {
		h.sendError(sink, "player_name is required")
		return
	}

	h.mu.Lock()
	if _, bound := h.sessions[sink]; bound {
		h.mu.Unlock()
		h.sendError(sink, ErrAlreadyInRoom.Error())
		return
	}
	code, err := h.allocateCodeLocked()
	if err != nil {
		h.mu.Unlock()
		h.sendError(sink, "no room codes available, try again later")
		return
	}
	p := models.NewPlayer(cmd.PlayerName, sink)
	rm := room.NewRoom(code, p)
	rm.OnEmpty = h.deleteRoom
	h.rooms[code] = rm
	h.sessions[sink] = session{playerID: p.ID, name: p.Name, roomCode: code}
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"room":   code,
		"player": p.ID,
		"name":   p.Name,
	}).Info("room created")
	h.record(code, p.ID, cmd.Command)
}

// allocateCodeLocked picks a free 4-digit code, "1000" through "9999".
// Caller must hold h.mu.
func (h *Hub) allocateCodeLocked() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := strconv.Itoa(1000 + rand.Intn(9000))
		if _, taken := h.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (h *Hub) handleJoinRoom(sink models.Sink, cmd *protocol.Command) {
	if cmd.RoomCode == "" {
		h.sendError(sink, "room_code is required")
		return
	}
	if cmd.PlayerName == "" {
		h.sendError(sink, "player_name is required")
		return
	}

	h.mu.Lock()
	if _, bound := h.sessions[sink]; bound {
		h.mu.Unlock()
		h.sendError(sink, ErrAlreadyInRoom.Error())
		return
	}
	rm, ok := h.rooms[cmd.RoomCode]
	if !ok {
		h.mu.Unlock()
		h.sendError(sink, fmt.Sprintf("room with code %s doesn't exist", cmd.RoomCode))
		return
	}
	p := models.NewPlayer(cmd.PlayerName, sink)
	h.sessions[sink] = session{playerID: p.ID, name: p.Name, roomCode: rm.Code}
	h.mu.Unlock()

	if !h.joinRoom(rm, p) {
		h.mu.Lock()
		delete(h.sessions, sink)
		h.mu.Unlock()
		h.sendError(sink, fmt.Sprintf("room with code %s doesn't exist", cmd.RoomCode))
		return
	}

	h.log.WithFields(logrus.Fields{
		"room":   rm.Code,
		"player": p.ID,
		"name":   p.Name,
	}).Info("player joined room")
	h.record(rm.Code, p.ID, cmd.Command)
}

// joinRoom commits a join against a room resolved from the registry. The
// room can retire between that lookup and taking its lock when its last
// member quits concurrently, so membership is re-checked under Mu; a retired
// room refuses the joiner.
func (h *Hub) joinRoom(rm *room.Room, p *models.Player) bool {
	rm.Mu.Lock()
	if rm.Retired() {
		rm.Mu.Unlock()
		return false
	}
	overflow := rm.Join(p)
	rm.Mu.Unlock()
	h.reap(rm, overflow)
	return true
}

func (h *Hub) handleRoomCommand(sink models.Sink, cmd *protocol.Command) {
	h.mu.Lock()
	sess, bound := h.sessions[sink]
	if !bound {
		h.mu.Unlock()
		h.sendError(sink, ErrNotInRoom.Error())
		return
	}
	if cmd.RoomCode != "" && cmd.RoomCode != sess.roomCode {
		_, exists := h.rooms[cmd.RoomCode]
		h.mu.Unlock()
		if !exists {
			h.sendError(sink, fmt.Sprintf("room with code %s doesn't exist", cmd.RoomCode))
		} else {
			h.sendError(sink, fmt.Sprintf("you are not a player in room %s", cmd.RoomCode))
		}
		return
	}
	rm, ok := h.rooms[sess.roomCode]
	if !ok {
		// Stale binding; the room was retired out from under the session.
		delete(h.sessions, sink)
		h.mu.Unlock()
		h.sendError(sink, fmt.Sprintf("room with code %s doesn't exist", sess.roomCode))
		return
	}
	h.mu.Unlock()

	var overflow []uuid.UUID
	switch cmd.Command {
	case protocol.CmdChat:
		if cmd.Message == "" {
			h.sendError(sink, "message is required")
			return
		}
		rm.Mu.Lock()
		overflow = rm.Chat(sess.playerID, cmd.Message)
		rm.Mu.Unlock()

	case protocol.CmdDrawCard:
		rm.Mu.Lock()
		overflow = rm.DrawCard(sess.playerID)
		rm.Mu.Unlock()

	case protocol.CmdToggleVisibilityOfCard:
		if cmd.Card == nil || cmd.Card.Suite == "" || cmd.Card.Value == "" {
			h.sendError(sink, "card with suite and value is required")
			return
		}
		rm.Mu.Lock()
		overflow = rm.ToggleVisibility(sess.playerID, cmd.Card.Suite, cmd.Card.Value)
		rm.Mu.Unlock()

	case protocol.CmdDiscardCard:
		if cmd.Card == nil || cmd.Card.Suite == "" || cmd.Card.Value == "" {
			h.sendError(sink, "card with suite and value is required")
			return
		}
		rm.Mu.Lock()
		overflow = rm.DiscardCard(sess.playerID, cmd.Card.Suite, cmd.Card.Value)
		rm.Mu.Unlock()

	case protocol.CmdResetDeck:
		rm.Mu.Lock()
		overflow = rm.ResetDeck()
		rm.Mu.Unlock()

	case protocol.CmdQuit:
		h.removePlayer(rm, sink, sess.playerID)
		h.record(rm.Code, sess.playerID, cmd.Command)
		return

	default:
		h.sendError(sink, fmt.Sprintf("unknown command %s", cmd.Command))
		return
	}

	h.reap(rm, overflow)
	h.record(rm.Code, sess.playerID, cmd.Command)
}

// Detach handles transport loss: it synthesizes a Quit for whichever player
// was bound to the sink, through the same removal path as the Quit command.
// Unbound connections detach silently.
func (h *Hub) Detach(sink models.Sink) {
	h.mu.Lock()
	sess, bound := h.sessions[sink]
	if !bound {
		h.mu.Unlock()
		return
	}
	rm := h.rooms[sess.roomCode]
	h.mu.Unlock()
	if rm == nil {
		h.mu.Lock()
		delete(h.sessions, sink)
		h.mu.Unlock()
		return
	}

	h.removePlayer(rm, sink, sess.playerID)
	h.log.WithFields(logrus.Fields{
		"room":   rm.Code,
		"player": sess.playerID,
	}).Info("player detached")
	h.record(rm.Code, sess.playerID, protocol.CmdQuit)
}

// removePlayer unbinds the session, removes the player from the room, and
// retires the room if it emptied; otherwise any recipients that overflowed
// during the Quit broadcast are reaped in turn.
func (h *Hub) removePlayer(rm *room.Room, sink models.Sink, playerID uuid.UUID) {
	h.mu.Lock()
	delete(h.sessions, sink)
	h.mu.Unlock()

	rm.Mu.Lock()
	overflow, _ := rm.RemovePlayer(playerID)
	empty := rm.Empty()
	if empty {
		rm.Retire()
	}
	rm.Mu.Unlock()

	if empty {
		if rm.OnEmpty != nil {
			rm.OnEmpty(rm.Code)
		}
		return
	}
	h.reap(rm, overflow)
}

// reap drops every player whose sink overflowed during fan-out, posting a
// synthesized Quit for each. Removing one slow player broadcasts a Quit
// that can itself overflow another stalled sink, so this iterates until the
// room settles or empties.
func (h *Hub) reap(rm *room.Room, overflow []uuid.UUID) {
	for len(overflow) > 0 {
		id := overflow[0]
		overflow = overflow[1:]

		h.log.WithFields(logrus.Fields{
			"room":   rm.Code,
			"player": id,
		}).Warn("outbound queue overflowed, dropping slow player")

		h.unbindPlayer(id)

		rm.Mu.Lock()
		more, removed := rm.RemovePlayer(id)
		empty := rm.Empty()
		if empty {
			rm.Retire()
		}
		rm.Mu.Unlock()

		if removed {
			overflow = append(overflow, more...)
			h.record(rm.Code, id, protocol.CmdQuit)
		}
		if empty {
			if rm.OnEmpty != nil {
				rm.OnEmpty(rm.Code)
			}
			return
		}
	}
}

// unbindPlayer drops the session registered for a player id, if any.
func (h *Hub) unbindPlayer(playerID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sink, sess := range h.sessions {
		if sess.playerID == playerID {
			delete(h.sessions, sink)
			return
		}
	}
}

// deleteRoom retires a room from the registry. Wired as every room's
// OnEmpty callback; always invoked outside the room lock.
func (h *Hub) deleteRoom(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[code]; ok {
		delete(h.rooms, code)
		h.log.WithField("room", code).Info("room retired")
	}
}

// Room looks up a live room by code.
func (h *Hub) Room(code string) (*room.Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[code]
	return rm, ok
}

// NumRooms returns the number of live rooms.
func (h *Hub) NumRooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// sendError answers the issuer, and only the issuer, with an Error event.
func (h *Hub) sendError(sink models.Sink, msg string) {
	ev, err := protocol.NewEvent(protocol.EventError).Error(msg).Build()
	if err != nil {
		h.log.Warnf("failed to build error event: %v", err)
		return
	}
	select {
	case sink <- protocol.Encode(ev):
	default:
		h.log.Warn("dropped error event on full sink")
	}
}

// record publishes a command to the journal, when one is configured.
func (h *Hub) record(roomCode string, playerID uuid.UUID, cmd protocol.CommandType) {
	h.journal.Publish(journal.Record{
		RoomCode:  roomCode,
		PlayerID:  playerID.String(),
		Command:   string(cmd),
		Timestamp: time.Now().Unix(),
	})
}
