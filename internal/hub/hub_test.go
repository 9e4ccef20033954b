// internal/hub/hub_test.go
package hub

import (
	"encoding/json"
	"io"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/tabletop/internal/models"
	"github.com/cardroom/tabletop/internal/protocol"
	"github.com/cardroom/tabletop/internal/room"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(logger, nil)
}

func drainEvents(t *testing.T, sink models.Sink) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	for {
		select {
		case payload := <-sink:
			var ev protocol.Event
			require.NoError(t, json.Unmarshal(payload, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func lastEvent(t *testing.T, sink models.Sink) protocol.Event {
	t.Helper()
	events := drainEvents(t, sink)
	require.NotEmpty(t, events, "expected at least one event")
	return events[len(events)-1]
}

// createRoom creates a room through the dispatch path and returns its code.
func createRoom(t *testing.T, h *Hub, sink models.Sink, name string) string {
	t.Helper()
	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdCreateGame, PlayerName: name})
	ev := lastEvent(t, sink)
	require.Equal(t, protocol.EventGameCreated, ev.Action)
	require.NotEmpty(t, ev.Data.RoomCode)
	return ev.Data.RoomCode
}

func TestCreateGameAllocatesFourDigitCode(t *testing.T) {
	h := newTestHub()
	sink := make(models.Sink, 8)

	code := createRoom(t, h, sink, "A")

	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1000)
	assert.LessOrEqual(t, n, 9999)
	assert.Equal(t, 1, h.NumRooms())

	rm, ok := h.Room(code)
	require.True(t, ok)
	assert.Equal(t, 52, len(rm.DrawDeck))
	require.Len(t, rm.Players, 1)
	assert.Equal(t, "A", rm.Players[0].Name)
}

func TestCreateGameRequiresPlayerName(t *testing.T) {
	h := newTestHub()
	sink := make(models.Sink, 8)

	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdCreateGame})

	ev := lastEvent(t, sink)
	assert.Equal(t, protocol.EventError, ev.Action)
	assert.Equal(t, "player_name is required", ev.Data.Error)
	assert.Zero(t, h.NumRooms())
}

func TestJoinUnknownRoom(t *testing.T) {
	h := newTestHub()
	sink := make(models.Sink, 8)

	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: "4242", PlayerName: "B"})

	ev := lastEvent(t, sink)
	assert.Equal(t, protocol.EventError, ev.Action)
	assert.Equal(t, "room with code 4242 doesn't exist", ev.Data.Error)
}

func TestCommandsRequireSession(t *testing.T) {
	h := newTestHub()
	sink := make(models.Sink, 8)

	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdDrawCard, RoomCode: "1234"})

	ev := lastEvent(t, sink)
	assert.Equal(t, protocol.EventError, ev.Action)
	assert.Equal(t, "not in a room", ev.Data.Error)
}

func TestCreateWhileBoundIsRejected(t *testing.T) {
	h := newTestHub()
	sink := make(models.Sink, 8)
	createRoom(t, h, sink, "A")

	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdCreateGame, PlayerName: "A"})

	ev := lastEvent(t, sink)
	assert.Equal(t, protocol.EventError, ev.Action)
	assert.Equal(t, "already in a room", ev.Data.Error)
	assert.Equal(t, 1, h.NumRooms())
}

func TestJoinAndChatFlow(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 16)
	bSink := make(models.Sink, 16)
	code := createRoom(t, h, aSink, "A")

	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: code, PlayerName: "B"})
	joined := lastEvent(t, bSink)
	require.Equal(t, protocol.EventRoomJoined, joined.Action)
	require.Len(t, joined.Data.OtherPlayers, 1)
	assert.Equal(t, "A", joined.Data.OtherPlayers[0].Name)

	notice := lastEvent(t, aSink)
	assert.Equal(t, protocol.EventPlayerJoinedRoomInSession, notice.Action)
	assert.Equal(t, "B", notice.Data.PlayerName)

	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdChat, RoomCode: code, Message: "hi"})
	for _, sink := range []models.Sink{aSink, bSink} {
		ev := lastEvent(t, sink)
		assert.Equal(t, protocol.EventChat, ev.Action)
		assert.Equal(t, "B", ev.Data.PlayerName)
		assert.Equal(t, "hi", ev.Data.Message)
	}

	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdChat, RoomCode: code})
	ev := lastEvent(t, bSink)
	assert.Equal(t, protocol.EventError, ev.Action)
	assert.Equal(t, "message is required", ev.Data.Error)
}

func TestDrawCardRoutesThroughSession(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 16)
	bSink := make(models.Sink, 16)
	code := createRoom(t, h, aSink, "A")
	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: code, PlayerName: "B"})
	drainEvents(t, aSink)
	drainEvents(t, bSink)

	h.Dispatch(aSink, &protocol.Command{Command: protocol.CmdDrawCard, RoomCode: code})

	mine := lastEvent(t, aSink)
	require.Equal(t, protocol.EventCardDrawn, mine.Action)
	require.NotNil(t, mine.Data.Card)
	theirs := lastEvent(t, bSink)
	require.Equal(t, protocol.EventCardDrawn, theirs.Action)
	assert.Nil(t, theirs.Data.Card)

	rm, ok := h.Room(code)
	require.True(t, ok)
	assert.Len(t, rm.Players[0].Hand, 1)
	assert.Len(t, rm.DrawDeck, 51)
}

func TestWrongRoomCodeInCommand(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 16)
	createRoom(t, h, aSink, "A")

	h.Dispatch(aSink, &protocol.Command{Command: protocol.CmdDrawCard, RoomCode: "0000"})

	ev := lastEvent(t, aSink)
	assert.Equal(t, protocol.EventError, ev.Action)
	assert.Equal(t, "room with code 0000 doesn't exist", ev.Data.Error)
}

func TestQuitRetiresEmptyRoom(t *testing.T) {
	h := newTestHub()
	sink := make(models.Sink, 16)
	code := createRoom(t, h, sink, "A")

	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdQuit, RoomCode: code})

	assert.Zero(t, h.NumRooms())
	_, ok := h.Room(code)
	assert.False(t, ok)

	// The same connection can start over.
	drainEvents(t, sink)
	createRoom(t, h, sink, "A")
	assert.Equal(t, 1, h.NumRooms())
}

func TestDetachSynthesizesQuit(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 32)
	bSink := make(models.Sink, 32)
	code := createRoom(t, h, aSink, "A")
	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: code, PlayerName: "B"})
	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdDrawCard, RoomCode: code})
	drainEvents(t, aSink)

	h.Detach(bSink)

	ev := lastEvent(t, aSink)
	require.Equal(t, protocol.EventQuit, ev.Action)
	assert.Len(t, ev.Data.DiscardPile, 1, "the disconnected player's hand moves to the discard pile")
	assert.Equal(t, "B left the room", ev.Data.Message)

	rm, ok := h.Room(code)
	require.True(t, ok)
	assert.Len(t, rm.Players, 1)

	// Detaching twice, or detaching a connection that never bound, is a no-op.
	h.Detach(bSink)
	h.Detach(make(models.Sink, 1))
	assert.Equal(t, 1, h.NumRooms())
}

// Every recipient observes the events of one command strictly before the
// events of the next command in the same room.
func TestPerRecipientOrdering(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 32)
	bSink := make(models.Sink, 32)
	code := createRoom(t, h, aSink, "A")
	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: code, PlayerName: "B"})
	drainEvents(t, aSink)
	drainEvents(t, bSink)

	h.Dispatch(aSink, &protocol.Command{Command: protocol.CmdChat, RoomCode: code, Message: "first"})
	h.Dispatch(aSink, &protocol.Command{Command: protocol.CmdResetDeck, RoomCode: code})

	for _, sink := range []models.Sink{aSink, bSink} {
		events := drainEvents(t, sink)
		require.Len(t, events, 2)
		assert.Equal(t, protocol.EventChat, events[0].Action)
		assert.Equal(t, protocol.EventResetDeck, events[1].Action)
	}
}

// A joiner can resolve the room from the registry just before the last
// member quits and the room retires. The commit must then refuse the join
// rather than append to a roster the registry no longer reaches.
func TestJoinRefusedWhenRoomRetiresFirst(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 16)
	code := createRoom(t, h, aSink, "A")
	rm, ok := h.Room(code)
	require.True(t, ok)

	h.Dispatch(aSink, &protocol.Command{Command: protocol.CmdQuit, RoomCode: code})
	require.Zero(t, h.NumRooms())

	bSink := make(models.Sink, 16)
	b := models.NewPlayer("B", bSink)
	require.False(t, h.joinRoom(rm, b))

	rm.Mu.Lock()
	assert.True(t, rm.Retired())
	assert.Empty(t, rm.Players)
	rm.Mu.Unlock()
	assert.Empty(t, drainEvents(t, bSink), "a refused joiner must not see RoomJoined")
}

func TestCreateGameWhenCodeSpaceExhausted(t *testing.T) {
	h := newTestHub()
	h.mu.Lock()
	for i := 1000; i <= 9999; i++ {
		h.rooms[strconv.Itoa(i)] = &room.Room{}
	}
	_, err := h.allocateCodeLocked()
	h.mu.Unlock()
	require.ErrorIs(t, err, ErrCodeSpaceExhausted)

	sink := make(models.Sink, 8)
	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdCreateGame, PlayerName: "A"})
	ev := lastEvent(t, sink)
	assert.Equal(t, protocol.EventError, ev.Action)
	assert.Equal(t, "no room codes available, try again later", ev.Data.Error)

	// No session was bound for the failed create.
	h.Dispatch(sink, &protocol.Command{Command: protocol.CmdDrawCard})
	assert.Equal(t, "not in a room", lastEvent(t, sink).Data.Error)
}

// Dropping one slow player broadcasts a Quit that can overflow another
// stalled sink; the reap has to keep going until the room settles.
func TestReapCascadesThroughStalledSinks(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 32)
	bSink := make(models.Sink, 1)
	cSink := make(models.Sink, 1)
	code := createRoom(t, h, aSink, "A")

	// B and C each start with their single-slot queue filled by RoomJoined.
	// C's join notice overflows B; B's Quit broadcast overflows C in turn.
	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: code, PlayerName: "B"})
	h.Dispatch(cSink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: code, PlayerName: "C"})

	rm, ok := h.Room(code)
	require.True(t, ok)
	rm.Mu.Lock()
	require.Len(t, rm.Players, 1)
	assert.Equal(t, "A", rm.Players[0].Name)
	rm.Mu.Unlock()

	quits := 0
	for _, ev := range drainEvents(t, aSink) {
		if ev.Action == protocol.EventQuit {
			quits++
		}
	}
	assert.Equal(t, 2, quits, "both stalled players leave through the Quit path")

	// Their sessions are gone too.
	drainEvents(t, bSink)
	h.Dispatch(bSink, &protocol.Command{Command: protocol.CmdDrawCard})
	assert.Equal(t, "not in a room", lastEvent(t, bSink).Data.Error)
}

func TestSlowPlayerIsDropped(t *testing.T) {
	h := newTestHub()
	aSink := make(models.Sink, 32)
	slowSink := make(models.Sink, 1)
	code := createRoom(t, h, aSink, "A")

	// B's single-slot queue is filled by RoomJoined; the next broadcast
	// overflows it and B gets reaped.
	h.Dispatch(slowSink, &protocol.Command{Command: protocol.CmdJoinRoom, RoomCode: code, PlayerName: "B"})
	drainEvents(t, aSink)
	h.Dispatch(aSink, &protocol.Command{Command: protocol.CmdChat, RoomCode: code, Message: "hello?"})

	rm, ok := h.Room(code)
	require.True(t, ok)
	require.Len(t, rm.Players, 1)
	assert.Equal(t, "A", rm.Players[0].Name)

	events := drainEvents(t, aSink)
	require.NotEmpty(t, events)
	assert.Equal(t, protocol.EventQuit, events[len(events)-1].Action)
}
