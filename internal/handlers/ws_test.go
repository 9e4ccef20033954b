// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/tabletop/internal/models"
)

// stubConn records writes and fails on demand, standing in for the websocket
// connection behind the write pump.
type stubConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	pingErr  error
}

func (s *stubConn) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, p)
	return nil
}

func (s *stubConn) Ping(context.Context) error {
	return s.pingErr
}

func (s *stubConn) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestWritePumpCancelsContextOnWriteFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := make(models.Sink, 1)
	sink <- []byte(`{"action":"Chat"}`)

	writePump(ctx, cancel, &stubConn{writeErr: errors.New("broken pipe")}, sink, newTestLogger())

	select {
	case <-ctx.Done():
	default:
		t.Fatal("a failed write must cancel the connection context")
	}
}

func TestWritePumpDrainsSinkThenStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := make(models.Sink, 2)
	sink <- []byte("a")
	sink <- []byte("b")
	conn := &stubConn{}

	done := make(chan struct{})
	go func() {
		writePump(ctx, cancel, conn, sink, newTestLogger())
		close(done)
	}()

	require.Eventually(t, func() bool { return conn.sent() == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, conn.writes)
}
