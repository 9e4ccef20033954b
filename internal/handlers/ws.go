// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cardroom/tabletop/internal/hub"
	"github.com/cardroom/tabletop/internal/middleware"
	"github.com/cardroom/tabletop/internal/models"
	"github.com/cardroom/tabletop/internal/protocol"
)

// WSHandler upgrades the connection and runs the read loop / write pump
// pair for its lifetime. Each connection owns one outbound sink channel of
// queueSize events; the hub and rooms enqueue onto it, the write pump
// drains it to the wire.
func WSHandler(logger *logrus.Logger, h *hub.Hub, queueSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		middleware.LogWebSocketConnect(logger, r.RemoteAddr)

		sink := make(models.Sink, queueSize)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, cancel, c, sink, logger)

		readErr := readLoop(ctx, c, sink, h, logger)

		// Transport is gone; post the synthetic Quit through the hub so the
		// room cleans up exactly as it would for an explicit Quit command.
		h.Detach(sink)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, readErr)
	}
}

// readLoop decodes incoming text frames and dispatches them. Application
// errors are answered on the sink and the loop keeps reading; only a
// transport failure or context cancellation ends it.
func readLoop(ctx context.Context, c *websocket.Conn, sink models.Sink, h *hub.Hub, logger *logrus.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			sendSinkError(sink, logger, "binary frames are not supported")
			continue
		}

		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			logger.Warnf("undecodable frame: %v", err)
			sendSinkError(sink, logger, err.Error())
			continue
		}

		h.Dispatch(sink, cmd)
	}
}

// wsConn is the part of the websocket connection the write pump uses.
type wsConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
}

// writePump drains the sink to the wire and keeps the connection alive with
// periodic pings. A failed write or ping ends the pump and cancels the
// connection context, unblocking the read loop so it detaches promptly
// instead of dispatching for a client that can no longer receive events.
func writePump(ctx context.Context, cancel context.CancelFunc, c wsConn, sink models.Sink, logger *logrus.Logger) {
	defer cancel()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sink:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				logger.Warnf("websocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("websocket ping failed, assuming disconnect: %v", err)
				return
			}
		}
	}
}

// sendSinkError enqueues an Error event for the issuer without blocking.
func sendSinkError(sink models.Sink, logger *logrus.Logger, msg string) {
	ev, err := protocol.NewEvent(protocol.EventError).Error(msg).Build()
	if err != nil {
		logger.Warnf("failed to build error event: %v", err)
		return
	}
	select {
	case sink <- protocol.Encode(ev):
	default:
		logger.Warn("dropped error event on full sink")
	}
}
