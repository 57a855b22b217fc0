package wsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/roach88/relaykv/internal/envelope"
	"github.com/roach88/relaykv/internal/relay"
)

// Handler serves r over websockets. Subscriptions answer stored envelopes
// and end-of-stored-events; live streaming is not offered.
func Handler(r relay.Relay, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return websocket.Handler(func(conn *websocket.Conn) {
		serveConn(conn, r, logger)
	})
}

func serveConn(conn *websocket.Conn, r relay.Relay, logger *slog.Logger) {
	defer func() {
		_ = conn.Close()
	}()
	ctx := conn.Request().Context()

	reply := func(msg []any) bool {
		if err := websocket.JSON.Send(conn, msg); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return false
		}
		return true
	}

	for {
		var raw []json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		f, err := decodeFrame(raw)
		if err != nil {
			if !reply(encodeFrame(TypeNotice, err.Error())) {
				return
			}
			continue
		}

		switch f.Type {
		case TypeEvent:
			var env envelope.Envelope
			if err := f.arg(0, &env); err != nil {
				if !reply(encodeFrame(TypeNotice, err.Error())) {
					return
				}
				continue
			}
			accepted, message := true, ""
			if err := r.Publish(ctx, env); err != nil {
				accepted, message = false, "invalid: "+err.Error()
				logger.Info("envelope rejected", "id", env.ID, "error", err)
			}
			if !reply(encodeFrame(TypeOK, env.ID, accepted, message)) {
				return
			}

		case TypeReq:
			if !serveReq(ctx, f, r, reply) {
				return
			}

		case TypeClose:
			// Subscriptions end at EOSE; nothing is held open.

		default:
			if !reply(encodeFrame(TypeNotice, "unknown message type: "+f.Type)) {
				return
			}
		}
	}
}

func serveReq(ctx context.Context, f frame, r relay.Relay, reply func([]any) bool) bool {
	var subID string
	if err := f.arg(0, &subID); err != nil {
		return reply(encodeFrame(TypeNotice, err.Error()))
	}

	filters := make([]envelope.Filter, 0, len(f.Args)-1)
	for i := 1; i < len(f.Args); i++ {
		var filter envelope.Filter
		if err := f.arg(i, &filter); err != nil {
			return reply(encodeFrame(TypeClosed, subID, "invalid: "+err.Error()))
		}
		filters = append(filters, filter)
	}
	if len(filters) == 0 {
		filters = append(filters, envelope.Filter{})
	}

	seen := make(map[string]bool)
	for _, filter := range filters {
		envs, err := r.Query(ctx, filter)
		if err != nil {
			return reply(encodeFrame(TypeClosed, subID, "error: "+err.Error()))
		}
		for _, env := range envs {
			if seen[env.ID] {
				continue
			}
			seen[env.ID] = true
			if !reply(encodeFrame(TypeEvent, subID, env)) {
				return false
			}
		}
	}
	return reply(encodeFrame(TypeEOSE, subID))
}
