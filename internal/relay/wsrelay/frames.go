// Package wsrelay speaks the relay wire protocol over websockets.
//
// Every message is a JSON array whose first element names its type:
//
//	client -> relay   ["EVENT", <envelope>]
//	                  ["REQ", <sub id>, <filter>...]
//	                  ["CLOSE", <sub id>]
//	relay -> client   ["OK", <envelope id>, <accepted>, <message>]
//	                  ["EVENT", <sub id>, <envelope>]
//	                  ["EOSE", <sub id>]
//	                  ["CLOSED", <sub id>, <message>]
//	                  ["NOTICE", <message>]
//
// Client dials a remote relay and implements relay.Relay. Handler exposes
// any relay.Relay to websocket clients.
package wsrelay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types.
const (
	TypeEvent  = "EVENT"
	TypeReq    = "REQ"
	TypeClose  = "CLOSE"
	TypeOK     = "OK"
	TypeEOSE   = "EOSE"
	TypeClosed = "CLOSED"
	TypeNotice = "NOTICE"
)

var errMalformed = errors.New("malformed message")

// frame is a decoded wire message: its type and remaining elements.
type frame struct {
	Type string
	Args []json.RawMessage
}

func decodeFrame(raw []json.RawMessage) (frame, error) {
	if len(raw) == 0 {
		return frame{}, fmt.Errorf("%w: empty array", errMalformed)
	}
	var typ string
	if err := json.Unmarshal(raw[0], &typ); err != nil {
		return frame{}, fmt.Errorf("%w: type: %v", errMalformed, err)
	}
	return frame{Type: typ, Args: raw[1:]}, nil
}

// arg decodes the i-th argument into v.
func (f frame) arg(i int, v any) error {
	if i >= len(f.Args) {
		return fmt.Errorf("%w: %s missing argument %d", errMalformed, f.Type, i+1)
	}
	if err := json.Unmarshal(f.Args[i], v); err != nil {
		return fmt.Errorf("%w: %s argument %d: %v", errMalformed, f.Type, i+1, err)
	}
	return nil
}

func encodeFrame(typ string, args ...any) []any {
	return append([]any{typ}, args...)
}
