package stream

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/doorsync/doorsync-core/internal/door"
)

// Wire message type discriminants, as emitted by the controller.
const (
	msgTypeInitialStatus = "initial_status"
	msgTypeStatusUpdate  = "status_update"
)

// keepAlivePing is the literal text frame the controller answers with
// keepAlivePong. This predates protocol-level pings on the server side.
const (
	keepAlivePing = "ping"
	keepAlivePong = "pong"
)

// wireMessage is the superset of the two inbound JSON shapes.
//
//	{"type":"initial_status","doors":{"1":"closed","2":"open"}}
//	{"type":"status_update","door_id":1,"status":"opening"}
type wireMessage struct {
	Type   string            `json:"type"`
	Doors  map[string]string `json:"doors,omitempty"`
	DoorID *int              `json:"door_id,omitempty"`
	Status *string           `json:"status,omitempty"`
}

// DecodeFrame converts one raw text frame into a typed event.
//
// The codec is stateless and tolerant: unrecognised state strings map to
// door.StateUnknown, and the controller's literal "pong" keep-alive reply
// yields ErrKeepAliveFrame so callers can skip it quietly.
//
// Returns:
//   - door.Event: Decoded event, nil on error
//   - error: ErrKeepAliveFrame, ErrUnknownMessage or ErrMalformedFrame (wrapped)
func DecodeFrame(data []byte) (door.Event, error) {
	if string(data) == keepAlivePong {
		return nil, ErrKeepAliveFrame
	}

	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	switch msg.Type {
	case msgTypeInitialStatus:
		return decodeInitialStatus(msg)
	case msgTypeStatusUpdate:
		return decodeStatusUpdate(msg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

func decodeInitialStatus(msg wireMessage) (door.Event, error) {
	if msg.Doors == nil {
		return nil, fmt.Errorf("%w: initial_status without doors field", ErrMalformedFrame)
	}

	doors := make(map[door.ID]door.State, len(msg.Doors))
	for key, value := range msg.Doors {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: door key %q is not an integer", ErrMalformedFrame, key)
		}
		doors[door.ID(id)] = door.ParseState(value)
	}
	return door.InitialSnapshot{Doors: doors}, nil
}

func decodeStatusUpdate(msg wireMessage) (door.Event, error) {
	if msg.DoorID == nil {
		return nil, fmt.Errorf("%w: status_update without door_id field", ErrMalformedFrame)
	}
	if msg.Status == nil {
		return nil, fmt.Errorf("%w: status_update without status field", ErrMalformedFrame)
	}
	return door.StatusChanged{
		Door:   door.ID(*msg.DoorID),
		Status: door.ParseState(*msg.Status),
	}, nil
}
