package stream

import "errors"

// Errors for the stream package.
var (
	// ErrMalformedFrame is returned when a frame cannot be decoded.
	// The caller drops the frame; a single bad frame never tears down
	// the session.
	ErrMalformedFrame = errors.New("stream: malformed frame")

	// ErrUnknownMessage is returned for frames whose type discriminant
	// is not recognised.
	ErrUnknownMessage = errors.New("stream: unknown message type")

	// ErrKeepAliveFrame marks the controller's literal "pong" reply to
	// our keep-alive. It carries no state and is silently skipped.
	ErrKeepAliveFrame = errors.New("stream: keep-alive frame")
)
