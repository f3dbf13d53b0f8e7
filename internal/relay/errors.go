package relay

import "errors"

var (
	// ErrConnectionFailed indicates the initial broker connection did not
	// complete within the timeout.
	ErrConnectionFailed = errors.New("relay: connection failed")

	// ErrNotConnected indicates a publish was attempted while disconnected.
	ErrNotConnected = errors.New("relay: not connected to broker")

	// ErrPublishFailed indicates the broker did not acknowledge a publish.
	ErrPublishFailed = errors.New("relay: publish failed")
)
