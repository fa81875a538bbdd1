package realtime

import "errors"

var (
	ErrBridgeStopped     = errors.New("realtime: bridge is stopped")
	ErrHandlerPanic      = errors.New("realtime: panic in topic handler")
	ErrHandlerTimeout    = errors.New("realtime: topic handler timed out")
	ErrMalformedEnvelope = errors.New("realtime: malformed event envelope")
	ErrUnsupportedEvent  = errors.New("realtime: unsupported event")
	ErrInvalidBrokerMode = errors.New("realtime: invalid broker mode")
	ErrNilTopicHandler   = errors.New("realtime: topic handler is nil")
)
