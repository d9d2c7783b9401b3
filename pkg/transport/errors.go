package transport

import "errors"

// Transport errors.
var (
	ErrNoLoop             = errors.New("event loop is required")
	ErrNoHandler          = errors.New("handler is required")
	ErrNotInitialized     = errors.New("transport not initialized")
	ErrAlreadyInitialized = errors.New("transport already initialized")
	ErrAlreadyConnecting  = errors.New("connect already called")
	ErrNotOpen            = errors.New("transport not open")
	ErrClosed             = errors.New("transport closed")
	ErrUnknownKind        = errors.New("unknown transport kind")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrNotBound           = errors.New("transport not bound")
	ErrAlreadyBound       = errors.New("transport already bound")
)
