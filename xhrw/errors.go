package xhrw

import "errors"

var (
	// ErrAlreadyInstalled a different primitive was offered to an installed interceptor
	ErrAlreadyInstalled = errors.New("interceptor already installed on another host")
	// ErrNotInstalled the interceptor has not wrapped a primitive yet
	ErrNotInstalled = errors.New("interceptor not installed")
	// ErrInvalidState request handle is not in a state that allows the call
	ErrInvalidState  = errors.New("invalid request state")
	ErrUnknownFormat = errors.New("unknown report format")
)
