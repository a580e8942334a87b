package service

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrGatewayFailure    = errors.New("gateway failure")
	ErrSessionNotFound   = errors.New("session not found")
	ErrStoreWriteFailure = errors.New("session store write failure")
)
