package gateway

import "errors"

var (
	ErrGatewayTimeout           = errors.New("azul gateway timeout")
	ErrGatewayUnreachable       = errors.New("azul gateway unreachable")
	ErrGatewayMalformedResponse = errors.New("azul gateway malformed response")
)
