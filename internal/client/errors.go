package client

import "errors"

// Sentinel errors for agent operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, client.ErrNotConnected) {
//	    // Buffer locally, retry later
//	}
var (
	// ErrNotConnected indicates the broker connection is not established.
	ErrNotConnected = errors.New("client: not connected")

	// ErrAlreadyConnected indicates Connect was called on a live client.
	ErrAlreadyConnected = errors.New("client: already connected")

	// ErrConnectFailed indicates the broker connection attempt failed.
	ErrConnectFailed = errors.New("client: connect failed")
)
