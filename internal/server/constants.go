// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection sliding window for client WebSocket messages
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Deadline for a single broadcast write to one client
	WriteTimeout = 5 * time.Second

	// Largest accepted upload body
	MaxUploadBytes = 16 << 20

	// Response encodings
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
	contentTypeText    = "text/plain; charset=utf-8"
)
