// Package server defines internal message types and utility helpers that are
// reused across client and hub logic.
package server

import (
	"strings"

	"github.com/Tyrowin/lobby/internal/protocol"
)

// inboundEvent is a decoded client envelope queued for the hub, or the
// client's disconnect when disconnect is set.
type inboundEvent struct {
	client     *Client
	envelope   protocol.Envelope
	disconnect bool
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
