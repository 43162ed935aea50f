package backend

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed reports that the transport closed mid-stream. The
// session controller treats it as an unexpected but non-fatal session end.
var ErrConnectionClosed = errors.New("backend connection closed")

// ConnectError wraps a failure to reach the remote service.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("backend connect: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// ProtocolError wraps a handshake timeout or a malformed protocol exchange.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("backend protocol: %v", e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// BusyError carries a remote capacity-exhaustion report.
type BusyError struct {
	Message string
}

func (e *BusyError) Error() string { return e.Message }

// BackendError carries a remote application-level failure.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return e.Message }

// Classify maps an error onto the taxonomy label used by metrics and logs.
func Classify(err error) string {
	var (
		connectErr  *ConnectError
		protocolErr *ProtocolError
		busyErr     *BusyError
		backendErr  *BackendError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &connectErr):
		return "connect"
	case errors.As(err, &protocolErr):
		return "protocol"
	case errors.As(err, &busyErr):
		return "busy"
	case errors.As(err, &backendErr):
		return "backend"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	default:
		return "other"
	}
}

// IsTerminal reports whether err must fail the session outright. A closed
// connection after streaming began is not terminal: the controller prefers a
// degraded final result over a hard failure once partial progress exists.
func IsTerminal(err error) bool {
	switch Classify(err) {
	case "connect", "protocol", "busy", "backend":
		return true
	default:
		return false
	}
}
