package connector

import (
	"github.com/goliatone/flaresync"
	goerrors "github.com/goliatone/go-errors"
)

// Status is the client observable state of one platform connection.
type Status string

const (
	StatusDisconnected     Status = "disconnected"
	StatusConnecting       Status = "connecting"
	StatusAwaitingCallback Status = "awaiting_callback"
	StatusExchanging       Status = "exchanging"
	StatusConnected        Status = "connected"
	StatusDisconnecting    Status = "disconnecting"
)

const textCodeInvalidTransition = "connector_invalid_status_transition"

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid connection status transition", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

// transitions lists the allowed moves. Reverting a failed operation to its
// prior status does not go through this table.
var transitions = map[Status]map[Status]struct{}{
	StatusDisconnected: {
		StatusConnecting: {},
		// a callback can land in a fresh process that never initiated
		StatusExchanging:    {},
		StatusConnected:     {},
		StatusDisconnecting: {},
	},
	StatusConnecting: {
		StatusAwaitingCallback: {},
		StatusDisconnected:     {},
	},
	StatusAwaitingCallback: {
		StatusExchanging:    {},
		StatusConnecting:    {},
		StatusDisconnecting: {},
		StatusDisconnected:  {},
	},
	StatusExchanging: {
		StatusConnected:    {},
		StatusDisconnected: {},
	},
	StatusConnected: {
		StatusConnecting:    {},
		StatusExchanging:    {},
		StatusDisconnecting: {},
		StatusDisconnected:  {},
	},
	StatusDisconnecting: {
		StatusDisconnected: {},
	},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Event is published to listeners each time a connector changes status.
type Event struct {
	Platform flaresync.Platform
	From     Status
	To       Status
	Profile  *flaresync.SocialProfile
}

// Listener receives connector events. Listeners run after the operation
// that produced the event has released the connector.
type Listener func(Event)
