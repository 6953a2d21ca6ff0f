package game

import "errors"

// ErrorKind is echoed to the client in error envelopes.
type ErrorKind string

const (
	// KindRule marks a violation of the game rules.
	KindRule ErrorKind = "rule"
	// KindAction marks a structurally valid request whose inputs do not
	// match the current game state.
	KindAction ErrorKind = "action"
)

// Error is a domain error carried back to the offending client only. It
// never triggers a broadcast and never changes state.
type Error struct {
	Kind    ErrorKind
	Details string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Details }

func RuleError(details string) *Error   { return &Error{Kind: KindRule, Details: details} }
func ActionError(details string) *Error { return &Error{Kind: KindAction, Details: details} }

// ErrNoBroadcast lets a delayed handler complete without emitting any
// client-visible event, e.g. a disconnection finish that found the player
// reconnected.
var ErrNoBroadcast = errors.New("game: nothing to broadcast")
