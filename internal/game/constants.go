package game

import "time"

// Event names are wire-exact: they arrive in client envelopes and go out on
// every server broadcast.
type Event string

const (
	EventStart         Event = "start"
	EventContinue      Event = "continue"
	EventFinish        Event = "finish"
	EventRoomState     Event = "room_state"
	EventPlayerState   Event = "player_state"
	EventOffer         Event = "offer"
	EventOfferComment  Event = "offer_comment"
	EventSetWord       Event = "word"
	EventContact       Event = "contact"
	EventContactResult Event = "contact_result"
	EventCancelContact Event = "contact_cancel"
)

// Known reports whether an event may arrive from a client or a scheduler.
func (e Event) Known() bool {
	switch e {
	case EventStart, EventContinue, EventFinish, EventRoomState, EventPlayerState,
		EventOffer, EventOfferComment, EventSetWord, EventContact,
		EventContactResult, EventCancelContact:
		return true
	}
	return false
}

// Finish reasons.
const (
	FinishDisconnection = "disconnection"
	FinishTimeExpired   = "time_expired"
	FinishHostWon       = "host_won"
	FinishPlayersWon    = "players_won"
)

// Points awarded during the contact protocol.
const (
	PointsContactCancel             = 1
	PointsContactInitiatorSuccess   = 3
	PointsContactParticipantSuccess = 2
)

// Timing and sizing defaults; overridable through config.
const (
	DefaultPlayersPerRoom        = 3
	DefaultGameTimeLimit         = 300 * time.Second
	DefaultContactAwaitingTime   = 5 * time.Second
	DefaultDisconnectionAwaiting = 7 * time.Second
	DefaultRoomCleaningDelay     = 5 * time.Second

	// Pause between contact resolution and the finish it triggers, so clients
	// observe the resolved contact before the game ends.
	finishAfterContactDelay = 500 * time.Millisecond

	// Slack added to the disconnection marker TTL past the grace window; the
	// scheduled finish must still find the marker unless a reconnect removed it.
	disconnectionMarkerSlack = 5 * time.Second
)

// Timings parameterize every wall-clock rule of the engine. Tests shrink them.
type Timings struct {
	PlayersPerRoom        int
	GameTimeLimit         time.Duration
	ContactAwaitingTime   time.Duration
	DisconnectionAwaiting time.Duration
	RoomCleaningDelay     time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		PlayersPerRoom:        DefaultPlayersPerRoom,
		GameTimeLimit:         DefaultGameTimeLimit,
		ContactAwaitingTime:   DefaultContactAwaitingTime,
		DisconnectionAwaiting: DefaultDisconnectionAwaiting,
		RoomCleaningDelay:     DefaultRoomCleaningDelay,
	}
}
