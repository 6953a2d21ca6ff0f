package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"contact_game/internal/game"
	"contact_game/internal/logger"
)

const actionTimeout = 5 * time.Second

// Session binds one connection to its game engine. It decodes inbound
// envelopes, serializes engine actions, owns the delayed-action timers and
// fans successful snapshots out to the room group.
type Session struct {
	client *Client
	hub    *Hub
	engine *game.Engine
	roomID string
	log    *slog.Logger

	// Engine actions never interleave within a session: inbound messages and
	// expired timers take this lock in turn.
	mu sync.Mutex
}

// StartSession joins the player to a game and emits the initial snapshot:
// a group "start" for fresh joins, a unicast "continue" for restored players
// so the rest of the room is not spammed.
func StartSession(ctx context.Context, repo *game.Repository, timings game.Timings, hub *Hub, client *Client) (*Session, error) {
	s := &Session{
		client: client,
		hub:    hub,
		log:    logger.With("component", "session", "user", client.Username),
	}

	engine, err := game.NewEngine(ctx, repo, timings, client.Username, s)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	s.roomID = engine.RoomID()

	hub.Join(s.roomID, client)

	snapshot, err := engine.InitialSnapshot(ctx)
	if err != nil {
		hub.Leave(s.roomID, client)
		return nil, err
	}
	msg, err := composeGameMessage(engine.InitialEvent(), snapshot)
	if err != nil {
		hub.Leave(s.roomID, client)
		return nil, err
	}

	if engine.Restored() {
		s.unicast(msg)
	} else {
		hub.Broadcast(s.roomID, msg)
	}
	return s, nil
}

// HandleMessage processes one inbound client envelope.
func (s *Session) HandleMessage(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn("malformed message", "error", err)
		return
	}
	event := game.Event(env.Event)
	if !event.Known() {
		s.sendError(event, game.ActionError("Unknown event"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	s.mu.Lock()
	snapshot, err := s.engine.PerformAction(ctx, event, stringifyData(env.Data))
	s.mu.Unlock()

	s.deliver(event, snapshot, err, true)
}

// OrderDelayedAction implements game.Delegate. The timer outlives the
// connection on purpose: a disconnection finish must fire after its session
// is gone, and handlers self-detect stale state and no-op.
func (s *Session) OrderDelayedAction(after time.Duration, event game.Event, args map[string]string) {
	time.AfterFunc(after, func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		s.mu.Lock()
		snapshot, err := s.engine.PerformScheduled(ctx, event, args)
		s.mu.Unlock()

		s.deliver(event, snapshot, err, false)
	})
}

// deliver routes an action result: snapshots are broadcast to the room,
// state queries go back to the requester only, domain errors go back to the
// offender only, the no-broadcast signal is swallowed, and internal errors
// kill the session.
func (s *Session) deliver(event game.Event, snapshot map[string]any, err error, fromClient bool) {
	if err == nil {
		msg, composeErr := composeGameMessage(event, snapshot)
		if composeErr != nil {
			s.log.Error("compose failed", "event", event, "error", composeErr)
			return
		}
		if fromClient && (event == game.EventRoomState || event == game.EventPlayerState) {
			s.unicast(msg)
			return
		}
		s.hub.Broadcast(s.roomID, msg)
		return
	}

	if errors.Is(err, game.ErrNoBroadcast) {
		return
	}

	var gameErr *game.Error
	if errors.As(err, &gameErr) {
		if fromClient {
			s.sendError(event, gameErr)
		}
		return
	}

	// Store failures are fatal to the session; the disconnection flow takes
	// over once the connection drops.
	s.log.Error("internal error, closing session", "event", event, "error", err)
	if fromClient {
		s.client.Close()
	}
}

func (s *Session) sendError(event game.Event, gameErr *game.Error) {
	msg, err := composeErrorMessage(event, gameErr)
	if err != nil {
		s.log.Error("compose error failed", "error", err)
		return
	}
	s.unicast(msg)
}

func (s *Session) unicast(msg []byte) {
	select {
	case s.client.Send <- msg:
	default:
		s.log.Warn("unicast: send buffer full, closing")
		s.client.Close()
	}
}

// Disconnect runs on socket close: arm the grace window and leave the
// group. Player records are not deleted here; cleanup is driven by the
// scheduled finish chain.
func (s *Session) Disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	s.mu.Lock()
	err := s.engine.DisconnectPlayer(ctx)
	s.mu.Unlock()
	if err != nil {
		s.log.Error("disconnect handling failed", "error", err)
	}

	s.hub.Leave(s.roomID, s.client)
}
