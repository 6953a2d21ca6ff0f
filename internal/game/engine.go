package game

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"contact_game/internal/logger"
)

// Delegate lets the synchronous engine schedule asynchronous work. The
// transport layer owns the timers; the engine only names the action.
type Delegate interface {
	OrderDelayedAction(after time.Duration, event Event, args map[string]string)
}

// Engine is the per-connection game brain. Actions are synchronous and
// straight-line; every action body starts from a fresh read of the player
// and room because other sessions share the same store.
type Engine struct {
	repo     *Repository
	timings  Timings
	delegate Delegate
	log      *slog.Logger

	username string
	roomID   string
	restored bool

	player Player
	room   Room
}

// NewEngine loads or creates the player and joins them to a game. A player
// known from a previous connection rejoins their room; a new player takes
// the free room or opens one.
func NewEngine(ctx context.Context, repo *Repository, timings Timings, username string, delegate Delegate) (*Engine, error) {
	e := &Engine{
		repo:     repo,
		timings:  timings,
		delegate: delegate,
		username: username,
		log:      logger.With("component", "engine", "user", username),
	}

	player, created, err := repo.GetOrCreatePlayer(ctx, username)
	if err != nil {
		return nil, err
	}
	e.player = player
	e.restored = !created

	if err := e.appendUserToGame(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Restored reports whether this connection resumed an existing player.
func (e *Engine) Restored() bool { return e.restored }

// RoomID is stable for the lifetime of the session.
func (e *Engine) RoomID() string { return e.roomID }

// InitialEvent is the event under which the first snapshot goes out.
func (e *Engine) InitialEvent() Event {
	if e.restored {
		return EventContinue
	}
	return EventStart
}

// InitialSnapshot is the room state sent right after the join.
func (e *Engine) InitialSnapshot(ctx context.Context) (map[string]any, error) {
	return e.roomSnapshot(ctx)
}

func (e *Engine) appendUserToGame(ctx context.Context) error {
	if e.restored && e.player.RoomID() != "" {
		room, err := e.repo.GetRoom(ctx, e.player.RoomID())
		if err != nil {
			return err
		}
		if room.Record != nil {
			e.room = room
			e.roomID = room.ID()
			// Cancels the pending disconnection finish; it rechecks this marker.
			if err := e.repo.DeletePlayerFromDisconnected(ctx, e.player); err != nil {
				return err
			}
			e.log.Info("player rejoined room", "room", e.roomID)
			return nil
		}
	}
	e.restored = false

	room, err := e.repo.GetFreeRoom(ctx)
	if err != nil {
		return err
	}
	if room.Record == nil {
		room, err = e.repo.CreateRoom(ctx)
		if err != nil {
			return err
		}
		e.log.Info("room created", "room", room.ID())
	}

	if err := e.repo.AppendPlayerToRoom(ctx, e.player, room); err != nil {
		return err
	}
	e.room = room
	e.roomID = room.ID()

	// The increment above is atomic, so exactly one joining session observes
	// the transition to a full room and runs the promotion.
	if room.NumberOfPlayers() == e.timings.PlayersPerRoom {
		return e.fillRoom(ctx, room)
	}
	return nil
}

// fillRoom elects the host, closes the room for joining and arms the game
// clock. Host election is deterministic: first player in insertion order.
func (e *Engine) fillRoom(ctx context.Context, room Room) error {
	playerIDs, err := e.repo.RoomPlayerIDs(ctx, room)
	if err != nil {
		return err
	}
	hostID := playerIDs[0]

	host, err := e.repo.GetPlayer(ctx, hostID)
	if err != nil {
		return err
	}
	if host.Record != nil {
		host.SetBool(fieldIsGameHost, true)
		if err := host.Save(ctx); err != nil {
			return err
		}
		if hostID == e.player.ID() {
			e.player = host
		}
	}

	room.SetStr(fieldGameHostID, hostID)
	room.SetBool(fieldIsFull, true)
	if err := room.Save(ctx); err != nil {
		return err
	}
	if err := e.repo.UnfreeRoom(ctx, room); err != nil {
		return err
	}

	gamesStarted.Inc()
	e.log.Info("room is full, game starts", "room", room.ID(), "host", hostID)

	e.delegate.OrderDelayedAction(e.timings.GameTimeLimit, EventFinish, map[string]string{
		"reason": FinishTimeExpired,
	})
	return nil
}

// PerformAction handles a client-originated event.
func (e *Engine) PerformAction(ctx context.Context, event Event, data map[string]string) (map[string]any, error) {
	if event == EventContactResult {
		return nil, RuleError("Contact result is resolved by the server")
	}
	return e.perform(ctx, event, data)
}

// PerformScheduled handles an event fired by a delayed-action timer.
func (e *Engine) PerformScheduled(ctx context.Context, event Event, data map[string]string) (map[string]any, error) {
	snapshot, err := e.perform(ctx, event, data)
	if err, ok := err.(*Error); ok {
		// A timer firing against moved-on state is not a client mistake.
		e.log.Debug("scheduled action dropped", "event", event, "details", err.Details)
		return nil, ErrNoBroadcast
	}
	return snapshot, err
}

func (e *Engine) perform(ctx context.Context, event Event, data map[string]string) (map[string]any, error) {
	actionsTotal.WithLabelValues(string(event)).Inc()

	// The in-memory records are caches; anything may have changed while this
	// session was suspended.
	player, err := e.repo.GetPlayer(ctx, e.username)
	if err != nil {
		return nil, err
	}
	room, err := e.repo.GetRoom(ctx, e.roomID)
	if err != nil {
		return nil, err
	}
	if player.Record == nil || room.Record == nil {
		// The cleanup chain already removed the game.
		return nil, ErrNoBroadcast
	}
	e.player, e.room = player, room

	snapshot, err := e.dispatch(ctx, event, data)
	if gameErr, ok := err.(*Error); ok {
		actionErrors.WithLabelValues(string(gameErr.Kind)).Inc()
	}
	return snapshot, err
}

func (e *Engine) dispatch(ctx context.Context, event Event, data map[string]string) (map[string]any, error) {
	switch event {
	case EventSetWord:
		return e.setWord(ctx, data["word"])
	case EventOffer:
		return e.offer(ctx, data["answer"], data["definition"])
	case EventOfferComment:
		return e.offerComment(ctx, data["offer_id"], data["text"])
	case EventCancelContact:
		return e.cancelContact(ctx, data["offer_id"], data["estimated_word"])
	case EventContact:
		return e.contact(ctx, data["offer_id"], data["estimated_word"])
	case EventContactResult:
		return e.contactResult(ctx)
	case EventFinish:
		return e.finish(ctx, data["reason"])
	case EventPlayerState:
		return e.player.PublicData(), nil
	case EventStart, EventContinue, EventRoomState:
		return e.roomSnapshot(ctx)
	default:
		return nil, ActionError("Unknown event")
	}
}

// roomSnapshot is the public projection of the room plus its offers; every
// successful room-scoped action broadcasts it.
func (e *Engine) roomSnapshot(ctx context.Context) (map[string]any, error) {
	data := e.room.PublicData()

	offers, err := e.repo.RoomOffers(ctx, e.room)
	if err != nil {
		return nil, err
	}
	offerData := make([]map[string]any, 0, len(offers))
	for _, offer := range offers {
		offerData = append(offerData, offer.PublicData())
	}
	data["offers"] = offerData
	return data, nil
}

func (e *Engine) setWord(ctx context.Context, word string) (map[string]any, error) {
	if !e.player.IsHost() {
		return nil, RuleError("Only the game host can set the word")
	}

	e.room.SetStr(fieldHostedWord, strings.ToLower(word))
	e.room.SetBool(fieldGameIsStarted, true)
	if err := e.room.Save(ctx); err != nil {
		return nil, err
	}
	e.log.Info("word set", "room", e.roomID)
	return e.roomSnapshot(ctx)
}

func (e *Engine) offer(ctx context.Context, answer, definition string) (map[string]any, error) {
	if e.player.IsHost() {
		return nil, RuleError("The game host cannot post offers")
	}
	answer = strings.ToLower(answer)

	relevant, err := e.repo.CheckAnswerRelevance(ctx, answer, e.room)
	if err != nil {
		return nil, err
	}
	if !relevant {
		return nil, ActionError("Answer has already been guessed")
	}
	if !strings.HasPrefix(answer, e.room.OpenWord()) {
		return nil, ActionError("Answer does not fit open letters")
	}

	offer, err := e.repo.CreateOffer(ctx, e.player.ID(), strings.ToLower(definition), answer)
	if err != nil {
		return nil, err
	}
	if err := e.repo.AppendOfferToRoom(ctx, offer, e.room); err != nil {
		return nil, err
	}
	return e.roomSnapshot(ctx)
}

func (e *Engine) offerComment(ctx context.Context, offerID, text string) (map[string]any, error) {
	offer, err := e.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Record == nil {
		return nil, ActionError("Offer does not exist")
	}
	if offer.IsCanceled() {
		return nil, RuleError("Cannot comment a canceled offer")
	}
	if offer.SenderID() != e.player.ID() {
		return nil, RuleError("Only the offer sender can add hints")
	}

	offer.AppendList(fieldHints, text)
	if err := offer.Save(ctx); err != nil {
		return nil, err
	}
	return e.roomSnapshot(ctx)
}

func (e *Engine) cancelContact(ctx context.Context, offerID, estimatedWord string) (map[string]any, error) {
	if !e.player.IsHost() {
		return nil, RuleError("Only the game host can cancel a contact")
	}
	offer, err := e.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Record == nil {
		return nil, ActionError("Offer does not exist")
	}
	if offer.IsCanceled() {
		return nil, RuleError("Offer is already canceled")
	}

	if offer.AnswerInternal() == strings.ToLower(estimatedWord) {
		offer.SetBool(fieldIsCanceled, true)
		if err := offer.Save(ctx); err != nil {
			return nil, err
		}
		if err := e.player.IncreasePoints(ctx, PointsContactCancel); err != nil {
			return nil, err
		}
		e.log.Info("contact canceled by host", "room", e.roomID, "offer", offerID)
	}
	return e.roomSnapshot(ctx)
}

func (e *Engine) contact(ctx context.Context, offerID, estimatedWord string) (map[string]any, error) {
	if e.room.ContactInProgress() {
		return nil, RuleError("Another contact is already in progress")
	}
	offer, err := e.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Record == nil {
		return nil, ActionError("Offer does not exist")
	}
	if offer.SenderID() == e.player.ID() {
		return nil, RuleError("Cannot contact your own offer")
	}
	if offer.IsCanceled() {
		return nil, RuleError("Offer is canceled")
	}

	estimatedWord = strings.ToLower(estimatedWord)
	if !strings.HasPrefix(estimatedWord, e.room.OpenWord()) {
		return nil, ActionError("Estimated word does not fit open letters")
	}

	offer.SetBool(fieldInProgress, true)
	offer.AppendList(fieldParticipants, e.player.ID())
	offer.SetStr(fieldEstimatedWord, estimatedWord)
	if err := offer.Save(ctx); err != nil {
		return nil, err
	}

	e.room.SetBool(fieldContactInProgress, true)
	e.room.SetStr(fieldContactOfferID, offer.ID())
	if err := e.room.Save(ctx); err != nil {
		return nil, err
	}

	e.log.Info("contact started", "room", e.roomID, "offer", offerID)
	e.delegate.OrderDelayedAction(e.timings.ContactAwaitingTime, EventContactResult, nil)
	return e.roomSnapshot(ctx)
}

// contactResult resolves the active contact after the host's cancel window.
func (e *Engine) contactResult(ctx context.Context) (map[string]any, error) {
	offer, err := e.repo.GetOffer(ctx, e.room.ContactOfferID())
	if err != nil {
		return nil, err
	}
	if offer.Record == nil {
		e.room.SetBool(fieldContactInProgress, false)
		e.room.SetStr(fieldContactOfferID, "")
		if err := e.room.Save(ctx); err != nil {
			return nil, err
		}
		return nil, ErrNoBroadcast
	}

	success := !offer.IsCanceled() && offer.EstimatedWord() == offer.AnswerInternal()
	offer.SetBool(fieldIsContacted, success)
	offer.SetBool(fieldInProgress, false)
	if err := offer.Save(ctx); err != nil {
		return nil, err
	}

	hostedWord := e.room.HostedWord()
	lettersLeft := len([]rune(hostedWord)) - e.room.OpenLetters()

	finishReason := ""
	switch {
	case offer.AnswerInternal() == hostedWord,
		success && offer.EstimatedWord() == hostedWord:
		// A non-host named the hosted word itself.
		finishReason = FinishPlayersWon
	case lettersLeft == 1:
		// The word survives fully revealed.
		finishReason = FinishHostWon
	}

	if success {
		if err := e.room.IncrementOpenLettersNumber(ctx); err != nil {
			return nil, err
		}
		if err := e.repo.MarkOfferProcessed(ctx, offer, e.room); err != nil {
			return nil, err
		}
		if err := e.repo.ClearOffers(ctx, e.room); err != nil {
			return nil, err
		}
		if err := e.awardContactPoints(ctx, offer); err != nil {
			return nil, err
		}
		e.log.Info("contact succeeded", "room", e.roomID, "offer", offer.ID(),
			"open_letters", e.room.OpenLetters())
	}

	e.room.SetBool(fieldContactInProgress, false)
	e.room.SetStr(fieldContactOfferID, "")
	if err := e.room.Save(ctx); err != nil {
		return nil, err
	}

	if finishReason != "" {
		e.delegate.OrderDelayedAction(finishAfterContactDelay, EventFinish, map[string]string{
			"reason": finishReason,
		})
	}
	return e.roomSnapshot(ctx)
}

// awardContactPoints credits the initiator and every earlier participant of
// a successful contact. The initiator is the last appended participant: the
// one whose estimated word resolved.
func (e *Engine) awardContactPoints(ctx context.Context, offer Offer) error {
	participants := offer.Participants()
	for i, participantID := range participants {
		points := int64(PointsContactParticipantSuccess)
		if i == len(participants)-1 {
			points = PointsContactInitiatorSuccess
		}
		participant, err := e.repo.GetPlayer(ctx, participantID)
		if err != nil {
			return err
		}
		if participant.Record == nil {
			continue
		}
		if err := participant.IncreasePoints(ctx, points); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, reason string) (map[string]any, error) {
	if e.room.GameIsFinished() {
		return nil, ErrNoBroadcast
	}

	winner := ""
	switch reason {
	case FinishDisconnection:
		// A reconnect within the grace window removed the marker; the game
		// goes on and this timer dies silently.
		present, err := e.repo.CheckForDisconnectedPlayer(ctx, e.player)
		if err != nil {
			return nil, err
		}
		if !present {
			e.log.Info("disconnection finish skipped, player returned", "room", e.roomID)
			return nil, ErrNoBroadcast
		}
		winner = "none"
	case FinishPlayersWon:
		winner = "players"
	case FinishHostWon, FinishTimeExpired:
		winner = e.room.GameHostID()
	default:
		return nil, ActionError("Unknown finish reason")
	}

	e.room.SetStr(fieldWinner, winner)
	e.room.SetStr(fieldFinishReason, reason)
	e.room.SetBool(fieldGameIsFinished, true)
	if err := e.room.Save(ctx); err != nil {
		return nil, err
	}

	gamesFinished.WithLabelValues(reason).Inc()
	e.log.Info("game finished", "room", e.roomID, "reason", reason, "winner", winner)

	e.repo.OrderRoomCleaning(e.room)
	return e.roomSnapshot(ctx)
}

// DisconnectPlayer runs when the transport closes. The game is not ended on
// the spot: a marker plus a delayed finish give the player a grace window to
// come back.
func (e *Engine) DisconnectPlayer(ctx context.Context) error {
	room, err := e.repo.GetRoom(ctx, e.roomID)
	if err != nil {
		return err
	}
	if room.Record == nil || !room.IsFull() || room.GameIsFinished() {
		return nil
	}
	cleaning, err := e.repo.CleaningOrdered(ctx, room)
	if err != nil {
		return err
	}
	if cleaning {
		return nil
	}

	if err := e.repo.SetPlayerDisconnected(ctx, e.player); err != nil {
		return err
	}
	e.log.Info("player disconnected, grace window armed", "room", e.roomID)

	e.delegate.OrderDelayedAction(e.timings.DisconnectionAwaiting, EventFinish, map[string]string{
		"reason": FinishDisconnection,
	})
	return nil
}
