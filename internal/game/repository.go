package game

import (
	"context"
	"log/slog"
	"time"

	"contact_game/internal/logger"
	"contact_game/internal/storage"
)

// Store key layout. Wire-exact: other processes sharing the store rely on it.
const (
	freeRoomKey            = "free_room"
	playersRoomPrefix      = "players:room:"
	offersRoomPrefix       = "offers:room:"
	processedAnswersPrefix = "offers:processed:room:"
	disconnectionPrefix    = "disconnection:"
	cleaningRoomPrefix     = "cleaning:room:"
)

// Repository holds the domain-specific operations over the record layer:
// the free-room slot, room-scoped lists and sets, disconnection markers and
// the delayed cleanup chain.
type Repository struct {
	store   storage.Store
	timings Timings
	log     *slog.Logger
}

func NewRepository(store storage.Store, timings Timings) *Repository {
	return &Repository{store: store, timings: timings, log: logger.With("component", "repository")}
}

func playersListKey(roomID string) string     { return playersRoomPrefix + roomID }
func offersListKey(roomID string) string      { return offersRoomPrefix + roomID }
func processedSetKey(roomID string) string    { return processedAnswersPrefix + roomID }
func disconnectionKey(playerID string) string { return disconnectionPrefix + playerID }
func cleaningKey(roomID string) string        { return cleaningRoomPrefix + roomID }

// Records //

func (r *Repository) GetPlayer(ctx context.Context, id string) (Player, error) {
	rec, err := storage.GetByID(ctx, r.store, playerSchema, id)
	if err != nil || rec == nil {
		return Player{}, err
	}
	return Player{rec}, nil
}

func (r *Repository) GetOrCreatePlayer(ctx context.Context, id string) (Player, bool, error) {
	rec, created, err := storage.GetOrCreate(ctx, r.store, playerSchema, id)
	if err != nil {
		return Player{}, false, err
	}
	return Player{rec}, created, nil
}

func (r *Repository) GetRoom(ctx context.Context, id string) (Room, error) {
	rec, err := storage.GetByID(ctx, r.store, roomSchema, id)
	if err != nil || rec == nil {
		return Room{}, err
	}
	return Room{rec}, nil
}

func (r *Repository) GetOffer(ctx context.Context, id string) (Offer, error) {
	rec, err := storage.GetByID(ctx, r.store, offerSchema, id)
	if err != nil || rec == nil {
		return Offer{}, err
	}
	return Offer{rec}, nil
}

func (r *Repository) CreateOffer(ctx context.Context, senderID, definition, answer string) (Offer, error) {
	rec, err := storage.Create(ctx, r.store, offerSchema, map[string]any{
		fieldSenderID:       senderID,
		fieldDefinition:     definition,
		fieldAnswerInternal: answer,
	})
	if err != nil {
		return Offer{}, err
	}
	return Offer{rec}, nil
}

// Matchmaking //

// GetFreeRoom returns the room currently accepting players, if any.
func (r *Repository) GetFreeRoom(ctx context.Context) (Room, error) {
	id, err := r.store.Get(ctx, freeRoomKey)
	if err != nil || id == "" {
		return Room{}, err
	}
	return r.GetRoom(ctx, id)
}

// CreateRoom makes a new room and points free_room at it. At most one room
// id lives under free_room at a time.
func (r *Repository) CreateRoom(ctx context.Context) (Room, error) {
	rec, err := storage.Create(ctx, r.store, roomSchema, nil)
	if err != nil {
		return Room{}, err
	}
	if err := r.store.Set(ctx, freeRoomKey, rec.ID(), 0); err != nil {
		return Room{}, err
	}
	return Room{rec}, nil
}

// UnfreeRoom removes the free_room slot once the room is full; the next
// joiner will create a fresh room.
func (r *Repository) UnfreeRoom(ctx context.Context, room Room) error {
	return r.store.Del(ctx, freeRoomKey)
}

// Room-scoped collections //

func (r *Repository) AppendPlayerToRoom(ctx context.Context, player Player, room Room) error {
	player.SetStr(fieldRoomID, room.ID())
	if err := player.Save(ctx); err != nil {
		return err
	}
	if err := room.IncrementNumberOfPlayers(ctx); err != nil {
		return err
	}
	return r.store.RPush(ctx, playersListKey(room.ID()), player.ID())
}

func (r *Repository) AppendOfferToRoom(ctx context.Context, offer Offer, room Room) error {
	return r.store.RPush(ctx, offersListKey(room.ID()), offer.ID())
}

// RoomPlayerIDs is the authoritative insertion-ordered player list.
func (r *Repository) RoomPlayerIDs(ctx context.Context, room Room) ([]string, error) {
	return r.store.LRange(ctx, playersListKey(room.ID()))
}

func (r *Repository) RoomOfferIDs(ctx context.Context, room Room) ([]string, error) {
	return r.store.LRange(ctx, offersListKey(room.ID()))
}

func (r *Repository) RoomOffers(ctx context.Context, room Room) ([]Offer, error) {
	ids, err := r.RoomOfferIDs(ctx, room)
	if err != nil {
		return nil, err
	}
	offers := make([]Offer, 0, len(ids))
	for _, id := range ids {
		offer, err := r.GetOffer(ctx, id)
		if err != nil {
			return nil, err
		}
		if offer.Record == nil {
			continue
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// ClearOffers drops every pending offer record of the room plus the list
// itself; called after a successful contact opens the next letter.
func (r *Repository) ClearOffers(ctx context.Context, room Room) error {
	ids, err := r.RoomOfferIDs(ctx, room)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, offerSchema.Key(id))
	}
	keys = append(keys, offersListKey(room.ID()))
	return r.store.Del(ctx, keys...)
}

// Processed answers //

// MarkOfferProcessed burns the offer's answer so the same word cannot be
// won twice in one game.
func (r *Repository) MarkOfferProcessed(ctx context.Context, offer Offer, room Room) error {
	return r.store.SAdd(ctx, processedSetKey(room.ID()), offer.AnswerInternal())
}

// CheckAnswerRelevance reports whether the answer has not been used yet.
func (r *Repository) CheckAnswerRelevance(ctx context.Context, answer string, room Room) (bool, error) {
	used, err := r.store.SIsMember(ctx, processedSetKey(room.ID()), answer)
	return !used, err
}

// Disconnection markers //

func (r *Repository) SetPlayerDisconnected(ctx context.Context, player Player) error {
	ttl := r.timings.DisconnectionAwaiting + disconnectionMarkerSlack
	return r.store.Set(ctx, disconnectionKey(player.ID()), "1", ttl)
}

func (r *Repository) CheckForDisconnectedPlayer(ctx context.Context, player Player) (bool, error) {
	return r.store.Exists(ctx, disconnectionKey(player.ID()))
}

func (r *Repository) DeletePlayerFromDisconnected(ctx context.Context, player Player) error {
	return r.store.Del(ctx, disconnectionKey(player.ID()))
}

// Cleanup //

// CleaningOrdered reports whether a cleanup is already pending for the room.
func (r *Repository) CleaningOrdered(ctx context.Context, room Room) (bool, error) {
	return r.store.Exists(ctx, cleaningKey(room.ID()))
}

// OrderRoomCleaning schedules removal of the room and everything it owns
// after the cleanup hold. The hold gives clients time to receive the final
// broadcast and lets reconnect checks observe the pending cleanup.
func (r *Repository) OrderRoomCleaning(room Room) {
	roomID := room.ID()

	go func() {
		ctx := context.Background()

		if err := r.store.Set(ctx, cleaningKey(roomID), "1", r.timings.RoomCleaningDelay+disconnectionMarkerSlack); err != nil {
			r.log.Error("room cleaning: set marker failed", "room", roomID, "error", err)
			return
		}

		time.Sleep(r.timings.RoomCleaningDelay)

		if err := r.cleanRoom(ctx, roomID); err != nil {
			r.log.Error("room cleaning failed", "room", roomID, "error", err)
			return
		}
		r.log.Info("room cleaned", "room", roomID)
	}()
}

func (r *Repository) cleanRoom(ctx context.Context, roomID string) error {
	keys := []string{
		roomSchema.Key(roomID),
		playersListKey(roomID),
		offersListKey(roomID),
		processedSetKey(roomID),
	}

	playerIDs, err := r.store.LRange(ctx, playersListKey(roomID))
	if err != nil {
		return err
	}
	for _, id := range playerIDs {
		keys = append(keys, playerSchema.Key(id), disconnectionKey(id))
	}

	offerIDs, err := r.store.LRange(ctx, offersListKey(roomID))
	if err != nil {
		return err
	}
	for _, id := range offerIDs {
		keys = append(keys, offerSchema.Key(id))
	}

	// Drop the free_room slot only if it still points here.
	if free, err := r.store.Get(ctx, freeRoomKey); err == nil && free == roomID {
		keys = append(keys, freeRoomKey)
	}

	if err := r.store.Del(ctx, keys...); err != nil {
		return err
	}
	return r.store.Del(ctx, cleaningKey(roomID))
}
