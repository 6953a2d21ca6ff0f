package game

import (
	"context"

	"contact_game/internal/storage"
)

// Hash field names double as wire names in public projections.
const (
	fieldID = "id"

	fieldIsGameHost = "is_game_host"
	fieldRoomID     = "room_id"
	fieldPoints     = "points"

	fieldSenderID       = "sender_id"
	fieldDefinition     = "definition"
	fieldAnswer         = "answer"
	fieldAnswerInternal = "answer_internal"
	fieldHints          = "hints"
	fieldIsCanceled     = "is_canceled"
	fieldIsContacted    = "is_contacted"
	fieldInProgress     = "in_progress"
	fieldParticipants   = "participants"
	fieldEstimatedWord  = "estimated_word"

	fieldNumberOfPlayers   = "number_of_players"
	fieldGameHostID        = "game_host_id"
	fieldIsFull            = "is_full"
	fieldGameIsStarted     = "game_is_started"
	fieldGameIsFinished    = "game_is_finished"
	fieldWinner            = "winner"
	fieldFinishReason      = "finish_reason"
	fieldHostedWord        = "hosted_word"
	fieldOpenWord          = "open_word"
	fieldOpenLettersNumber = "open_letters_number"
	fieldContactInProgress = "contact_in_progress"
	fieldContactOfferID    = "contact_offer_id"
)

var playerSchema = storage.NewSchema("player",
	storage.Field{Name: fieldID, Kind: storage.FieldID},
	storage.Field{Name: fieldIsGameHost, Kind: storage.FieldBool},
	storage.Field{Name: fieldRoomID, Kind: storage.FieldRelation},
	storage.Field{Name: fieldPoints, Kind: storage.FieldInt},
)

var offerSchema = storage.NewSchema("offer",
	storage.Field{Name: fieldID, Kind: storage.FieldID},
	storage.Field{Name: fieldSenderID, Kind: storage.FieldRelation},
	storage.Field{Name: fieldDefinition, Kind: storage.FieldString},
	storage.Field{Name: fieldAnswer, Kind: storage.FieldCalculated, Null: true, Compute: openAnswer},
	storage.Field{Name: fieldAnswerInternal, Kind: storage.FieldString, Internal: true},
	storage.Field{Name: fieldHints, Kind: storage.FieldList},
	storage.Field{Name: fieldIsCanceled, Kind: storage.FieldBool},
	storage.Field{Name: fieldIsContacted, Kind: storage.FieldBool},
	storage.Field{Name: fieldInProgress, Kind: storage.FieldBool},
	storage.Field{Name: fieldParticipants, Kind: storage.FieldList},
	storage.Field{Name: fieldEstimatedWord, Kind: storage.FieldString},
)

var roomSchema = storage.NewSchema("room",
	storage.Field{Name: fieldID, Kind: storage.FieldID},
	storage.Field{Name: fieldNumberOfPlayers, Kind: storage.FieldInt},
	storage.Field{Name: fieldGameHostID, Kind: storage.FieldString},
	storage.Field{Name: fieldIsFull, Kind: storage.FieldBool},
	storage.Field{Name: fieldGameIsStarted, Kind: storage.FieldBool},
	storage.Field{Name: fieldGameIsFinished, Kind: storage.FieldBool},
	storage.Field{Name: fieldWinner, Kind: storage.FieldString},
	storage.Field{Name: fieldFinishReason, Kind: storage.FieldString},
	storage.Field{Name: fieldHostedWord, Kind: storage.FieldString, Internal: true},
	storage.Field{Name: fieldOpenWord, Kind: storage.FieldCalculated, Compute: openWord},
	storage.Field{Name: fieldOpenLettersNumber, Kind: storage.FieldInt, Internal: true, DefaultInt: 1},
	storage.Field{Name: fieldContactInProgress, Kind: storage.FieldBool},
	storage.Field{Name: fieldContactOfferID, Kind: storage.FieldString, Internal: true},
)

// openAnswer hides the offer's candidate word until the contact protocol has
// resolved it one way or the other.
func openAnswer(r *storage.Record) (string, bool) {
	if !r.Bool(fieldIsContacted) && !r.Bool(fieldIsCanceled) {
		return "", false
	}
	return r.Str(fieldAnswerInternal), true
}

// openWord is the prefix of the hosted word currently visible to everyone.
// Code-point indexing keeps non-ASCII words playable.
func openWord(r *storage.Record) (string, bool) {
	word := []rune(r.Str(fieldHostedWord))
	if len(word) == 0 {
		return "", true
	}
	n := int(r.Int(fieldOpenLettersNumber))
	if n > len(word) {
		n = len(word)
	}
	return string(word[:n]), true
}

type Player struct{ *storage.Record }

func (p Player) IsHost() bool   { return p.Bool(fieldIsGameHost) }
func (p Player) RoomID() string { return p.Str(fieldRoomID) }
func (p Player) Points() int64  { return p.Int(fieldPoints) }

func (p Player) IncreasePoints(ctx context.Context, by int64) error {
	return p.IncrementField(ctx, fieldPoints, by)
}

type Offer struct{ *storage.Record }

func (o Offer) SenderID() string       { return o.Str(fieldSenderID) }
func (o Offer) AnswerInternal() string { return o.Str(fieldAnswerInternal) }
func (o Offer) EstimatedWord() string  { return o.Str(fieldEstimatedWord) }
func (o Offer) IsCanceled() bool       { return o.Bool(fieldIsCanceled) }
func (o Offer) IsContacted() bool      { return o.Bool(fieldIsContacted) }
func (o Offer) Participants() []string { return o.List(fieldParticipants) }

type Room struct{ *storage.Record }

func (r Room) NumberOfPlayers() int    { return int(r.Int(fieldNumberOfPlayers)) }
func (r Room) GameHostID() string      { return r.Str(fieldGameHostID) }
func (r Room) IsFull() bool            { return r.Bool(fieldIsFull) }
func (r Room) GameIsStarted() bool     { return r.Bool(fieldGameIsStarted) }
func (r Room) GameIsFinished() bool    { return r.Bool(fieldGameIsFinished) }
func (r Room) HostedWord() string      { return r.Str(fieldHostedWord) }
func (r Room) OpenWord() string        { return r.Str(fieldOpenWord) }
func (r Room) OpenLetters() int        { return int(r.Int(fieldOpenLettersNumber)) }
func (r Room) ContactInProgress() bool { return r.Bool(fieldContactInProgress) }
func (r Room) ContactOfferID() string  { return r.Str(fieldContactOfferID) }

func (r Room) IncrementNumberOfPlayers(ctx context.Context) error {
	return r.IncrementField(ctx, fieldNumberOfPlayers, 1)
}

func (r Room) IncrementOpenLettersNumber(ctx context.Context) error {
	return r.IncrementField(ctx, fieldOpenLettersNumber, 1)
}
