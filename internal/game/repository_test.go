package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"contact_game/internal/storage"
)

func testRepo() *Repository {
	timings := DefaultTimings()
	timings.DisconnectionAwaiting = 50 * time.Millisecond
	timings.RoomCleaningDelay = 10 * time.Millisecond
	return NewRepository(storage.NewMemory(), timings)
}

func TestFreeRoomLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := testRepo()

	free, err := repo.GetFreeRoom(ctx)
	require.NoError(t, err)
	require.Nil(t, free.Record)

	room, err := repo.CreateRoom(ctx)
	require.NoError(t, err)

	free, err = repo.GetFreeRoom(ctx)
	require.NoError(t, err)
	require.NotNil(t, free.Record)
	require.Equal(t, room.ID(), free.ID())

	require.NoError(t, repo.UnfreeRoom(ctx, room))
	free, err = repo.GetFreeRoom(ctx)
	require.NoError(t, err)
	require.Nil(t, free.Record)

	// the room itself survives losing the slot
	again, err := repo.GetRoom(ctx, room.ID())
	require.NoError(t, err)
	require.NotNil(t, again.Record)
}

func TestAppendPlayerToRoom(t *testing.T) {
	ctx := context.Background()
	repo := testRepo()

	room, err := repo.CreateRoom(ctx)
	require.NoError(t, err)

	for _, name := range []string{"alice", "bob"} {
		player, _, err := repo.GetOrCreatePlayer(ctx, name)
		require.NoError(t, err)
		require.NoError(t, repo.AppendPlayerToRoom(ctx, player, room))
	}

	ids, err := repo.RoomPlayerIDs(ctx, room)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, ids, "join order must be preserved")

	room, err = repo.GetRoom(ctx, room.ID())
	require.NoError(t, err)
	require.Equal(t, 2, room.NumberOfPlayers())

	alice, err := repo.GetPlayer(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, room.ID(), alice.RoomID())
}

func TestProcessedAnswers(t *testing.T) {
	ctx := context.Background()
	repo := testRepo()

	room, err := repo.CreateRoom(ctx)
	require.NoError(t, err)
	offer, err := repo.CreateOffer(ctx, "bob", "small insect", "ant")
	require.NoError(t, err)
	require.NoError(t, repo.AppendOfferToRoom(ctx, offer, room))

	ok, err := repo.CheckAnswerRelevance(ctx, "ant", room)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.MarkOfferProcessed(ctx, offer, room))

	ok, err = repo.CheckAnswerRelevance(ctx, "ant", room)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = repo.CheckAnswerRelevance(ctx, "bee", room)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestClearOffers(t *testing.T) {
	ctx := context.Background()
	repo := testRepo()

	room, err := repo.CreateRoom(ctx)
	require.NoError(t, err)
	offer, err := repo.CreateOffer(ctx, "bob", "small insect", "ant")
	require.NoError(t, err)
	require.NoError(t, repo.AppendOfferToRoom(ctx, offer, room))

	require.NoError(t, repo.ClearOffers(ctx, room))

	ids, err := repo.RoomOfferIDs(ctx, room)
	require.NoError(t, err)
	require.Empty(t, ids)

	gone, err := repo.GetOffer(ctx, offer.ID())
	require.NoError(t, err)
	require.Nil(t, gone.Record)
}

func TestDisconnectionMarker(t *testing.T) {
	ctx := context.Background()
	repo := testRepo()

	player, _, err := repo.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)

	marked, err := repo.CheckForDisconnectedPlayer(ctx, player)
	require.NoError(t, err)
	require.False(t, marked)

	require.NoError(t, repo.SetPlayerDisconnected(ctx, player))
	marked, err = repo.CheckForDisconnectedPlayer(ctx, player)
	require.NoError(t, err)
	require.True(t, marked)

	require.NoError(t, repo.DeletePlayerFromDisconnected(ctx, player))
	marked, err = repo.CheckForDisconnectedPlayer(ctx, player)
	require.NoError(t, err)
	require.False(t, marked)
}

func TestRoomCleaning(t *testing.T) {
	ctx := context.Background()
	repo := testRepo()

	room, err := repo.CreateRoom(ctx)
	require.NoError(t, err)
	player, _, err := repo.GetOrCreatePlayer(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, repo.AppendPlayerToRoom(ctx, player, room))
	offer, err := repo.CreateOffer(ctx, "alice", "small insect", "ant")
	require.NoError(t, err)
	require.NoError(t, repo.AppendOfferToRoom(ctx, offer, room))
	require.NoError(t, repo.MarkOfferProcessed(ctx, offer, room))

	repo.OrderRoomCleaning(room)

	require.Eventually(t, func() bool {
		pending, err := repo.CleaningOrdered(ctx, room)
		return err == nil && pending
	}, time.Second, time.Millisecond, "cleanup marker should appear before the hold expires")

	require.Eventually(t, func() bool {
		r, err := repo.GetRoom(ctx, room.ID())
		return err == nil && r.Record == nil
	}, time.Second, 5*time.Millisecond)

	gonePlayer, err := repo.GetPlayer(ctx, "alice")
	require.NoError(t, err)
	require.Nil(t, gonePlayer.Record)

	goneOffer, err := repo.GetOffer(ctx, offer.ID())
	require.NoError(t, err)
	require.Nil(t, goneOffer.Record)

	free, err := repo.GetFreeRoom(ctx)
	require.NoError(t, err)
	require.Nil(t, free.Record, "free_room pointing at a cleaned room must be dropped")

	pending, err := repo.CleaningOrdered(ctx, room)
	require.NoError(t, err)
	require.False(t, pending, "marker is removed once cleanup finishes")
}
