package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"contact_game/internal/game"
	"contact_game/internal/service"
	"contact_game/internal/storage"
)

type wsEnvelope struct {
	Error bool           `json:"error"`
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

type wsFixture struct {
	t      *testing.T
	server *httptest.Server
	conns  map[string]*websocket.Conn
}

func newWSFixture(t *testing.T, timings game.Timings) *wsFixture {
	t.Helper()
	t.Setenv("JWT_SECRET", "e2e-test-secret")
	service.InitJWT()

	repo := game.NewRepository(storage.NewMemory(), timings)
	hub := NewHub()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", HandleWS(hub, repo, timings))

	f := &wsFixture{t: t, server: httptest.NewServer(r), conns: make(map[string]*websocket.Conn)}
	t.Cleanup(f.server.Close)
	return f
}

func e2eTimings() game.Timings {
	timings := game.DefaultTimings()
	timings.GameTimeLimit = 10 * time.Second
	timings.ContactAwaitingTime = 100 * time.Millisecond
	timings.DisconnectionAwaiting = 300 * time.Millisecond
	timings.RoomCleaningDelay = 50 * time.Millisecond
	return timings
}

func (f *wsFixture) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
}

func (f *wsFixture) dial(name string) *websocket.Conn {
	f.t.Helper()
	token, err := service.GenerateToken(name)
	require.NoError(f.t, err)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = conn.Close() })
	f.conns[name] = conn
	return conn
}

func (f *wsFixture) send(name, event string, data map[string]string) {
	f.t.Helper()
	payload, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(f.t, err)
	require.NoError(f.t, f.conns[name].WriteMessage(websocket.TextMessage, payload))
}

func (f *wsFixture) read(name string) wsEnvelope {
	f.t.Helper()
	conn := f.conns[name]
	require.NoError(f.t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(f.t, err)

	var env wsEnvelope
	require.NoError(f.t, json.Unmarshal(raw, &env))
	return env
}

// waitFor skips broadcasts until the wanted event arrives; pred may further
// narrow the match (nil accepts any payload).
func (f *wsFixture) waitFor(name, event string, pred func(wsEnvelope) bool) wsEnvelope {
	f.t.Helper()
	for i := 0; i < 20; i++ {
		env := f.read(name)
		if env.Event == event && (pred == nil || pred(env)) {
			return env
		}
	}
	f.t.Fatalf("%s: event %q never arrived", name, event)
	return wsEnvelope{}
}

func roomIsFull(env wsEnvelope) bool {
	full, _ := env.Data["is_full"].(bool)
	return full
}

func (f *wsFixture) fillRoom(names ...string) {
	f.t.Helper()
	for _, name := range names {
		f.dial(name)
	}
	for _, name := range names {
		env := f.waitFor(name, "start", roomIsFull)
		require.Equal(f.t, names[0], env.Data["game_host_id"], "first joiner hosts")
	}
}

func TestRejectsMissingAndBadTokens(t *testing.T) {
	f := newWSFixture(t, e2eTimings())

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(f.wsURL("not-a-token"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFullGameFlow(t *testing.T) {
	f := newWSFixture(t, e2eTimings())
	f.fillRoom("alice", "bob", "carol")

	f.send("alice", "word", map[string]string{"word": "apple"})
	for _, name := range []string{"alice", "bob", "carol"} {
		env := f.waitFor(name, "word", nil)
		require.Equal(t, true, env.Data["game_is_started"])
		require.Equal(t, "a", env.Data["open_word"])
	}

	f.send("bob", "offer", map[string]string{"answer": "ant", "definition": "small insect"})
	env := f.waitFor("carol", "offer", nil)
	offers := env.Data["offers"].([]any)
	require.Len(t, offers, 1)
	offer := offers[0].(map[string]any)
	require.Equal(t, "small insect", offer["definition"])
	require.NotContains(t, offer, "answer", "hidden until the contact resolves")
	offerID := offer["id"].(string)

	f.send("carol", "contact", map[string]string{"offer_id": offerID, "estimated_word": "ant"})
	env = f.waitFor("bob", "contact", nil)
	require.Equal(t, true, env.Data["contact_in_progress"])

	// resolution arrives on its own after the awaiting window
	for _, name := range []string{"alice", "bob", "carol"} {
		env = f.waitFor(name, "contact_result", nil)
		require.Equal(t, "ap", env.Data["open_word"])
		require.Equal(t, false, env.Data["contact_in_progress"])
		require.Empty(t, env.Data["offers"], "guessed offers are cleared")
	}
}

func TestStateQueriesAreUnicast(t *testing.T) {
	f := newWSFixture(t, e2eTimings())
	f.fillRoom("alice", "bob", "carol")

	f.send("bob", "player_state", nil)
	env := f.waitFor("bob", "player_state", nil)
	require.Equal(t, "bob", env.Data["id"])

	f.send("carol", "room_state", nil)
	env = f.waitFor("carol", "room_state", nil)
	require.Equal(t, true, env.Data["is_full"])

	// alice saw neither query; her next message is the word broadcast
	f.send("alice", "word", map[string]string{"word": "apple"})
	env = f.read("alice")
	require.Equal(t, "word", env.Event)
}

func TestRuleErrorGoesToOffenderOnly(t *testing.T) {
	f := newWSFixture(t, e2eTimings())
	f.fillRoom("alice", "bob", "carol")

	f.send("bob", "word", map[string]string{"word": "apple"})

	env := f.read("bob")
	require.True(t, env.Error)
	require.Equal(t, "word", env.Event)
	require.Equal(t, "rule", env.Data["error_type"])

	// the room only sees the host's real word, never bob's attempt
	f.send("alice", "word", map[string]string{"word": "pear"})
	env = f.waitFor("carol", "word", nil)
	require.Equal(t, "p", env.Data["open_word"])
}

func TestReconnectGetsContinue(t *testing.T) {
	f := newWSFixture(t, e2eTimings())
	f.fillRoom("alice", "bob", "carol")

	f.send("alice", "word", map[string]string{"word": "apple"})
	f.waitFor("alice", "word", nil)

	require.NoError(t, f.conns["alice"].Close())
	time.Sleep(50 * time.Millisecond)

	conn := f.dial("alice")
	_ = conn

	env := f.waitFor("alice", "continue", nil)
	require.Equal(t, true, env.Data["game_is_started"])
	require.Equal(t, "a", env.Data["open_word"])

	// grace window expires without a finish since alice came back
	time.Sleep(400 * time.Millisecond)
	f.send("bob", "offer", map[string]string{"answer": "axe", "definition": "chops wood"})
	f.waitFor("alice", "offer", nil)
}

func TestDisconnectFinishesGame(t *testing.T) {
	f := newWSFixture(t, e2eTimings())
	f.fillRoom("alice", "bob", "carol")

	f.send("alice", "word", map[string]string{"word": "apple"})
	f.waitFor("bob", "word", nil)

	require.NoError(t, f.conns["carol"].Close())

	for _, name := range []string{"alice", "bob"} {
		env := f.waitFor(name, "finish", nil)
		require.Equal(t, true, env.Data["game_is_finished"])
		require.Equal(t, "disconnection", env.Data["finish_reason"])
		require.Equal(t, "none", env.Data["winner"])
	}
}
