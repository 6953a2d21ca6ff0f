package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"contact_game/internal/game"
)

func TestComposeGameMessage(t *testing.T) {
	msg, err := composeGameMessage(game.EventSetWord, map[string]any{
		"open_word":       "a",
		"game_is_started": true,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg, &decoded))
	require.Equal(t, "word", decoded["event"])
	data := decoded["data"].(map[string]any)
	require.Equal(t, "a", data["open_word"])
	require.Equal(t, true, data["game_is_started"])
	require.NotContains(t, decoded, "error")
}

func TestComposeErrorMessage(t *testing.T) {
	msg, err := composeErrorMessage(game.EventOffer, game.RuleError("Answer has already been guessed"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg, &decoded))
	require.Equal(t, true, decoded["error"])
	require.Equal(t, "offer", decoded["event"])
	data := decoded["data"].(map[string]any)
	require.Equal(t, "Answer has already been guessed", data["details"])
	require.Equal(t, "rule", data["error_type"])
}

func TestStringifyData(t *testing.T) {
	// shapes as they come out of json.Unmarshal into map[string]any
	out := stringifyData(map[string]any{
		"answer": "ant",
		"count":  float64(3),
		"flag":   true,
	})
	require.Equal(t, map[string]string{
		"answer": "ant",
		"count":  "3",
		"flag":   "true",
	}, out)
}
