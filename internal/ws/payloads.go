package ws

import (
	"encoding/json"
	"fmt"

	"contact_game/internal/game"
)

// Envelope is the shared shape of every client and server message.
type Envelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

type gameMessage struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

type errorMessage struct {
	Error bool           `json:"error"`
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func composeGameMessage(event game.Event, data map[string]any) ([]byte, error) {
	return json.Marshal(gameMessage{Event: string(event), Data: data})
}

func composeErrorMessage(event game.Event, gameErr *game.Error) ([]byte, error) {
	return json.Marshal(errorMessage{
		Error: true,
		Event: string(event),
		Data: map[string]any{
			"details":    gameErr.Details,
			"error_type": string(gameErr.Kind),
		},
	})
}

// stringifyData flattens a decoded JSON object into the string map the
// engine consumes. Game inputs are all strings on the wire; anything else
// is formatted.
func stringifyData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
