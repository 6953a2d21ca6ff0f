package ws

import (
	"context"
	"net/http"
	"os"

	"contact_game/internal/game"
	"contact_game/internal/logger"
	"contact_game/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS upgrades the connection and starts a session for the
// authenticated player. Identity is the username carried in the token.
func HandleWS(hub *Hub, repo *game.Repository, timings game.Timings) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		username, err := service.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "error", err)
			return
		}

		// The request context dies once the handler returns; the session
		// outlives it.
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		client := NewClient(username, conn)
		session, err := StartSession(ctx, repo, timings, hub, client)
		if err != nil {
			logger.Error("session start failed", "user", username, "error", err)
			_ = conn.Close()
			return
		}

		go client.Run(session)
	}
}
