package http

import (
	"contact_game/internal/config"
	"contact_game/internal/game"
	"contact_game/internal/http/handlers"
	"contact_game/internal/http/middleware"
	"contact_game/internal/storage"
	"contact_game/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the HTTP surface: the websocket entry point, health
// and metrics. Everything game-related happens over the socket.
func RegisterRoutes(r *gin.Engine, store storage.Store, hub *ws.Hub, cfg *config.Config, version string) {
	repo := game.NewRepository(store, cfg.Timings)
	healthHandler := handlers.NewHealthHandler(store, version)

	r.GET("/healthz", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws",
		middleware.RedisRateLimit(cfg.WSRateLimit, cfg.WSRateWindow),
		ws.HandleWS(hub, repo, cfg.Timings),
	)
}
