package handlers

import (
	"context"
	"net/http"
	"time"

	"contact_game/internal/storage"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	store   storage.Store
	version string
}

func NewHealthHandler(store storage.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// Health reports process liveness and store reachability.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeStatus := "ok"
	status := http.StatusOK
	if _, err := h.store.Exists(ctx, "health:probe"); err != nil {
		storeStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  storeStatus,
		"version": h.version,
	})
}
