package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-hub/internal/services"
	"chat-hub/internal/telemetry"
)

type Resetter interface {
	ResetAll(ctx context.Context, patterns []string) (int, error)
}

// RegisterDebugRoutes wires the reset endpoint, which the resetter denies
// outside development, and the development-only audit probe.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, resetter Resetter, auth gin.HandlerFunc, enabled bool) {
	router.POST("/debug/reset", auth, resetHandler(emitter, resetter))

	if !enabled {
		return
	}
	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.AuditEntry{
			Text:      "audit test",
			RequestID: requestIDFromContext(c),
			UserID:    userIDFromContext(c),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func resetHandler(emitter *telemetry.AuditEmitter, resetter Resetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Patterns []string `json:"patterns"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		deleted, err := resetter.ResetAll(c.Request.Context(), req.Patterns)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, services.ErrOperationNotPermitted) {
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{"success": false, "message": err.Error()})
			return
		}

		emitter.Emit(c.Request.Context(), telemetry.AuditEntry{
			Level:     "WARN",
			Text:      "store reset",
			RequestID: requestIDFromContext(c),
			UserID:    userIDFromContext(c),
			Fields:    map[string]string{"deleted": strconv.Itoa(deleted)},
		})
		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
	}
}
