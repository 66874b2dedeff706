package delivery

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"crono-backend/internal/activity/scanner"
	"crono-backend/internal/activity/scheduler"
	"crono-backend/pkg/clock"
	"crono-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CycleTrigger runs one scan cycle on demand
type CycleTrigger interface {
	RunOnce(ctx context.Context) (scanner.CycleReport, error)
}

// ScanHandler exposes the manual overdue check for external cron jobs
type ScanHandler struct {
	trigger    CycleTrigger
	cronSecret string
	clock      clock.Clock
	logger     *zap.Logger
}

// NewScanHandler creates a ScanHandler. An empty cronSecret leaves the
// endpoint open.
func NewScanHandler(trigger CycleTrigger, cronSecret string, clk clock.Clock, l *zap.Logger) *ScanHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &ScanHandler{
		trigger:    trigger,
		cronSecret: cronSecret,
		clock:      clk,
		logger:     logger.OrNop(l).Named("scan_handler"),
	}
}

// CheckOverdue runs one cycle synchronously
// POST /api/notifications/check-overdue
func (h *ScanHandler) CheckOverdue(c *gin.Context) {
	if h.cronSecret != "" {
		want := "Bearer " + h.cronSecret
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), []byte(want)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}

	report, err := h.trigger.RunOnce(c.Request.Context())
	timestamp := h.clock.Now().UTC().Format(time.RFC3339Nano)

	switch {
	case errors.Is(err, scheduler.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"success":   false,
			"skipped":   true,
			"message":   "A scan cycle is already running",
			"timestamp": timestamp,
		})
	case err != nil:
		h.logger.Error("manual overdue check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to check overdue activities",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Overdue activity check completed",
			"timestamp": timestamp,
			"report":    report,
		})
	}
}
