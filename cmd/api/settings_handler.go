package api

import (
	"net/http"

	"crono-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// ChannelStatus tells which notification channels are live
type ChannelStatus struct {
	Email  bool `json:"email"`
	Push   bool `json:"push"`
	PubSub bool `json:"pubsub"`
}

// ScanSettings is the effective scanner configuration
type ScanSettings struct {
	Enabled          bool          `json:"enabled"`
	Interval         string        `json:"interval"`
	Grace            string        `json:"grace"`
	Workers          int           `json:"workers"`
	OperationTimeout string        `json:"operation_timeout"`
	DispatchFailure  string        `json:"dispatch_failure"`
	Timezone         string        `json:"timezone"`
	Channels         ChannelStatus `json:"channels"`
}

// NewScanSettings snapshots cfg; channels reports what actually initialized
func NewScanSettings(cfg config.ScanConfig, channels ChannelStatus) ScanSettings {
	return ScanSettings{
		Enabled:          cfg.Enabled,
		Interval:         cfg.Interval.String(),
		Grace:            cfg.Grace.String(),
		Workers:          cfg.Workers,
		OperationTimeout: cfg.OperationTimeout.String(),
		DispatchFailure:  cfg.DispatchFailure,
		Timezone:         cfg.Timezone,
		Channels:         channels,
	}
}

// GetScanSettings returns the scanner configuration
// GET /api/settings/scan
func GetScanSettings(settings ScanSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, settings)
	}
}
