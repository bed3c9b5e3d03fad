package alerting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// NewAlert builds the breach payload for cfg. The reported value is the person
// count in general mode and the occupancy in tripwire mode.
func NewAlert(cfg models.SourceConfig, count, occupancy int, now time.Time) models.Alert {
	alert := models.Alert{
		ID:          uuid.New().String(),
		SourceID:    cfg.ID,
		SourceName:  cfg.Name,
		AreaName:    cfg.AreaName,
		Mode:        cfg.Mode,
		TriggeredAt: now,
	}

	if cfg.Mode == models.ModeTripwire {
		alert.Message = fmt.Sprintf("Occupancy threshold exceeded (%d/%d)", occupancy, cfg.OccupancyThreshold)
		alert.CurrentValue = float64(occupancy)
		alert.ThresholdValue = float64(cfg.OccupancyThreshold)
		return alert
	}

	alert.Message = fmt.Sprintf("Crowd threshold exceeded (%d/%d)", count, cfg.CrowdThreshold)
	alert.CurrentValue = float64(count)
	alert.ThresholdValue = float64(cfg.CrowdThreshold)
	return alert
}
