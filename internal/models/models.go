package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
)

// ErrInvalidConfig is returned by SourceConfig.Validate.
var ErrInvalidConfig = errors.New("invalid source config")

type Mode string

const (
	ModeGeneral  Mode = "general"
	ModeTripwire Mode = "tripwire"
)

// SourceConfig is the configuration of one monitored source.
type SourceConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	AreaName string `json:"area_name"`
	// Source describes where frames come from, e.g. s3://frames/cam-1 or
	// http://10.0.0.5/snapshot.jpg.
	Source string `json:"source"`
	Mode   Mode   `json:"mode"`

	// General mode
	CrowdThreshold int     `json:"crowd_threshold"`
	AreaSqMeters   float64 `json:"area_sq_meters"`

	// Tripwire mode
	OccupancyThreshold int  `json:"occupancy_threshold"`
	CurrentOccupancy   int  `json:"current_occupancy"`
	TripwireX1         *int `json:"tripwire_line_x1,omitempty"`
	TripwireY1         *int `json:"tripwire_line_y1,omitempty"`
	TripwireX2         *int `json:"tripwire_line_x2,omitempty"`
	TripwireY2         *int `json:"tripwire_line_y2,omitempty"`

	IsActive  bool     `json:"is_active"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Validate checks the fields every mode depends on. A tripwire source without
// a complete line is valid, it simply never counts crossings.
func (c SourceConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidConfig)
	}

	switch c.Mode {
	case ModeGeneral, ModeTripwire:
	default:
		return fmt.Errorf("%w: source %s: unknown mode %q", ErrInvalidConfig, c.ID, c.Mode)
	}

	if c.CrowdThreshold < 0 || c.OccupancyThreshold < 0 {
		return fmt.Errorf("%w: source %s: negative threshold", ErrInvalidConfig, c.ID)
	}
	if c.AreaSqMeters < 0 {
		return fmt.Errorf("%w: source %s: negative area", ErrInvalidConfig, c.ID)
	}

	return nil
}

// Tripwire returns the configured line when all four endpoints are set.
func (c SourceConfig) Tripwire() (geometry.Segment, bool) {
	if c.TripwireX1 == nil || c.TripwireY1 == nil || c.TripwireX2 == nil || c.TripwireY2 == nil {
		return geometry.Segment{}, false
	}

	return geometry.Segment{
		A: geometry.Point{X: float64(*c.TripwireX1), Y: float64(*c.TripwireY1)},
		B: geometry.Point{X: float64(*c.TripwireX2), Y: float64(*c.TripwireY2)},
	}, true
}

// Density is count per square meter, 0 when no area is configured.
func (c SourceConfig) Density(count int) float64 {
	if c.AreaSqMeters <= 0 {
		return 0
	}
	return float64(count) / c.AreaSqMeters
}

// Breached reports whether the mode's metric is over its threshold.
func (c SourceConfig) Breached(count, occupancy int) bool {
	switch c.Mode {
	case ModeGeneral:
		return count > c.CrowdThreshold
	case ModeTripwire:
		return occupancy > c.OccupancyThreshold
	default:
		return false
	}
}

// Observation is one tracked object in one frame.
type Observation struct {
	TrackID  int64          `json:"track_id"`
	Centroid geometry.Point `json:"centroid"`
}

// Frame is a single encoded image pulled from a frame source.
type Frame struct {
	Index      int
	Data       []byte
	CapturedAt time.Time
}

// LiveStatus is the latest known state of a source, together with the config
// fields a dashboard needs to present it.
type LiveStatus struct {
	SourceID         string    `json:"source_id"`
	PersonCount      int       `json:"person_count"`
	Density          float64   `json:"density"`
	CurrentOccupancy int       `json:"current_occupancy"`
	Timestamp        time.Time `json:"timestamp"`
	IsOverThreshold  bool      `json:"is_over_threshold"`

	Name               string   `json:"name"`
	AreaName           string   `json:"area_name"`
	Mode               Mode     `json:"mode"`
	CrowdThreshold     int      `json:"crowd_threshold"`
	OccupancyThreshold int      `json:"occupancy_threshold"`
	IsActive           bool     `json:"is_active"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
}

// SummaryRecord is the periodic log row written by a source loop.
type SummaryRecord struct {
	SourceID    string    `json:"source_id"`
	AreaName    string    `json:"area_name"`
	Mode        Mode      `json:"mode"`
	PersonCount int       `json:"person_count"`
	Density     float64   `json:"density"`
	EntryCount  int       `json:"entry_count"`
	ExitCount   int       `json:"exit_count"`
	Occupancy   int       `json:"occupancy"`
	Timestamp   time.Time `json:"timestamp"`
}

// Alert is the payload handed to the notification collaborator.
type Alert struct {
	ID             string    `json:"id"`
	SourceID       string    `json:"source_id"`
	SourceName     string    `json:"source_name"`
	AreaName       string    `json:"area_name"`
	Mode           Mode      `json:"mode"`
	Message        string    `json:"message"`
	CurrentValue   float64   `json:"current_value"`
	ThresholdValue float64   `json:"threshold_value"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

type CommandAction string

const (
	CommandUpsert CommandAction = "upsert"
	CommandRemove CommandAction = "remove"
)

// SourceCommand is sent by the request layer whenever its source CRUD succeeds.
type SourceCommand struct {
	Action   CommandAction `json:"action"`
	SourceID string        `json:"source_id"`
	Config   *SourceConfig `json:"config,omitempty"`
}

// Diversion suggests the closest source that can take people from a crowded
// one. Target is nil when no source qualifies.
type Diversion struct {
	Crowded    LiveStatus  `json:"crowded"`
	Target     *LiveStatus `json:"target,omitempty"`
	DistanceKm float64     `json:"distance_km,omitempty"`
	Message    string      `json:"message"`
}
