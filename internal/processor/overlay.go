package processor

import (
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

type OverlayKind string

const (
	OverlayCentroid OverlayKind = "centroid"
	OverlayTripwire OverlayKind = "tripwire"
	OverlayEntry    OverlayKind = "entry"
	OverlayExit     OverlayKind = "exit"
	OverlayLabel    OverlayKind = "label"
)

// Overlay is a drawing primitive for whoever renders the frame. This package
// never draws anything itself.
type Overlay struct {
	Kind    OverlayKind      `json:"kind"`
	Points  []geometry.Point `json:"points,omitempty"`
	Text    string           `json:"text,omitempty"`
	TrackID int64            `json:"track_id,omitempty"`
}

func label(text string) Overlay {
	return Overlay{Kind: OverlayLabel, Text: text}
}

func crossing(kind OverlayKind, o models.Observation, from geometry.Point) Overlay {
	return Overlay{Kind: kind, Points: []geometry.Point{from, o.Centroid}, TrackID: o.TrackID}
}
