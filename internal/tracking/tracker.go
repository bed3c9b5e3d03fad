package tracking

import (
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
)

// CrossingEvent is the outcome of one track update against the tripwire.
type CrossingEvent int

const (
	None CrossingEvent = iota
	Entry
	Exit
)

func (e CrossingEvent) String() string {
	switch e {
	case Entry:
		return "entry"
	case Exit:
		return "exit"
	default:
		return "none"
	}
}

// CrossStatus is the last crossing recorded for a track.
type CrossStatus string

const (
	StatusNone    CrossStatus = "none"
	StatusEntered CrossStatus = "entered"
	StatusExited  CrossStatus = "exited"
)

// TrackState is what the tracker remembers about one visible object.
type TrackState struct {
	Centroid geometry.Point
	Status   CrossStatus
}

// Thresholds control crossing confirmation and re-arming.
// Away must be larger than Proximity.
type Thresholds struct {
	// Proximity is the maximum distance from the line at which a side change
	// is accepted as a crossing.
	Proximity float64
	// Away is the distance a track has to move away from the line before its
	// crossing status is cleared.
	Away float64
}

// DefaultThresholds are the pixel distances used when none are configured.
var DefaultThresholds = Thresholds{Proximity: 10, Away: 20}

// Tracker turns centroid sequences into entry/exit events for a single source.
//
// Sign convention: the line is directed from its first endpoint A to its
// second endpoint B. A track moving from the positive side of A→B to the
// negative side is an Entry, the reverse is an Exit. For a line drawn left to
// right on screen that means crossing downwards is an Entry.
//
// Tracker is not safe for concurrent use; each source loop owns its own.
type Tracker struct {
	thresholds Thresholds
	tracks     map[int64]*TrackState
}

// NewTracker creates an empty tracker.
func NewTracker(thresholds Thresholds) *Tracker {
	return &Tracker{
		thresholds: thresholds,
		tracks:     make(map[int64]*TrackState),
	}
}

// Update feeds the current centroid of trackID and reports a confirmed,
// debounced crossing of line, if any.
func (t *Tracker) Update(trackID int64, centroid geometry.Point, line geometry.Segment) CrossingEvent {
	st, ok := t.tracks[trackID]
	if !ok {
		t.tracks[trackID] = &TrackState{Centroid: centroid, Status: StatusNone}
		return None
	}
	defer func() { st.Centroid = centroid }()

	prevSide := geometry.Sign(geometry.SideOfLine(st.Centroid, line.A, line.B))
	currSide := geometry.Sign(geometry.SideOfLine(centroid, line.A, line.B))
	dist := geometry.DistancePointToSegment(centroid, line.A, line.B)

	crossed := prevSide != 0 && currSide != 0 && prevSide != currSide && dist < t.thresholds.Proximity
	if !crossed {
		if dist > t.thresholds.Away {
			st.Status = StatusNone
		}
		return None
	}

	if prevSide > 0 {
		if st.Status == StatusEntered {
			return None
		}
		st.Status = StatusEntered
		return Entry
	}

	if st.Status == StatusExited {
		return None
	}
	st.Status = StatusExited
	return Exit
}

// Reconcile drops every track that is not in the current frame.
func (t *Tracker) Reconcile(currentFrameTrackIDs []int64) {
	visible := lo.SliceToMap(currentFrameTrackIDs, func(id int64) (int64, struct{}) {
		return id, struct{}{}
	})

	for id := range t.tracks {
		if _, ok := visible[id]; !ok {
			delete(t.tracks, id)
		}
	}
}

// State returns a copy of the stored state for trackID.
func (t *Tracker) State(trackID int64) (TrackState, bool) {
	st, ok := t.tracks[trackID]
	if !ok {
		return TrackState{}, false
	}
	return *st, true
}

// Len is the number of tracks currently held.
func (t *Tracker) Len() int {
	return len(t.tracks)
}
