package livestatus

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

const noDiversionMessage = "No suitable alternative sources found nearby or all are crowded."

type candidate struct {
	status   models.LiveStatus
	distance float64
}

// NearestClear picks, for the active source sourceID, the nearest other active
// source that is under its threshold and has a location. It reports false
// when sourceID is unknown or inactive.
func (c *Cache) NearestClear(sourceID string) (models.Diversion, bool) {
	all := c.GetAll()

	crowded, ok := all[sourceID]
	if !ok {
		return models.Diversion{}, false
	}

	div := models.Diversion{Crowded: crowded, Message: noDiversionMessage}
	if !hasLocation(crowded) {
		return div, true
	}

	candidates := lo.FilterMap(lo.Values(all), func(st models.LiveStatus, _ int) (candidate, bool) {
		if st.SourceID == sourceID || !st.IsActive || st.IsOverThreshold || !hasLocation(st) {
			return candidate{}, false
		}
		return candidate{
			status:   st,
			distance: geometry.HaversineKm(*crowded.Latitude, *crowded.Longitude, *st.Latitude, *st.Longitude),
		}, true
	})
	if len(candidates) == 0 {
		return div, true
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].status.SourceID < candidates[j].status.SourceID
	})

	best := candidates[0]
	div.Target = &best.status
	div.DistanceKm = best.distance
	div.Message = fmt.Sprintf("Divert from %s towards %s.", crowded.Name, best.status.Name)
	return div, true
}

func hasLocation(st models.LiveStatus) bool {
	return st.Latitude != nil && st.Longitude != nil
}
