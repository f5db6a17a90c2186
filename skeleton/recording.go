package skeleton

import (
	"sort"
	"time"
)

// PersonIDs returns the sorted list of person IDs present.
func (r *Recording) PersonIDs() []uint32 {
	personIDMap := map[uint32]bool{}

	for _, frame := range r.Frames {
		for _, skeleton := range frame.Skeletons {
			personIDMap[skeleton.PersonID] = true
		}
	}

	personIDs := []uint32{}
	for personID := range personIDMap {
		personIDs = append(personIDs, personID)
	}
	sort.Slice(personIDs, func(i, j int) bool {
		return personIDs[i] < personIDs[j]
	})

	return personIDs
}

// SkeletonCount returns the total number of skeletons across all frames.
func (r *Recording) SkeletonCount() int {
	count := 0
	for _, frame := range r.Frames {
		count += len(frame.Skeletons)
	}
	return count
}

// SkeletonsForPersonID returns all of the skeletons for the given person ID, in frame order.
func (r *Recording) SkeletonsForPersonID(personID uint32) []Skeleton {
	skeletons := []Skeleton{}

	for _, frame := range r.Frames {
		for _, skeleton := range frame.Skeletons {
			if skeleton.PersonID == personID {
				skeletons = append(skeletons, skeleton)
			}
		}
	}

	return skeletons
}

// TimeRange returns the timestamps of the first and last frames.
//
// A recording without frames returns the base timestamp for both.
func (r *Recording) TimeRange() (time.Time, time.Time) {
	if len(r.Frames) == 0 {
		base := time.UnixMilli(int64(r.BaseTimestamp))
		return base, base
	}
	return r.Frames[0].Time(), r.Frames[len(r.Frames)-1].Time()
}
