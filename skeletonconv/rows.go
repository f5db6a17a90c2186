package skeletonconv

import (
	"sort"

	"github.com/tekkamanendless/altumview-skeleton-processor/skeleton"
)

// Row is one skeleton flattened into a table row.
type Row struct {
	Timestamp uint64 // Milliseconds since the epoch.
	CameraID  uint32
	PersonID  uint32
	Keypoints [skeleton.KeypointCount]skeleton.Keypoint
}

type rowKey struct {
	timestamp uint64
	personID  uint32
}

// MakeRows flattens the recordings into rows sorted by timestamp.
//
// When more than one camera saw the same person at the same time, only the
// first row (in recording order, then frame order) is kept.
func MakeRows(recordings ...*skeleton.Recording) []Row {
	rows := []Row{}
	for _, recording := range recordings {
		if recording == nil {
			continue
		}
		for _, frame := range recording.Frames {
			for _, s := range frame.Skeletons {
				rows = append(rows, Row{
					Timestamp: frame.Timestamp,
					CameraID:  frame.CameraID,
					PersonID:  s.PersonID,
					Keypoints: s.Keypoints,
				})
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp < rows[j].Timestamp
	})

	seen := map[rowKey]bool{}
	unique := rows[:0]
	for _, row := range rows {
		key := rowKey{timestamp: row.Timestamp, personID: row.PersonID}
		if seen[key] {
			logger.Debugf("Dropping duplicate row for person %d at %d (camera %d)", row.PersonID, row.Timestamp, row.CameraID)
			continue
		}
		seen[key] = true
		unique = append(unique, row)
	}

	return unique
}
