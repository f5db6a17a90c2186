package skeletonconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tekkamanendless/altumview-skeleton-processor/skeleton"
)

func testSkeleton(personID uint32, x float64) skeleton.Skeleton {
	s := skeleton.Skeleton{PersonID: personID}
	s.Keypoints[0] = skeleton.Keypoint{X: x, Y: 0.25}
	return s
}

func testRecordings() []*skeleton.Recording {
	front := &skeleton.Recording{
		CameraID: 1,
		Frames: []skeleton.Frame{
			{CameraID: 1, Timestamp: 2000, Skeletons: []skeleton.Skeleton{testSkeleton(7, 0.1), testSkeleton(8, 0.2)}},
			{CameraID: 1, Timestamp: 3000, Skeletons: []skeleton.Skeleton{testSkeleton(7, 0.3)}},
		},
	}
	above := &skeleton.Recording{
		CameraID: 2,
		Frames: []skeleton.Frame{
			{CameraID: 2, Timestamp: 1000, Skeletons: []skeleton.Skeleton{testSkeleton(7, 0.4)}},
			{CameraID: 2, Timestamp: 2000, Skeletons: []skeleton.Skeleton{testSkeleton(7, 0.5), testSkeleton(9, 0.6)}},
			{CameraID: 2, Timestamp: 2500, Skeletons: []skeleton.Skeleton{}},
		},
	}
	return []*skeleton.Recording{front, above}
}

func TestMakeRows(t *testing.T) {
	rows := MakeRows(testRecordings()...)

	type summary struct {
		timestamp uint64
		cameraID  uint32
		personID  uint32
		x         float64
	}
	summaries := []summary{}
	for _, row := range rows {
		summaries = append(summaries, summary{row.Timestamp, row.CameraID, row.PersonID, row.Keypoints[0].X})
	}

	assert.Equal(t, []summary{
		{1000, 2, 7, 0.4},
		{2000, 1, 7, 0.1}, // Camera 1 came first, so camera 2's row for person 7 is dropped.
		{2000, 1, 8, 0.2},
		{2000, 2, 9, 0.6},
		{3000, 1, 7, 0.3},
	}, summaries)
}

func TestMakeRowsOrderMatters(t *testing.T) {
	recordings := testRecordings()
	rows := MakeRows(recordings[1], recordings[0])
	require.Len(t, rows, 5)
	assert.Equal(t, uint64(2000), rows[1].Timestamp)
	assert.Equal(t, uint32(2), rows[1].CameraID)
	assert.Equal(t, 0.5, rows[1].Keypoints[0].X)
}

func TestMakeRowsEmpty(t *testing.T) {
	assert.Empty(t, MakeRows())
	assert.Empty(t, MakeRows(nil, &skeleton.Recording{}))
}
