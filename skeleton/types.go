package skeleton

import "time"

// KeypointCount is the number of keypoint slots for every skeleton.
const KeypointCount = 18

// Keypoint is a normalized (x, y) coordinate for one anatomical point.
//
// Points that were not reported by the camera are left at (0, 0).
type Keypoint struct {
	X float64
	Y float64
}

// Skeleton is one tracked person within one frame.
type Skeleton struct {
	TrackerID uint8
	PersonID  uint32
	Keypoints [KeypointCount]Keypoint
}

// Frame is one sampled instant from one camera.
type Frame struct {
	CameraID  uint32
	Timestamp uint64 // Milliseconds since the epoch.
	Skeletons []Skeleton
}

// Recording contains all of the frames from a single recording buffer.
type Recording struct {
	CameraID      uint32
	BaseTimestamp uint64 // Milliseconds since the epoch; the running timestamp before the first frame.
	Frames        []Frame
}

// Time returns the frame's timestamp as a `time.Time`.
func (f Frame) Time() time.Time {
	return time.UnixMilli(int64(f.Timestamp))
}

// DetectedPoints returns the number of keypoints that are not (0, 0).
func (s *Skeleton) DetectedPoints() int {
	count := 0
	for _, point := range s.Keypoints {
		if point.X != 0 || point.Y != 0 {
			count++
		}
	}
	return count
}
