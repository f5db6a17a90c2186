package skeleton

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record layout sizes, in bytes.
const (
	HeaderSize        int = 20
	FrameHeaderSize   int = 4
	PersonHeaderSize  int = 16
	KeypointEntrySize int = 6

	headerReservedSize int = 8
	personReservedSize int = 10
)

// PointIndexMask extracts the keypoint index from the first byte of a keypoint entry.
//
// Only 4 bits are available, so indexes 16 and 17 can never be addressed.
const PointIndexMask byte = 0x0f

// CoordinateScale converts a raw 16-bit coordinate into the [0, 1) range.
const CoordinateScale float64 = 65536.0

// ParseReader reads everything from the reader and decodes it as a recording.
func ParseReader(reader io.Reader, filter PersonFilter) (*Recording, error) {
	buffer, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("could not read recording: %w", err)
	}
	return Decode(buffer, filter)
}

// Decode decodes a recording buffer.
//
// If the filter is not nil, skeletons for people not in the filter are
// dropped; the frames themselves are always kept.
//
// Either the whole recording is returned or an error is; a `*DecodeError`
// is returned for any read past the end of the buffer.
func Decode(buffer []byte, filter PersonFilter) (*Recording, error) {
	c := &cursor{buffer: buffer, frame: -1, person: -1, point: -1}

	if err := c.skip(headerReservedSize, "reserved header"); err != nil {
		return nil, err
	}
	cameraID, err := c.uint32("camera ID")
	if err != nil {
		return nil, err
	}
	baseSeconds, err := c.uint32("base timestamp")
	if err != nil {
		return nil, err
	}
	frameCount, err := c.uint32("frame count")
	if err != nil {
		return nil, err
	}

	recording := &Recording{
		CameraID:      cameraID,
		BaseTimestamp: uint64(baseSeconds) * 1000,
	}

	// Every frame needs at least its own header, so never allocate for more
	// frames than the buffer could possibly hold.
	capacity := uint64(c.remaining() / FrameHeaderSize)
	if uint64(frameCount) < capacity {
		capacity = uint64(frameCount)
	}
	recording.Frames = make([]Frame, 0, capacity)

	timestamp := recording.BaseTimestamp
	for f := uint32(0); f < frameCount; f++ {
		c.frame = int(f)

		frame, err := c.frameRecord(cameraID, timestamp, filter)
		if err != nil {
			return nil, err
		}
		timestamp = frame.Timestamp

		recording.Frames = append(recording.Frames, frame)
	}

	return recording, nil
}

// frameRecord decodes a single frame; `timestamp` is the running timestamp before this frame.
func (c *cursor) frameRecord(cameraID uint32, timestamp uint64, filter PersonFilter) (Frame, error) {
	c.person = -1
	c.point = -1

	deltaTime, err := c.uint16("delta time")
	if err != nil {
		return Frame{}, err
	}
	personCount, err := c.uint16("person count")
	if err != nil {
		return Frame{}, err
	}

	frame := Frame{
		CameraID:  cameraID,
		Timestamp: timestamp + uint64(deltaTime),
		Skeletons: []Skeleton{},
	}

	for p := 0; p < int(personCount); p++ {
		c.person = p

		skeleton, err := c.personRecord()
		if err != nil {
			return Frame{}, err
		}
		if !filter.Allows(skeleton.PersonID) {
			continue
		}
		frame.Skeletons = append(frame.Skeletons, skeleton)
	}

	return frame, nil
}

func (c *cursor) personRecord() (Skeleton, error) {
	c.point = -1

	var skeleton Skeleton

	personID, err := c.uint32("person ID")
	if err != nil {
		return skeleton, err
	}
	trackerID, err := c.byte("tracker ID")
	if err != nil {
		return skeleton, err
	}
	pointCount, err := c.byte("point count")
	if err != nil {
		return skeleton, err
	}
	if err := c.skip(personReservedSize, "reserved person data"); err != nil {
		return skeleton, err
	}

	skeleton.PersonID = personID
	skeleton.TrackerID = trackerID

	for k := 0; k < int(pointCount); k++ {
		c.point = k

		entry, err := c.bytes(KeypointEntrySize, "keypoint")
		if err != nil {
			return skeleton, err
		}
		index := entry[0] & PointIndexMask
		skeleton.Keypoints[index] = Keypoint{
			X: float64(binary.LittleEndian.Uint16(entry[2:4])) / CoordinateScale,
			Y: float64(binary.LittleEndian.Uint16(entry[4:6])) / CoordinateScale,
		}
	}

	return skeleton, nil
}

// cursor walks a recording buffer, checking every read against the buffer length.
type cursor struct {
	buffer   []byte
	position int

	// Current record indexes, for error reporting.
	frame  int
	person int
	point  int
}

func (c *cursor) remaining() int {
	return len(c.buffer) - c.position
}

// bytes returns the next `n` bytes and advances past them.
func (c *cursor) bytes(n int, field string) ([]byte, error) {
	if n > c.remaining() {
		return nil, &DecodeError{
			Reason: TruncatedBuffer,
			Field:  field,
			Offset: c.position,
			Need:   n,
			Have:   c.remaining(),
			Frame:  c.frame,
			Person: c.person,
			Point:  c.point,
		}
	}
	value := c.buffer[c.position : c.position+n]
	c.position += n
	return value, nil
}

func (c *cursor) skip(n int, field string) error {
	_, err := c.bytes(n, field)
	return err
}

func (c *cursor) byte(field string) (byte, error) {
	value, err := c.bytes(1, field)
	if err != nil {
		return 0, err
	}
	return value[0], nil
}

func (c *cursor) uint16(field string) (uint16, error) {
	value, err := c.bytes(2, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(value), nil
}

func (c *cursor) uint32(field string) (uint32, error) {
	value, err := c.bytes(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(value), nil
}
