package skeleton

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPoint struct {
	flags byte // The low 4 bits are the index.
	x     uint16
	y     uint16
}

type testPerson struct {
	personID  uint32
	trackerID byte
	points    []testPoint
}

type testFrame struct {
	delta  uint16
	people []testPerson
}

// buildRecording encodes a recording buffer the way the camera service does.
func buildRecording(cameraID uint32, baseSeconds uint32, frames []testFrame) []byte {
	buffer := new(bytes.Buffer)
	buffer.Write([]byte("SKELREC\x01")) // Reserved; not interpreted.
	binary.Write(buffer, binary.LittleEndian, cameraID)
	binary.Write(buffer, binary.LittleEndian, baseSeconds)
	binary.Write(buffer, binary.LittleEndian, uint32(len(frames)))
	for _, frame := range frames {
		binary.Write(buffer, binary.LittleEndian, frame.delta)
		binary.Write(buffer, binary.LittleEndian, uint16(len(frame.people)))
		for _, person := range frame.people {
			binary.Write(buffer, binary.LittleEndian, person.personID)
			buffer.WriteByte(person.trackerID)
			buffer.WriteByte(byte(len(person.points)))
			buffer.Write(bytes.Repeat([]byte{0xee}, 10))
			for _, point := range person.points {
				buffer.WriteByte(point.flags)
				buffer.WriteByte(0xee)
				binary.Write(buffer, binary.LittleEndian, point.x)
				binary.Write(buffer, binary.LittleEndian, point.y)
			}
		}
	}
	return buffer.Bytes()
}

func scenarioRecording() []byte {
	return buildRecording(4924, 1000, []testFrame{
		{
			delta: 500,
			people: []testPerson{
				{personID: 7, trackerID: 2, points: []testPoint{{flags: 3, x: 32768, y: 16384}}},
			},
		},
	})
}

func TestDecodeScenario(t *testing.T) {
	recording, err := Decode(scenarioRecording(), nil)
	require.NoError(t, err)

	assert.Equal(t, uint32(4924), recording.CameraID)
	assert.Equal(t, uint64(1_000_000), recording.BaseTimestamp)
	require.Len(t, recording.Frames, 1)

	frame := recording.Frames[0]
	assert.Equal(t, uint32(4924), frame.CameraID)
	assert.Equal(t, uint64(1_000_500), frame.Timestamp)
	require.Len(t, frame.Skeletons, 1)

	skeleton := frame.Skeletons[0]
	assert.Equal(t, uint32(7), skeleton.PersonID)
	assert.Equal(t, uint8(2), skeleton.TrackerID)

	var expected [KeypointCount]Keypoint
	expected[3] = Keypoint{X: 0.5, Y: 0.25}
	assert.Equal(t, expected, skeleton.Keypoints)
	assert.Equal(t, 1, skeleton.DetectedPoints())
}

func TestDecodeFilter(t *testing.T) {
	t.Run("excluded person", func(t *testing.T) {
		recording, err := Decode(scenarioRecording(), NewPersonFilter(99))
		require.NoError(t, err)
		require.Len(t, recording.Frames, 1)
		assert.Equal(t, uint64(1_000_500), recording.Frames[0].Timestamp)
		assert.Empty(t, recording.Frames[0].Skeletons)
	})

	t.Run("included person", func(t *testing.T) {
		recording, err := Decode(scenarioRecording(), NewPersonFilter(99, 7))
		require.NoError(t, err)
		require.Len(t, recording.Frames, 1)
		require.Len(t, recording.Frames[0].Skeletons, 1)
		assert.Equal(t, uint32(7), recording.Frames[0].Skeletons[0].PersonID)
	})

	t.Run("empty filter keeps nobody", func(t *testing.T) {
		recording, err := Decode(scenarioRecording(), PersonFilter{})
		require.NoError(t, err)
		require.Len(t, recording.Frames, 1)
		assert.Empty(t, recording.Frames[0].Skeletons)
	})

	t.Run("filtered person is still consumed", func(t *testing.T) {
		buffer := buildRecording(1, 0, []testFrame{
			{delta: 10, people: []testPerson{
				{personID: 1, points: []testPoint{{flags: 0, x: 1, y: 1}, {flags: 1, x: 2, y: 2}}},
				{personID: 2, points: []testPoint{{flags: 5, x: 100, y: 200}}},
			}},
			{delta: 20, people: []testPerson{
				{personID: 2, points: []testPoint{{flags: 6, x: 300, y: 400}}},
			}},
		})
		recording, err := Decode(buffer, NewPersonFilter(2))
		require.NoError(t, err)
		require.Len(t, recording.Frames, 2)
		require.Len(t, recording.Frames[0].Skeletons, 1)
		assert.Equal(t, Keypoint{X: 100 / 65536.0, Y: 200 / 65536.0}, recording.Frames[0].Skeletons[0].Keypoints[5])
		require.Len(t, recording.Frames[1].Skeletons, 1)
		assert.Equal(t, Keypoint{X: 300 / 65536.0, Y: 400 / 65536.0}, recording.Frames[1].Skeletons[0].Keypoints[6])
		assert.Equal(t, uint64(30), recording.Frames[1].Timestamp)
	})
}

func TestDecodeCumulativeTimestamp(t *testing.T) {
	buffer := buildRecording(1, 1700000000, []testFrame{
		{delta: 0},
		{delta: 33},
		{delta: 0},
		{delta: 65535},
	})
	recording, err := Decode(buffer, nil)
	require.NoError(t, err)
	require.Len(t, recording.Frames, 4)

	base := uint64(1700000000) * 1000
	assert.Equal(t, base, recording.Frames[0].Timestamp)
	assert.Equal(t, base+33, recording.Frames[1].Timestamp)
	assert.Equal(t, base+33, recording.Frames[2].Timestamp)
	assert.Equal(t, base+33+65535, recording.Frames[3].Timestamp)
	for _, frame := range recording.Frames {
		assert.Empty(t, frame.Skeletons)
		assert.NotNil(t, frame.Skeletons)
	}
}

func TestDecodeBaseTimestampDoesNotOverflow(t *testing.T) {
	buffer := buildRecording(1, 0xffffffff, []testFrame{{delta: 1}})
	recording, err := Decode(buffer, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffffffff)*1000+1, recording.Frames[0].Timestamp)
}

func TestDecodePointIndexMask(t *testing.T) {
	buffer := buildRecording(1, 0, []testFrame{
		{delta: 1, people: []testPerson{
			{personID: 1, points: []testPoint{
				{flags: 0xf3, x: 10, y: 20}, // Upper bits are flags, not part of the index.
				{flags: 0x1f, x: 30, y: 40},
			}},
		}},
	})
	recording, err := Decode(buffer, nil)
	require.NoError(t, err)

	keypoints := recording.Frames[0].Skeletons[0].Keypoints
	assert.Equal(t, Keypoint{X: 10 / 65536.0, Y: 20 / 65536.0}, keypoints[3])
	assert.Equal(t, Keypoint{X: 30 / 65536.0, Y: 40 / 65536.0}, keypoints[15])
	assert.Equal(t, Keypoint{}, keypoints[16])
	assert.Equal(t, Keypoint{}, keypoints[17])
}

func TestDecodeRepeatedPointIndex(t *testing.T) {
	buffer := buildRecording(1, 0, []testFrame{
		{delta: 1, people: []testPerson{
			{personID: 1, points: []testPoint{
				{flags: 4, x: 10, y: 20},
				{flags: 4, x: 30, y: 40},
			}},
		}},
	})
	recording, err := Decode(buffer, nil)
	require.NoError(t, err)
	assert.Equal(t, Keypoint{X: 30 / 65536.0, Y: 40 / 65536.0}, recording.Frames[0].Skeletons[0].Keypoints[4])
}

func TestDecodeMaximumCoordinate(t *testing.T) {
	buffer := buildRecording(1, 0, []testFrame{
		{delta: 1, people: []testPerson{
			{personID: 1, points: []testPoint{{flags: 0, x: 0xffff, y: 0xffff}}},
		}},
	})
	recording, err := Decode(buffer, nil)
	require.NoError(t, err)
	point := recording.Frames[0].Skeletons[0].Keypoints[0]
	assert.Less(t, point.X, 1.0)
	assert.Less(t, point.Y, 1.0)
	assert.Equal(t, 65535/65536.0, point.X)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	buffer := append(scenarioRecording(), 0xde, 0xad, 0xbe, 0xef)
	recording, err := Decode(buffer, nil)
	require.NoError(t, err)
	assert.Len(t, recording.Frames, 1)
}

func TestDecodeTruncated(t *testing.T) {
	buffer := buildRecording(4924, 1000, []testFrame{
		{delta: 500, people: []testPerson{
			{personID: 7, trackerID: 2, points: []testPoint{{flags: 3, x: 32768, y: 16384}, {flags: 4, x: 1, y: 1}}},
			{personID: 8, trackerID: 3},
		}},
		{delta: 40},
	})

	for length := 0; length < len(buffer); length++ {
		recording, err := Decode(buffer[:length], nil)
		require.Error(t, err, "length %d", length)
		assert.Nil(t, recording, "length %d", length)
		assert.True(t, errors.Is(err, ErrTruncatedBuffer), "length %d: %v", length, err)

		var decodeError *DecodeError
		require.True(t, errors.As(err, &decodeError))
		assert.Equal(t, TruncatedBuffer, decodeError.Reason)
		assert.LessOrEqual(t, decodeError.Offset, length)
		assert.Equal(t, length-decodeError.Offset, decodeError.Have)
		assert.Greater(t, decodeError.Need, decodeError.Have)
	}
}

func TestDecodeTruncatedLocation(t *testing.T) {
	buffer := scenarioRecording()

	t.Run("header", func(t *testing.T) {
		_, err := Decode(buffer[:HeaderSize-1], nil)
		var decodeError *DecodeError
		require.True(t, errors.As(err, &decodeError))
		assert.Equal(t, "frame count", decodeError.Field)
		assert.Equal(t, 16, decodeError.Offset)
		assert.Equal(t, -1, decodeError.Frame)
	})

	t.Run("keypoint", func(t *testing.T) {
		_, err := Decode(buffer[:len(buffer)-1], nil)
		var decodeError *DecodeError
		require.True(t, errors.As(err, &decodeError))
		assert.Equal(t, "keypoint", decodeError.Field)
		assert.Equal(t, 0, decodeError.Frame)
		assert.Equal(t, 0, decodeError.Person)
		assert.Equal(t, 0, decodeError.Point)
		assert.Equal(t, HeaderSize+FrameHeaderSize+PersonHeaderSize, decodeError.Offset)
		assert.Contains(t, err.Error(), "frame 0, person 0, point 0")
	})
}

func TestDecodeHugeFrameCount(t *testing.T) {
	buffer := scenarioRecording()
	binary.LittleEndian.PutUint32(buffer[16:20], 0xffffffff)

	recording, err := Decode(buffer, nil)
	assert.Nil(t, recording)
	assert.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestDecodeErrorIsOnlyTruncated(t *testing.T) {
	err := &DecodeError{Reason: TruncatedBuffer, Frame: -1, Person: -1, Point: -1}
	assert.True(t, errors.Is(err, ErrTruncatedBuffer))
	assert.False(t, errors.Is(err, errors.New("truncated buffer")))
}

func TestParseReader(t *testing.T) {
	recording, err := ParseReader(bytes.NewReader(scenarioRecording()), nil)
	require.NoError(t, err)
	assert.Len(t, recording.Frames, 1)

	_, err = ParseReader(bytes.NewReader([]byte{1, 2, 3}), nil)
	assert.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestDecodeConcurrent(t *testing.T) {
	buffers := [][]byte{
		scenarioRecording(),
		buildRecording(1, 10, []testFrame{{delta: 1}, {delta: 2}}),
		buildRecording(2, 20, []testFrame{{delta: 5, people: []testPerson{{personID: 3}}}}),
	}
	expected := make([]*Recording, len(buffers))
	for i, buffer := range buffers {
		recording, err := Decode(buffer, nil)
		require.NoError(t, err)
		expected[i] = recording
	}

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		for i, buffer := range buffers {
			wg.Add(1)
			go func(i int, buffer []byte) {
				defer wg.Done()
				recording, err := Decode(buffer, nil)
				assert.NoError(t, err)
				assert.Equal(t, expected[i], recording)
			}(i, buffer)
		}
	}
	wg.Wait()
}
