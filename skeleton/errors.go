package skeleton

import (
	"errors"
	"fmt"
	"strings"
)

// Reason describes why a recording could not be decoded.
type Reason string

// Decode error reasons.
const (
	TruncatedBuffer Reason = "truncated buffer"
)

// ErrTruncatedBuffer matches any `*DecodeError` with the `TruncatedBuffer` reason via `errors.Is`.
var ErrTruncatedBuffer = errors.New(string(TruncatedBuffer))

// DecodeError is returned when a recording buffer cannot be decoded.
//
// Frame, Person, and Point are the zero-based indexes of the record being
// decoded when the error happened; they are -1 when not applicable.
type DecodeError struct {
	Reason Reason
	Field  string
	Offset int // Where the read started.
	Need   int // How many bytes the read needed.
	Have   int // How many bytes were left.
	Frame  int
	Person int
	Point  int
}

func (e *DecodeError) Error() string {
	location := []string{}
	if e.Frame >= 0 {
		location = append(location, fmt.Sprintf("frame %d", e.Frame))
	}
	if e.Person >= 0 {
		location = append(location, fmt.Sprintf("person %d", e.Person))
	}
	if e.Point >= 0 {
		location = append(location, fmt.Sprintf("point %d", e.Point))
	}
	message := fmt.Sprintf("%s: could not read %s at offset %d: need %d bytes, have %d", e.Reason, e.Field, e.Offset, e.Need, e.Have)
	if len(location) > 0 {
		message += " (" + strings.Join(location, ", ") + ")"
	}
	return message
}

// Is lets `errors.Is` match the reason sentinels.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrTruncatedBuffer:
		return e.Reason == TruncatedBuffer
	}
	return false
}
