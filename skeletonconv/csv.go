package skeletonconv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tekkamanendless/altumview-skeleton-processor/skeleton"
)

// CSV file modes.
const (
	ModeTruncate  = "w" // Create the file, or truncate it first.
	ModeExclusive = "x" // Create the file; fail if it already exists.
	ModeAppend    = "a" // Append to the end of the file.
)

// CSVHeader returns the CSV column names.
func CSVHeader() []string {
	header := []string{"time", "camera_id", "person_id"}
	for k := 0; k < skeleton.KeypointCount; k++ {
		header = append(header, fmt.Sprintf("keypoint%d", k))
	}
	return header
}

// FormatKeypoint formats a keypoint as "(x, y)".
func FormatKeypoint(point skeleton.Keypoint) string {
	return "(" + strconv.FormatFloat(point.X, 'f', -1, 64) + ", " + strconv.FormatFloat(point.Y, 'f', -1, 64) + ")"
}

// WriteCSV writes the rows as CSV.
func WriteCSV(writer io.Writer, rows []Row, includeHeader bool) error {
	csvWriter := csv.NewWriter(writer)
	if includeHeader {
		err := csvWriter.Write(CSVHeader())
		if err != nil {
			return fmt.Errorf("could not write header: %w", err)
		}
	}

	record := make([]string, 3+skeleton.KeypointCount)
	for i, row := range rows {
		record[0] = strconv.FormatUint(row.Timestamp, 10)
		record[1] = strconv.FormatUint(uint64(row.CameraID), 10)
		record[2] = strconv.FormatUint(uint64(row.PersonID), 10)
		for k, point := range row.Keypoints {
			record[3+k] = FormatKeypoint(point)
		}
		err := csvWriter.Write(record)
		if err != nil {
			return fmt.Errorf("could not write row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ExportCSV writes the rows to the given file using the given mode.
//
// In append mode, the header is only written if the file is empty.
func ExportCSV(filename string, mode string, rows []Row) error {
	var flags int
	switch mode {
	case ModeTruncate:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case ModeExclusive:
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	case ModeAppend:
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return fmt.Errorf("invalid CSV mode %q (can be one of: w, x, a)", mode)
	}

	handle, err := os.OpenFile(filename, flags, 0644)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", filename, err)
	}
	defer handle.Close()

	info, err := handle.Stat()
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", filename, err)
	}

	logger.Debugf("Writing %d rows to %s (mode %s)", len(rows), filename, mode)
	err = WriteCSV(handle, rows, info.Size() == 0)
	if err != nil {
		return fmt.Errorf("could not write %s: %w", filename, err)
	}
	return handle.Close()
}
