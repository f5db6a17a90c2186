package hexline

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DefaultWidth is the number of bytes per line when no width is given.
const DefaultWidth = 32

// Print writes the dump to standard output.
func Print(data []byte, offset int64, width int) error {
	return Write(os.Stdout, data, offset, width)
}

// Write writes a two-line dump for every `width` bytes of data: the printable
// characters first, then the hex values.  Each line is prefixed with the
// offset of its first byte, counting from `offset`.
func Write(out io.Writer, data []byte, offset int64, width int) error {
	if width <= 0 {
		width = DefaultWidth
	}

	writer := bufio.NewWriter(out)
	for start := 0; start < len(data); start += width {
		end := start + width
		if end > len(data) {
			end = len(data)
		}
		line := data[start:end]

		fmt.Fprintf(writer, "0x%06x: ", offset+int64(start))
		for _, currentByte := range line {
			if currentByte < ' ' || currentByte > '~' {
				writer.WriteString("..")
			} else {
				fmt.Fprintf(writer, " %c", currentByte)
			}
		}
		writer.WriteString("\n")

		fmt.Fprintf(writer, "0x%06x: ", offset+int64(start))
		for _, currentByte := range line {
			fmt.Fprintf(writer, "%02x", currentByte)
		}
		writer.WriteString("\n")
	}
	return writer.Flush()
}

// Window returns up to `before` bytes before and `after` bytes after the
// given position, along with the offset of the first returned byte.
func Window(data []byte, position int, before int, after int) ([]byte, int64) {
	if position < 0 {
		position = 0
	}
	if position > len(data) {
		position = len(data)
	}
	start := position - before
	if start < 0 {
		start = 0
	}
	end := position + after
	if end > len(data) {
		end = len(data)
	}
	return data[start:end], int64(start)
}
