package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/tekkamanendless/altumview-skeleton-processor/hexline"
)

func main() {
	byteLimit := flag.Int("byte-limit", 0, "The number of bytes to print.  If this is 0, then the rest of the file will be printed.")
	offset := flag.Int("offset", 0, "The offset of the first byte to print.")
	width := flag.Int("width", hexline.DefaultWidth, "The number of bytes per line.")

	flag.Parse()

	if len(flag.Args()) == 0 {
		fmt.Printf("Missing filename.\n")
		os.Exit(1)
	}
	if len(flag.Args()) > 1 {
		fmt.Printf("Too many arguments.\n")
		os.Exit(1)
	}
	filename := flag.Args()[0]

	log.Debugf("Byte limit: %d", *byteLimit)
	log.Debugf("Filename: %s", filename)

	contents, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Could not read file '%s': %v\n", filename, err)
		os.Exit(1)
	}

	if *offset < 0 || *offset > len(contents) {
		fmt.Printf("Offset %d is outside of the file (%d bytes).\n", *offset, len(contents))
		os.Exit(1)
	}
	contents = contents[*offset:]
	if *byteLimit > 0 && *byteLimit < len(contents) {
		log.Infof("Reached the byte limit of %d; ending early.", *byteLimit)
		contents = contents[:*byteLimit]
	}

	err = hexline.Print(contents, int64(*offset), *width)
	if err != nil {
		fmt.Printf("Could not print file: %v\n", err)
		os.Exit(1)
	}
}
