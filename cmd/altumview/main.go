package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tekkamanendless/altumview-skeleton-processor/altumview"
	"github.com/tekkamanendless/altumview-skeleton-processor/cmd/altumview/config"
	"github.com/tekkamanendless/altumview-skeleton-processor/hexline"
	"github.com/tekkamanendless/altumview-skeleton-processor/skeleton"
	"github.com/tekkamanendless/altumview-skeleton-processor/skeletonconv"
)

// TimeLayout is the layout for the --start and --end flags (local time).
// Leading zeros are optional in every field.
const TimeLayout = "1/2/2006 15:4:5"

func main() {
	debugValue := false

	var rootCommand = &cobra.Command{
		Use:   "altumview",
		Short: "AltumView skeleton recording processor",
		Long: `
This tool fetches and decodes AltumView skeleton recordings and exports the keypoints as a table.
`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugValue {
				altumview.SetLogLevel(logrus.DebugLevel)
				skeletonconv.SetLogLevel(logrus.DebugLevel)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
			os.Exit(1)
		},
	}
	rootCommand.PersistentFlags().BoolVar(&debugValue, "debug", false, "Enable debug output")

	{
		dumpValue := false
		var personIDs []uint
		var infoCommand = &cobra.Command{
			Use:   "info <filename> [...]",
			Short: "Show the information from the given recording file(s)",
			Long: `
The output here isn't particularly pretty, but it should be enough for you to do whatever you need to do with the files.

For a more aggressive output, use the --dump flag.
`,
			Args: cobra.MinimumNArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				filter, err := makePersonFilter(personIDs)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
				for _, filename := range args {
					fmt.Printf("File: %s\n", filename)
					recording, contents, err := parseFilename(filename, filter)
					if err != nil {
						fmt.Printf("Error: %v\n", err)
						continue
					}
					fmt.Printf("Size: %s\n", humanize.Bytes(uint64(len(contents))))
					printRecording(recording)

					if dumpValue {
						spew.Dump(recording)
					}
				}
			},
		}
		infoCommand.Flags().BoolVar(&dumpValue, "dump", false, "Dump out everything about the recording")
		infoCommand.Flags().UintSliceVar(&personIDs, "person", nil, "Only keep these person IDs (may be repeated)")
		rootCommand.AddCommand(infoCommand)
	}

	{
		var byteLimit int
		frameIndex := -1
		var debugCommand = &cobra.Command{
			Use:   "debug <filename>",
			Short: "Show debug information from the given recording file",
			Long: `
This prints the raw header bytes and, if the recording cannot be decoded, the bytes around the point of failure.
Use --frame to print the details of a single frame.
`,
			Args: cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				filename := args[0]

				contents, err := os.ReadFile(filename)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("File: %s (%d bytes)\n", filename, len(contents))

				header, offset := hexline.Window(contents, 0, 0, skeleton.HeaderSize)
				fmt.Printf("Header:\n")
				err = hexline.Print(header, offset, skeleton.HeaderSize)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}

				recording, err := skeleton.Decode(contents, nil)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					var decodeError *skeleton.DecodeError
					if errors.As(err, &decodeError) {
						before := byteLimit / 2
						window, offset := hexline.Window(contents, decodeError.Offset, before, byteLimit-before)
						fmt.Printf("Bytes around offset %d:\n", decodeError.Offset)
						err = hexline.Print(window, offset, 0)
						if err != nil {
							fmt.Printf("Error: %v\n", err)
						}
					}
					os.Exit(1)
				}
				printRecording(recording)

				if frameIndex >= 0 {
					if frameIndex >= len(recording.Frames) {
						fmt.Printf("Invalid frame index: %d\n", frameIndex)
						os.Exit(1)
					}
					printFrame(frameIndex, recording.Frames[frameIndex])
				}
			},
		}
		debugCommand.Flags().IntVar(&byteLimit, "byte-limit", 64, "The number of bytes to print around a decode error")
		debugCommand.Flags().IntVar(&frameIndex, "frame", frameIndex, "The index of a frame to print")
		rootCommand.AddCommand(debugCommand)
	}

	{
		format := config.FormatCSV
		mode := skeletonconv.ModeTruncate
		var personIDs []uint
		var exportCommand = &cobra.Command{
			Use:   "export <output-file> <input-file> [...]",
			Short: "Export the skeletons from recording files",
			Long: `
This decodes each of the given recording files and writes all of the skeletons to a single table, sorted by time.
When the same person was seen by more than one camera at the same time, only the first one is kept.
Files that cannot be decoded are reported and skipped.
`,
			Args: cobra.MinimumNArgs(2),
			Run: func(cmd *cobra.Command, args []string) {
				destinationFilename := args[0]
				inputFiles := args[1:]

				cfg := config.Default()
				cfg.Export = config.ExportConfig{Format: format, Output: destinationFilename, Mode: mode}
				err := cfg.ValidateExport()
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}

				filter, err := makePersonFilter(personIDs)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}

				recordings := []*skeleton.Recording{}
				for _, inputFile := range inputFiles {
					recording, _, err := parseFilename(inputFile, filter)
					if err != nil {
						fmt.Printf("Skipping %s: %v\n", inputFile, err)
						continue
					}
					recordings = append(recordings, recording)
				}

				err = export(cmd.Context(), cfg.Export, recordings)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
			},
		}
		exportCommand.Flags().StringVar(&format, "format", format, "The output format (can be one of: csv, sqlite)")
		exportCommand.Flags().StringVar(&mode, "mode", mode, "The CSV file mode (can be one of: w, x, a)")
		exportCommand.Flags().UintSliceVar(&personIDs, "person", nil, "Only keep these person IDs (may be repeated)")
		rootCommand.AddCommand(exportCommand)
	}

	{
		configFilename := ""
		startValue := ""
		endValue := ""
		saveRawDirectory := ""
		var cameraIDs []uint
		var personIDs []uint
		var fetchCommand = &cobra.Command{
			Use:   "fetch",
			Short: "Fetch recordings from the AltumView cloud and export them",
			Long: `
This finds every recording between --start and --end, downloads and decodes them, and exports the skeletons.
Times use the format "MM/DD/YYYY hh:mm:ss" in local time, or RFC 3339.

The credentials may be given in the config file or with the ` + config.EnvClientID + ` and ` + config.EnvClientSecret + ` environment variables.
`,
			Args: cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				cfg, err := config.Load(configFilename)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
				if cmd.Flags().Changed("output") {
					cfg.Export.Output, _ = cmd.Flags().GetString("output")
				}
				if cmd.Flags().Changed("format") {
					cfg.Export.Format, _ = cmd.Flags().GetString("format")
				}
				if cmd.Flags().Changed("mode") {
					cfg.Export.Mode, _ = cmd.Flags().GetString("mode")
				}
				if len(cameraIDs) > 0 {
					cfg.Fetch.CameraIDs, err = toUint32s(cameraIDs)
					if err != nil {
						fmt.Printf("Error: %v\n", err)
						os.Exit(1)
					}
				}
				if len(personIDs) > 0 {
					cfg.Fetch.PersonIDs, err = toUint32s(personIDs)
					if err != nil {
						fmt.Printf("Error: %v\n", err)
						os.Exit(1)
					}
				}
				err = cfg.ValidateExport()
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
				clientConfig, err := cfg.ClientConfig()
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}

				start, err := parseTime(startValue)
				if err != nil {
					fmt.Printf("Invalid start time: %v\n", err)
					os.Exit(1)
				}
				end, err := parseTime(endValue)
				if err != nil {
					fmt.Printf("Invalid end time: %v\n", err)
					os.Exit(1)
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()

				client, err := altumview.NewClient(ctx, clientConfig)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}

				refs, err := client.ListRecordings(ctx, start, end, cfg.Fetch.CameraIDs)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
				refs = altumview.FilterRefsByCamera(refs, cfg.Fetch.CameraIDs)
				fmt.Printf("Found %d recordings.\n", len(refs))

				results := client.FetchAll(ctx, refs, skeleton.NewPersonFilter(cfg.Fetch.PersonIDs...))

				recordings := []*skeleton.Recording{}
				failures := 0
				for _, result := range results {
					if saveRawDirectory != "" && result.Raw != nil {
						filename := rawFilename(saveRawDirectory, result.Ref)
						err := os.WriteFile(filename, result.Raw, 0644)
						if err != nil {
							fmt.Printf("Could not save %s: %v\n", filename, err)
						}
					}
					if result.Err != nil {
						fmt.Printf("Skipping %s: %v\n", result.Ref, result.Err)
						failures++
						continue
					}
					recordings = append(recordings, result.Recording)
				}
				fmt.Printf("Decoded %d recordings (%d failed).\n", len(recordings), failures)

				err = export(ctx, cfg.Export, recordings)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
			},
		}
		fetchCommand.Flags().StringVar(&configFilename, "config", "", "The TOML configuration file")
		fetchCommand.Flags().StringVar(&startValue, "start", "", "The start of the time range")
		fetchCommand.Flags().StringVar(&endValue, "end", "", "The end of the time range")
		fetchCommand.Flags().UintSliceVar(&cameraIDs, "camera", nil, "Only fetch these camera IDs (may be repeated)")
		fetchCommand.Flags().UintSliceVar(&personIDs, "person", nil, "Only keep these person IDs (may be repeated)")
		fetchCommand.Flags().String("output", "", "The output file (overrides the config file)")
		fetchCommand.Flags().String("format", "", "The output format (can be one of: csv, sqlite)")
		fetchCommand.Flags().String("mode", "", "The CSV file mode (can be one of: w, x, a)")
		fetchCommand.Flags().StringVar(&saveRawDirectory, "save-raw", "", "Save the raw recordings into this directory")
		fetchCommand.MarkFlagRequired("start")
		fetchCommand.MarkFlagRequired("end")
		rootCommand.AddCommand(fetchCommand)
	}

	err := rootCommand.ExecuteContext(context.Background())
	if err != nil {
		panic(err)
	}
	os.Exit(0)
}

// parseFilename decodes the given file and returns the recording along with the raw contents.
func parseFilename(filename string, filter skeleton.PersonFilter) (*skeleton.Recording, []byte, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read file '%s': %w", filename, err)
	}

	recording, err := skeleton.Decode(contents, filter)
	if err != nil {
		return nil, contents, fmt.Errorf("could not decode file '%s': %w", filename, err)
	}

	return recording, contents, nil
}

// export sorts, de-duplicates, and writes the recordings.
func export(ctx context.Context, exportConfig config.ExportConfig, recordings []*skeleton.Recording) error {
	rows := skeletonconv.MakeRows(recordings...)
	fmt.Printf("Exporting %d rows to %s...\n", len(rows), exportConfig.Output)

	switch exportConfig.Format {
	case config.FormatCSV:
		return skeletonconv.ExportCSV(exportConfig.Output, exportConfig.Mode, rows)
	case config.FormatSQLite:
		inserted, err := skeletonconv.ExportSQLite(ctx, exportConfig.Output, rows)
		if err != nil {
			return err
		}
		fmt.Printf("Inserted %d new rows.\n", inserted)
		return nil
	default:
		return fmt.Errorf("invalid export format: %s", exportConfig.Format)
	}
}

// parseTime parses either the original "MM/DD/YYYY hh:mm:ss" layout (local time) or RFC 3339.
func parseTime(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(TimeLayout, value, time.Local)
	if err == nil {
		return parsed, nil
	}
	parsed, rfcErr := time.Parse(time.RFC3339, value)
	if rfcErr == nil {
		return parsed, nil
	}
	return time.Time{}, err
}

// rawFilename returns the file in the directory for a raw recording.
// The record ID comes from the server, so it is escaped to stay inside the directory.
func rawFilename(directory string, ref altumview.RecordingRef) string {
	return filepath.Join(directory, fmt.Sprintf("%d-%s.bin", ref.CameraID, url.PathEscape(ref.RecordID)))
}

func toUint32s(values []uint) ([]uint32, error) {
	result := make([]uint32, 0, len(values))
	for _, value := range values {
		if value > 0xffffffff {
			return nil, fmt.Errorf("ID is too large: %d", value)
		}
		result = append(result, uint32(value))
	}
	return result, nil
}

func makePersonFilter(personIDs []uint) (skeleton.PersonFilter, error) {
	ids, err := toUint32s(personIDs)
	if err != nil {
		return nil, err
	}
	return skeleton.NewPersonFilter(ids...), nil
}

// printRecording prints out the information about the recording.
func printRecording(recording *skeleton.Recording) {
	start, end := recording.TimeRange()
	fmt.Printf("Camera: %d\n", recording.CameraID)
	fmt.Printf("Base time: %v\n", time.UnixMilli(int64(recording.BaseTimestamp)))
	fmt.Printf("Frames: %d\n", len(recording.Frames))
	fmt.Printf("Time range: %v - %v (%v)\n", start, end, end.Sub(start))
	fmt.Printf("Skeletons: %d\n", recording.SkeletonCount())

	personIDs := recording.PersonIDs()
	fmt.Printf("People: (%d)\n", len(personIDs))
	for _, personID := range personIDs {
		fmt.Printf("   * %d: %d frames\n", personID, len(recording.SkeletonsForPersonID(personID)))
	}
}

// printFrame prints out a single frame.
func printFrame(index int, frame skeleton.Frame) {
	fmt.Printf("Frame %d: %v (%d)\n", index, frame.Time(), frame.Timestamp)
	for _, s := range frame.Skeletons {
		fmt.Printf("   * Person %d (tracker %d): %d points\n", s.PersonID, s.TrackerID, s.DetectedPoints())
		points := []string{}
		for k, point := range s.Keypoints {
			points = append(points, fmt.Sprintf("%d=%s", k, skeletonconv.FormatKeypoint(point)))
		}
		fmt.Printf("      %s\n", strings.Join(points, " "))
	}
}
