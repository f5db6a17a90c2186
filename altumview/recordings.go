package altumview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tekkamanendless/altumview-skeleton-processor/skeleton"
	"golang.org/x/sync/errgroup"
)

// RecordingRef identifies one recording on one camera.
type RecordingRef struct {
	CameraID uint32
	RecordID string
}

func (r RecordingRef) String() string {
	return fmt.Sprintf("%d/%s", r.CameraID, r.RecordID)
}

// flexibleID is an identifier that the API may send as either a JSON number or a JSON string.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var value string
		err := json.Unmarshal(data, &value)
		if err != nil {
			return err
		}
		*id = flexibleID(value)
		return nil
	}
	var value json.Number
	err := json.Unmarshal(data, &value)
	if err != nil {
		return err
	}
	*id = flexibleID(value.String())
	return nil
}

type recordingsPage struct {
	Data struct {
		Records []struct {
			CameraID  uint32       `json:"camera_id"`
			RecordIDs []flexibleID `json:"record_ids"`
		} `json:"records"`
		HasNextPage     bool       `json:"has_next_page"`
		LastReferenceID flexibleID `json:"last_reference_id"`
	} `json:"data"`
}

// ListRecordings returns every recording between the start and end times.
//
// If camera IDs are given, only those cameras are asked for.
func (c *Client) ListRecordings(ctx context.Context, start time.Time, end time.Time, cameraIDs []uint32) ([]RecordingRef, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end time %v is before start time %v", end, start)
	}

	parameters := url.Values{}
	parameters.Set("start_date", strconv.FormatInt(start.Unix(), 10))
	parameters.Set("end_date", strconv.FormatInt(end.Unix(), 10))
	parameters.Set("page_length", strconv.Itoa(c.config.PageLength))
	parameters.Set("last_reference_id", "-1")
	for _, cameraID := range cameraIDs {
		parameters.Add("camera_ids", strconv.FormatUint(uint64(cameraID), 10))
	}

	refs := []RecordingRef{}
	for pageNumber := 0; ; pageNumber++ {
		body, err := c.get(ctx, c.apiRoot+"/recordings?"+parameters.Encode())
		if err != nil {
			return nil, fmt.Errorf("could not list recordings (page %d): %w", pageNumber, err)
		}

		var page recordingsPage
		err = json.Unmarshal(body, &page)
		if err != nil {
			return nil, fmt.Errorf("could not parse recordings (page %d): %w", pageNumber, err)
		}

		for _, record := range page.Data.Records {
			for _, recordID := range record.RecordIDs {
				refs = append(refs, RecordingRef{CameraID: record.CameraID, RecordID: string(recordID)})
			}
		}
		logger.Debugf("Page %d: %d cameras; %d recordings so far", pageNumber, len(page.Data.Records), len(refs))

		if !page.Data.HasNextPage {
			break
		}
		nextReferenceID := string(page.Data.LastReferenceID)
		if nextReferenceID == "" || nextReferenceID == parameters.Get("last_reference_id") {
			return nil, fmt.Errorf("page %d has a next page but no new reference ID (%q)", pageNumber, nextReferenceID)
		}
		parameters.Set("last_reference_id", nextReferenceID)
	}

	return refs, nil
}

// FetchRecording returns the raw bytes of a single recording.
func (c *Client) FetchRecording(ctx context.Context, ref RecordingRef) ([]byte, error) {
	address := fmt.Sprintf("%s/recordings/%d/%s", c.apiRoot, ref.CameraID, url.PathEscape(ref.RecordID))
	body, err := c.get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("could not fetch recording %s: %w", ref, err)
	}
	logger.Debugf("Recording %s: %d bytes", ref, len(body))
	return body, nil
}

// Result is the outcome of fetching and decoding one recording.
type Result struct {
	Ref       RecordingRef
	Raw       []byte
	Recording *skeleton.Recording
	Err       error // Either the fetch or the decode error.
}

// FetchAll fetches and decodes every recording, a few at a time.
//
// The results are in the same order as the refs.  A failure for one
// recording is recorded in its result and does not stop the others.
func (c *Client) FetchAll(ctx context.Context, refs []RecordingRef, filter skeleton.PersonFilter) []Result {
	results := make([]Result, len(refs))

	var group errgroup.Group
	group.SetLimit(c.config.Concurrency)
	for i, ref := range refs {
		group.Go(func() error {
			results[i] = c.fetchAndDecode(ctx, ref, filter)
			return nil
		})
	}
	group.Wait()

	return results
}

func (c *Client) fetchAndDecode(ctx context.Context, ref RecordingRef, filter skeleton.PersonFilter) Result {
	result := Result{Ref: ref}

	raw, err := c.FetchRecording(ctx, ref)
	if err != nil {
		logger.Warnf("Skipping recording %s: %v", ref, err)
		result.Err = err
		return result
	}
	result.Raw = raw

	recording, err := skeleton.Decode(raw, filter)
	if err != nil {
		logger.Warnf("Could not decode recording %s: %v", ref, err)
		result.Err = fmt.Errorf("could not decode recording %s: %w", ref, err)
		return result
	}
	result.Recording = recording
	return result
}

// FilterRefsByCamera returns only the refs for the given cameras.
//
// With no camera IDs, all of the refs are returned.
func FilterRefsByCamera(refs []RecordingRef, cameraIDs []uint32) []RecordingRef {
	if len(cameraIDs) == 0 {
		return refs
	}
	cameraMap := map[uint32]bool{}
	for _, cameraID := range cameraIDs {
		cameraMap[cameraID] = true
	}

	filtered := []RecordingRef{}
	for _, ref := range refs {
		if cameraMap[ref.CameraID] {
			filtered = append(filtered, ref)
		}
	}
	return filtered
}
