// Package report derives flat tabular exports from the checkpoint event log.
// It only ever reads the log; it never touches the run store's live state.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mun0404/IRIS/internal/fsutil"
	"github.com/mun0404/IRIS/internal/monitoring"
)

// Columns is the fixed CSV column set, in order.
var Columns = []string{
	"run_id",
	"run_start_utc",
	"timestamp_utc",
	"checkpoint_id",
	"checkpoint_sequence",
	"result",
	"image_ref",
	"conditions",
}

// Row is one flattened checkpoint event. Conditions stay embedded as a
// structured blob rather than being exploded into separate rows.
type Row struct {
	RunID              string          `json:"run_id"`
	RunStartUTC        string          `json:"run_start_utc"`
	TimestampUTC       string          `json:"timestamp_utc"`
	CheckpointID       string          `json:"checkpoint_id"`
	CheckpointSequence int             `json:"checkpoint_sequence"`
	Result             string          `json:"result"`
	ImageRef           string          `json:"image_ref"`
	Conditions         json.RawMessage `json:"conditions"`

	// Raw is the full event object as appended to the log, preserved for
	// the JSON export.
	Raw json.RawMessage `json:"-"`
}

// Build reads the event log and returns one row per event, in append order
// (the log is append-only, so append order is chronological order). A
// missing log or an empty log yields zero rows. Malformed lines are skipped
// with a diagnostic rather than failing the whole export.
func Build(fs fsutil.FileSystem, eventsPath string) ([]Row, error) {
	if !fs.Exists(eventsPath) {
		return nil, nil
	}
	data, err := fs.ReadFile(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	var rows []Row
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row Row
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			monitoring.Logf("report: skipping malformed event log line %d: %v", i+1, err)
			continue
		}
		row.Raw = json.RawMessage(line)
		rows = append(rows, row)
	}
	return rows, nil
}

// MarshalJSON renders the rows as a JSON array of the original event
// objects. An empty report is a valid empty array.
func MarshalJSON(rows []Row) ([]byte, error) {
	raws := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		raws[i] = r.Raw
	}
	return json.MarshalIndent(raws, "", "  ")
}

// MarshalCSV renders the rows with the fixed column set. Zero rows yield
// zero bytes: no header line. Consumers treat a headerless file as a valid
// empty report, not an error.
func MarshalCSV(rows []Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, r := range rows {
		conditions := string(r.Conditions)
		if conditions == "" {
			conditions = "[]"
		}
		record := []string{
			r.RunID,
			r.RunStartUTC,
			r.TimestampUTC,
			r.CheckpointID,
			strconv.Itoa(r.CheckpointSequence),
			r.Result,
			r.ImageRef,
			conditions,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFiles builds the report from the event log and writes the JSON and
// CSV exports atomically.
func WriteFiles(fs fsutil.FileSystem, eventsPath, jsonPath, csvPath string) error {
	rows, err := Build(fs, eventsPath)
	if err != nil {
		return err
	}

	jsonOut, err := MarshalJSON(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal report json: %w", err)
	}
	if err := fs.WriteFileAtomic(jsonPath, jsonOut, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}

	csvOut, err := MarshalCSV(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal report csv: %w", err)
	}
	if err := fs.WriteFileAtomic(csvPath, csvOut, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", csvPath, err)
	}
	return nil
}
