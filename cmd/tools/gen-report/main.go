// gen-report rebuilds the JSON and CSV report exports from an event log
// offline, without the server running. Useful for inspecting an archived
// run directory or recovering exports after a partial write.
package main

import (
	"flag"
	"log"

	"github.com/mun0404/IRIS/internal/fsutil"
	"github.com/mun0404/IRIS/internal/report"
)

var (
	eventsPath = flag.String("events", "data/current/events.jsonl", "Event log to read")
	jsonPath   = flag.String("json", "report.json", "JSON report output path")
	csvPath    = flag.String("csv", "report.csv", "CSV report output path")
	stats      = flag.Bool("stats", false, "Print per-checkpoint statistics instead of writing files")
)

func main() {
	flag.Parse()

	osfs := fsutil.OSFileSystem{}

	rows, err := report.Build(osfs, *eventsPath)
	if err != nil {
		log.Fatalf("failed to read event log: %v", err)
	}
	log.Printf("read %d events from %s", len(rows), *eventsPath)

	if *stats {
		for _, st := range report.Stats(rows) {
			log.Printf("%-12s events=%d passed=%d failed=%d mean_conf=%.3f p95_conf=%.3f",
				st.CheckpointID, st.Events, st.Passed, st.Failed, st.MeanConfidence, st.P95Confidence)
		}
		return
	}

	if err := report.WriteFiles(osfs, *eventsPath, *jsonPath, *csvPath); err != nil {
		log.Fatalf("failed to write reports: %v", err)
	}
	log.Printf("wrote %s and %s", *jsonPath, *csvPath)
}
