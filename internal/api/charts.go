package api

import (
	"bytes"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mun0404/IRIS/internal/httputil"
	"github.com/mun0404/IRIS/internal/report"
)

// summaryChart renders a per-checkpoint pass/fail bar chart (HTML) from the
// event log. It is a lightweight operator view; the dashboard proper lives
// in the static assets.
func (s *Server) summaryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	rows, err := report.Build(s.fs, s.store.EventsPath())
	if err != nil {
		httputil.InternalServerError(w, "failed to read event log")
		return
	}
	stats := report.Stats(rows)

	labels := make([]string, 0, len(stats))
	passed := make([]opts.BarData, 0, len(stats))
	failed := make([]opts.BarData, 0, len(stats))
	for _, st := range stats {
		labels = append(labels, st.CheckpointID)
		passed = append(passed, opts.BarData{Value: st.Passed})
		failed = append(failed, opts.BarData{Value: st.Failed})
	}

	subtitle := "no events recorded yet"
	if run, ok := s.store.Run(); ok {
		subtitle = run.RunID
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Inspection Summary"}),
		charts.WithTitleOpts(opts.Title{Title: "Checkpoint Events", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("passed", passed)
	bar.AddSeries("failed", failed)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
