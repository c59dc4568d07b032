package report

import (
	"encoding/json"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mun0404/IRIS/internal/inspect"
)

// CheckpointStats is a per-checkpoint rollup of detection confidence across
// every event recorded for that checkpoint this run.
type CheckpointStats struct {
	CheckpointID       string  `json:"checkpoint_id"`
	CheckpointSequence int     `json:"checkpoint_sequence"`
	Events             int     `json:"events"`
	Passed             int     `json:"passed"`
	Failed             int     `json:"failed"`
	Samples            int     `json:"confidence_samples"`
	MeanConfidence     float64 `json:"mean_confidence"`
	P50Confidence      float64 `json:"p50_confidence"`
	P95Confidence      float64 `json:"p95_confidence"`
}

// Stats aggregates rows into per-checkpoint confidence statistics, ordered
// by checkpoint sequence. Conditions without a confidence value (UNKNOWN or
// NOT_IMPLEMENTED observations) contribute no samples.
func Stats(rows []Row) []CheckpointStats {
	type acc struct {
		stats CheckpointStats
		confs []float64
	}
	byID := make(map[string]*acc)

	for _, row := range rows {
		a, ok := byID[row.CheckpointID]
		if !ok {
			a = &acc{stats: CheckpointStats{
				CheckpointID:       row.CheckpointID,
				CheckpointSequence: row.CheckpointSequence,
			}}
			byID[row.CheckpointID] = a
		}
		a.stats.Events++
		if row.Result == "PASS" {
			a.stats.Passed++
		} else {
			a.stats.Failed++
		}

		var conds []inspect.ConditionResult
		if len(row.Conditions) > 0 {
			if err := json.Unmarshal(row.Conditions, &conds); err != nil {
				continue
			}
		}
		for _, c := range conds {
			if c.Confidence != nil {
				a.confs = append(a.confs, *c.Confidence)
			}
		}
	}

	out := make([]CheckpointStats, 0, len(byID))
	for _, a := range byID {
		if n := len(a.confs); n > 0 {
			sort.Float64s(a.confs)
			a.stats.Samples = n
			a.stats.MeanConfidence = stat.Mean(a.confs, nil)
			a.stats.P50Confidence = stat.Quantile(0.50, stat.Empirical, a.confs, nil)
			a.stats.P95Confidence = stat.Quantile(0.95, stat.Empirical, a.confs, nil)
		}
		out = append(out, a.stats)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckpointSequence < out[j].CheckpointSequence
	})
	return out
}
