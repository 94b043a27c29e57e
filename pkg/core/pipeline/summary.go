package pipeline

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// Summary describes a finished run.
type Summary struct {
	RunID      string `json:"run_id"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	YearsGrown int    `json:"years_grown"`
	// Final basal areas (m²/ha, 7.5cm+) of the projected polygons.
	TotalFinalBasalArea float64       `json:"total_final_basal_area"`
	MeanFinalBasalArea  float64       `json:"mean_final_basal_area"`
	MaxFinalBasalArea   float64       `json:"max_final_basal_area"`
	Elapsed             time.Duration `json:"elapsed"`
	// FailedPolygons lists the failures in input order.
	FailedPolygons []PolygonFailure `json:"failed_polygons,omitempty"`

	finalBasalAreas []float64
}

func newSummary(runID string) *Summary {
	return &Summary{RunID: runID}
}

func (s *Summary) add(o outcome) {
	if o.failure != nil {
		s.Failed++
		s.FailedPolygons = append(s.FailedPolygons, *o.failure)
		return
	}
	s.Processed++
	if n := len(o.result.Years); n > 1 {
		s.YearsGrown += n - 1
	}
	s.finalBasalAreas = append(s.finalBasalAreas, float64(o.result.FinalBasalArea()))
}

func (s *Summary) finish(elapsed time.Duration) {
	s.Elapsed = elapsed
	if len(s.finalBasalAreas) == 0 {
		return
	}
	s.TotalFinalBasalArea = floats.Sum(s.finalBasalAreas)
	s.MeanFinalBasalArea = s.TotalFinalBasalArea / float64(len(s.finalBasalAreas))
	s.MaxFinalBasalArea = floats.Max(s.finalBasalAreas)
}
