package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/sim"
)

type ExportStep struct {
	Time      float64      `json:"time"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Psi       float64      `json:"psi"`
	Speed     float64      `json:"speed"`
	CTE       float64      `json:"cte"`
	EPsi      float64      `json:"epsi"`
	Steer     float64      `json:"steer"`
	Accel     float64      `json:"accel"`
	Status    string       `json:"status"`
	Cost      float64      `json:"cost"`
	SolveMs   float64      `json:"solve_ms"`
	Fallback  bool         `json:"fallback,omitempty"`
	Predicted []geom.Point `json:"predicted,omitempty"`
}

type ExportData struct {
	Run   RunMetadata  `json:"run"`
	Steps []ExportStep `json:"steps"`
}

func NewExport(meta RunMetadata, steps []sim.Step) ExportData {
	data := ExportData{
		Run:   meta,
		Steps: make([]ExportStep, len(steps)),
	}
	for i, st := range steps {
		data.Steps[i] = ExportStep{
			Time:      st.Time,
			X:         st.Pose.X,
			Y:         st.Pose.Y,
			Psi:       st.Pose.Psi,
			Speed:     st.Speed,
			CTE:       st.CTE,
			EPsi:      st.EPsi,
			Steer:     st.Command.Steer,
			Accel:     st.Command.Accel,
			Status:    st.Status.String(),
			Cost:      st.Cost,
			SolveMs:   float64(st.SolveTime.Microseconds()) / 1000,
			Fallback:  st.Fallback,
			Predicted: st.Predicted,
		}
	}
	return data
}

func ExportJSON(w io.Writer, meta RunMetadata, steps []sim.Step) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExport(meta, steps))
}
