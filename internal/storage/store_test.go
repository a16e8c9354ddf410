package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/mpctrack/internal/actuator"
	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/sim"
)

func sampleResult() *sim.Result {
	return &sim.Result{
		Steps: []sim.Step{
			{Index: 0, Time: 0, Pose: geom.Pose{X: 1, Y: 2, Psi: 0.1}, Speed: 5, CTE: 0.5, EPsi: -0.02,
				Command: actuator.Command{Steer: 0.05, Accel: 1}, Status: mpc.Converged, Cost: 12.5,
				SolveTime: 20 * time.Millisecond},
			{Index: 1, Time: 0.1, Pose: geom.Pose{X: 1.5, Y: 2.1, Psi: 0.09}, Speed: 5.1, CTE: 0.4, EPsi: -0.01,
				Command: actuator.Command{Steer: -0.3, Accel: -1}, Status: mpc.Infeasible, Fallback: true,
				Predicted: []geom.Point{{X: 2, Y: 2}}},
		},
		Metrics:   map[string]float64{"cte_rms": 0.45},
		Completed: true,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{Track: "sine", Controller: "mpc", Params: mpc.DefaultParams()}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, "sine_") {
		t.Errorf("expected run id prefixed with track, got %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Track != "sine" || meta.Steps != 2 || !meta.Completed {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Params.Horizon != 15 {
		t.Errorf("expected horizon 15, got %d", meta.Params.Horizon)
	}
	if meta.Metrics["cte_rms"] != 0.45 {
		t.Errorf("expected cte_rms 0.45, got %f", meta.Metrics["cte_rms"])
	}

	steps, err := st.LoadSteps(runID)
	if err != nil {
		t.Fatalf("load steps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[1].Status != mpc.Infeasible || !steps[1].Fallback {
		t.Errorf("status not restored: %+v", steps[1])
	}
	if steps[0].SolveTime != 20*time.Millisecond {
		t.Errorf("expected 20ms solve time, got %v", steps[0].SolveTime)
	}
	if steps[1].Command.Steer != -0.3 || steps[0].Pose.Psi != 0.1 {
		t.Errorf("values not restored: %+v", steps)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	for i := 0; i < 2; i++ {
		if _, err := st.Save(RunMetadata{Track: "circle"}, sampleResult()); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	// stray files are ignored
	if err := os.WriteFile(filepath.Join(st.Dir(), "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID == runs[1].ID {
		t.Error("run ids collide")
	}
}

func TestStoreMissingRun(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.LoadSteps("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadStepsRejectsBadRow(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSteps(&buf, sampleResult().Steps); err != nil {
		t.Fatal(err)
	}
	corrupt := strings.Replace(buf.String(), "converged", "lost", 1)

	if _, err := ReadSteps(strings.NewReader(corrupt)); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	meta := RunMetadata{ID: "sine_1", Track: "sine"}
	if err := ExportJSON(&buf, meta, sampleResult().Steps); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.Run.ID != "sine_1" || len(data.Steps) != 2 {
		t.Errorf("unexpected export %+v", data)
	}
	if data.Steps[1].Status != "infeasible" || len(data.Steps[1].Predicted) != 1 {
		t.Errorf("unexpected step %+v", data.Steps[1])
	}
	if data.Steps[0].SolveMs != 20 {
		t.Errorf("expected 20ms, got %f", data.Steps[0].SolveMs)
	}
}
