package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/sim"
)

var ErrNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	stepsFile    = "steps.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string             `json:"id"`
	Track      string             `json:"track"`
	TrackFile  string             `json:"track_file,omitempty"`
	Controller string             `json:"controller"`
	Timestamp  time.Time          `json:"timestamp"`
	Params     mpc.Params         `json:"params"`
	Latency    time.Duration      `json:"latency"`
	Cycle      time.Duration      `json:"cycle"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Steps      int                `json:"steps"`
	Completed  bool               `json:"completed"`
	Failures   int                `json:"failures"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes the run under a fresh ID and returns it. ID, Timestamp and
// Steps in meta are filled in here.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Track, uuid.NewString()[:8])
	meta.Timestamp = time.Now()
	meta.Steps = len(result.Steps)
	meta.Completed = result.Completed
	meta.Failures = len(result.Errors)
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, stepsFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteSteps(csvFile, result.Steps); err != nil {
		return "", err
	}
	return meta.ID, nil
}

var stepHeader = []string{
	"index", "time", "x", "y", "psi", "speed", "cte", "epsi",
	"steer", "accel", "status", "cost", "solve_ms", "fallback",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteSteps writes one CSV row per cycle. Predicted and reference points
// are not persisted.
func WriteSteps(w io.Writer, steps []sim.Step) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(stepHeader); err != nil {
		return err
	}
	for _, st := range steps {
		row := []string{
			strconv.Itoa(st.Index),
			formatFloat(st.Time),
			formatFloat(st.Pose.X),
			formatFloat(st.Pose.Y),
			formatFloat(st.Pose.Psi),
			formatFloat(st.Speed),
			formatFloat(st.CTE),
			formatFloat(st.EPsi),
			formatFloat(st.Command.Steer),
			formatFloat(st.Command.Accel),
			st.Status.String(),
			formatFloat(st.Cost),
			formatFloat(float64(st.SolveTime.Microseconds()) / 1000),
			strconv.FormatBool(st.Fallback),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrNotFound)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSteps(runID string) ([]sim.Step, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, stepsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrNotFound)
		}
		return nil, err
	}
	defer file.Close()
	return ReadSteps(file)
}

func ReadSteps(r io.Reader) ([]sim.Step, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(stepHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Step{}, nil
	}

	steps := make([]sim.Step, 0, len(records)-1)
	for line, rec := range records[1:] {
		st, err := parseStep(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line+2, err)
		}
		steps = append(steps, st)
	}
	return steps, nil
}

func parseStep(rec []string) (sim.Step, error) {
	var st sim.Step
	idx, err := strconv.Atoi(rec[0])
	if err != nil {
		return st, err
	}
	st.Index = idx

	vals := make([]float64, 0, 9)
	for _, field := range []string{rec[1], rec[2], rec[3], rec[4], rec[5], rec[6], rec[7], rec[8], rec[9]} {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return st, err
		}
		vals = append(vals, v)
	}
	st.Time = vals[0]
	st.Pose = geom.Pose{X: vals[1], Y: vals[2], Psi: vals[3]}
	st.Speed = vals[4]
	st.CTE = vals[5]
	st.EPsi = vals[6]
	st.Command.Steer = vals[7]
	st.Command.Accel = vals[8]

	if err := st.Status.UnmarshalText([]byte(rec[10])); err != nil {
		return st, err
	}
	if st.Cost, err = strconv.ParseFloat(rec[11], 64); err != nil {
		return st, err
	}
	ms, err := strconv.ParseFloat(rec[12], 64)
	if err != nil {
		return st, err
	}
	st.SolveTime = time.Duration(ms * float64(time.Millisecond))
	if st.Fallback, err = strconv.ParseBool(rec[13]); err != nil {
		return st, err
	}
	return st, nil
}
