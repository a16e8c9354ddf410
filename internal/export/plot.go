// Package export renders finished runs to image files with gonum/plot.
package export

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/sim"
	"github.com/san-kum/mpctrack/internal/track"
)

var (
	ErrNoSteps = errors.New("export: run has no steps")
	ErrFormat  = errors.New("export: unsupported image format")
)

var (
	trackColor     = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	pathColor      = color.RGBA{R: 0, G: 160, B: 90, A: 255}
	predictedColor = color.RGBA{R: 220, G: 60, B: 60, A: 255}
)

var formats = map[string]bool{
	".png": true, ".svg": true, ".pdf": true, ".jpg": true, ".jpeg": true, ".eps": true,
}

func xys(pts []geom.Point) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, p := range pts {
		out[i].X = p.X
		out[i].Y = p.Y
	}
	return out
}

// Trajectory draws the track centre line, the driven path and the last
// predicted horizon.
func Trajectory(trk *track.Track, steps []sim.Step) (*plot.Plot, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectory on %s", trk.Name)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	centre := trk.Points
	if trk.Closed && len(centre) > 0 {
		centre = append(append([]geom.Point{}, centre...), centre[0])
	}
	ref, err := plotter.NewLine(xys(centre))
	if err != nil {
		return nil, err
	}
	ref.LineStyle.Color = trackColor
	ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	driven := make([]geom.Point, len(steps))
	for i, st := range steps {
		driven[i] = geom.Point{X: st.Pose.X, Y: st.Pose.Y}
	}
	path, err := plotter.NewLine(xys(driven))
	if err != nil {
		return nil, err
	}
	path.LineStyle.Color = pathColor
	path.LineStyle.Width = vg.Points(1.5)

	p.Add(plotter.NewGrid(), ref, path)
	p.Legend.Add("track", ref)
	p.Legend.Add("vehicle", path)

	if pred := steps[len(steps)-1].Predicted; len(pred) > 0 {
		sc, err := plotter.NewScatter(xys(pred))
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = predictedColor
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("predicted", sc)
	}
	p.Legend.Top = true
	return p, nil
}

// Series plots one value per cycle against simulated time.
func Series(title, ylabel string, steps []sim.Step, value func(sim.Step) float64) (*plot.Plot, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	pts := make(plotter.XYs, 0, len(steps))
	for _, st := range steps {
		v := value(st)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: st.Time, Y: v})
	}
	if len(pts) == 0 {
		return nil, ErrNoSteps
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = pathColor
	p.Add(plotter.NewGrid(), line)
	return p, nil
}

// Save writes p to path; the extension picks the format.
func Save(p *plot.Plot, path string, width, height vg.Length) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !formats[ext] {
		return fmt.Errorf("%q: %w", ext, ErrFormat)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return p.Save(width, height, path)
}

type seriesSpec struct {
	file, title, label string
	value              func(sim.Step) float64
}

var runSeries = []seriesSpec{
	{"cte", "Cross-track error", "cte (m)", func(s sim.Step) float64 { return s.CTE }},
	{"speed", "Speed", "v (m/s)", func(s sim.Step) float64 { return s.Speed }},
	{"steer", "Steering", "steer (rad)", func(s sim.Step) float64 { return s.Command.Steer }},
	{"accel", "Acceleration", "a", func(s sim.Step) float64 { return s.Command.Accel }},
}

// Run writes trajectory and per-signal plots for a run into dir using the
// given extension and returns the files written.
func Run(dir, ext string, trk *track.Track, steps []sim.Step) ([]string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	traj, err := Trajectory(trk, steps)
	if err != nil {
		return nil, err
	}
	files := []string{filepath.Join(dir, "trajectory"+ext)}
	if err := Save(traj, files[0], 6*vg.Inch, 6*vg.Inch); err != nil {
		return nil, err
	}

	for _, s := range runSeries {
		p, err := Series(s.title, s.label, steps, s.value)
		if err != nil {
			return files, err
		}
		file := filepath.Join(dir, s.file+ext)
		if err := Save(p, file, 8*vg.Inch, 3*vg.Inch); err != nil {
			return files, err
		}
		files = append(files, file)
	}
	return files, nil
}
