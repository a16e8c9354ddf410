package track

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/mpctrack/internal/geom"
)

func TestBuiltinTracks(t *testing.T) {
	for _, name := range Names() {
		tr, err := ByName(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if tr.Name != name {
			t.Errorf("name = %q, want %q", tr.Name, name)
		}
		if tr.Len() < 50 {
			t.Errorf("%s: only %d points", name, tr.Len())
		}
		for i := 1; i < tr.Len(); i++ {
			if d := tr.Points[i-1].Dist(tr.Points[i]); d > 2*DefaultSpacing {
				t.Fatalf("%s: gap of %f between %d and %d", name, d, i-1, i)
			}
		}
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("monaco"); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}

func TestCircleStartsAtOriginAlongX(t *testing.T) {
	c, _ := Circle(100, 10)
	start := c.Start(0)
	if math.Abs(start.X) > 1e-9 || math.Abs(start.Y) > 1e-9 {
		t.Errorf("start = %+v, want origin", start)
	}
	if math.Abs(start.Psi) > 0.1 {
		t.Errorf("start heading = %f, want about 0", start.Psi)
	}
	if l := c.Length(); math.Abs(l-2*math.Pi*100) > 5 {
		t.Errorf("length = %f, want about %f", l, 2*math.Pi*100)
	}
}

func TestStartOffsetIsLateral(t *testing.T) {
	s, _ := Sine(0, 1, 100, 10)
	p := s.Start(2)
	if p.X != 0 || math.Abs(p.Y-2) > 1e-12 {
		t.Errorf("offset start = %+v, want (0, 2)", p)
	}
}

func TestNearestAndWindow(t *testing.T) {
	s, _ := Sine(0, 1, 200, 10)
	idx := s.Nearest(geom.Point{X: 42, Y: 1}, -1)
	if idx != 4 {
		t.Errorf("nearest = %d, want 4", idx)
	}

	w := s.Window(idx, 6)
	if len(w) != 6 || w[0].X != 30 || w[5].X != 80 {
		t.Errorf("window = %v", w)
	}

	// open track near its end
	w = s.Window(19, 6)
	if len(w) != 3 {
		t.Errorf("window at end has %d points, want 3", len(w))
	}
	if !s.Done(19) || s.Done(10) {
		t.Error("Done wrong near end of open track")
	}
}

func TestWindowWrapsOnClosedTrack(t *testing.T) {
	c, _ := Circle(100, 10)
	w := c.Window(0, 4)
	if w[0] != c.Points[c.Len()-1] || w[1] != c.Points[0] {
		t.Errorf("window did not wrap: %v", w[:2])
	}
	if c.Done(c.Len() - 1) {
		t.Error("closed track reported done")
	}
}

func TestNearestHintStaysOnLobe(t *testing.T) {
	f, _ := FigureEight(150, 10)
	n := f.Len()
	// the crossing point is visited twice; the hint decides which pass
	second := n / 2
	if got := f.Nearest(geom.Point{}, second-1); got != second {
		t.Errorf("nearest with hint = %d, want %d", got, second)
	}
}

func TestErrors(t *testing.T) {
	s, _ := Sine(0, 1, 100, 10)
	cte, epsi := s.Errors(geom.Pose{X: 25, Y: 1.5, Psi: 0.1}, 2)
	if math.Abs(cte-1.5) > 1e-12 {
		t.Errorf("cte = %f, want 1.5", cte)
	}
	if math.Abs(epsi-0.1) > 1e-12 {
		t.Errorf("epsi = %f, want 0.1", epsi)
	}
}

func TestReadCSV(t *testing.T) {
	in := "x,y\n# comment\n0,0\n10, 1\n20,4\n30,9\n"
	tr, err := Read(strings.NewReader(in), "lake", false)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tr.Len() != 4 || tr.Points[1] != (geom.Point{X: 10, Y: 1}) {
		t.Errorf("points = %v", tr.Points)
	}

	if _, err := Read(strings.NewReader("0,0\n1,x\n"), "bad", false); !errors.Is(err, ErrBadWaypoint) {
		t.Errorf("expected ErrBadWaypoint, got %v", err)
	}
	if _, err := Read(strings.NewReader("0,0\n1,1\n"), "short", false); !errors.Is(err, ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	c, _ := Circle(50, 5)
	var buf bytes.Buffer
	if err := Write(&buf, c); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "loop.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != "loop" || !got.Closed || got.Len() != c.Len() {
		t.Errorf("loaded %s closed=%v len=%d", got.Name, got.Closed, got.Len())
	}
	if d := got.Points[7].Dist(c.Points[7]); d > 1e-5 {
		t.Errorf("point 7 moved by %g", d)
	}
}
