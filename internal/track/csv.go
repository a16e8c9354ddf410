package track

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/mpctrack/internal/geom"
)

// Read parses "x,y" rows. A first row that does not parse as numbers is
// treated as a header.
func Read(r io.Reader, name string, closed bool) (*Track, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	pts := make([]geom.Point, 0, len(records))
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrBadWaypoint)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errX != nil || errY != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", i+1, ErrBadWaypoint)
		}
		pts = append(pts, geom.Point{X: x, Y: y})
	}
	return New(name, pts, closed)
}

// Load reads a waypoint CSV. Tracks whose last point lies within two
// average spacings of the first are closed.
func Load(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := Read(f, name, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	n := len(t.Points)
	avg := t.Length() / float64(n-1)
	t.Closed = t.Points[0].Dist(t.Points[n-1]) < 2*avg
	return t, nil
}

func Write(w io.Writer, t *Track) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y"}); err != nil {
		return err
	}
	for _, p := range t.Points {
		row := []string{
			strconv.FormatFloat(p.X, 'f', 6, 64),
			strconv.FormatFloat(p.Y, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
