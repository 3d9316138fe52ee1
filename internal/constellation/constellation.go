// Package constellation locates the IAU constellation containing a position.
//
// Lookups use the boundary table of Roman (1987), CDS catalogue VI/42, whose
// boundaries are defined on the B1875 equator. Positions are precessed from
// J2000 before the table is searched.
package constellation

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/precess"
	"github.com/soniakeys/unit"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
)

// Locator finds the constellation of a J2000 position in degrees.
// It returns the lowercase IAU abbreviation, or "" when no boundary matches.
type Locator interface {
	Find(ra, dec float64) string
}

// Boundary is one row of the boundary table.
type Boundary struct {
	RALow  float64 // hours, B1875
	RAHigh float64 // hours, B1875
	DecLow float64 // degrees, B1875
	Abbr   string
}

// Table is a boundary table ready for lookups. It is safe for concurrent use.
type Table struct {
	rows []Boundary
	prec *precess.Precessor
}

// LoadTable reads a boundary table file.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gerrors.NewConfigError("failed to open constellation boundaries", err)
	}
	defer f.Close()

	t, err := ParseTable(f)
	if err != nil {
		return nil, gerrors.NewConfigError(fmt.Sprintf("failed to parse constellation boundaries %s", path), err)
	}
	return t, nil
}

// ParseTable parses whitespace separated rows of RA low, RA high, Dec low and abbreviation.
// Blank lines and lines starting with '#' are skipped. Row order is kept.
func ParseTable(r io.Reader) (*Table, error) {
	var rows []Boundary
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields, got %d", line, len(fields))
		}
		var b Boundary
		var err error
		if b.RALow, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return nil, fmt.Errorf("line %d: ra low: %w", line, err)
		}
		if b.RAHigh, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("line %d: ra high: %w", line, err)
		}
		if b.DecLow, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("line %d: dec low: %w", line, err)
		}
		b.Abbr = strings.ToLower(fields[3])
		rows = append(rows, b)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no boundaries found")
	}
	return &Table{rows: rows, prec: precess.NewPrecessor(2000, 1875)}, nil
}

// Len returns the number of boundary rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Find returns the constellation of a J2000 position in degrees.
func (t *Table) Find(ra, dec float64) string {
	raH, decD := t.ToB1875(ra, dec)
	return t.FindB1875(raH, decD)
}

// ToB1875 precesses a J2000 position in degrees to B1875 RA hours and Dec degrees.
func (t *Table) ToB1875(ra, dec float64) (raHours, decDeg float64) {
	from := &coord.Equatorial{
		RA:  unit.RA(ra * math.Pi / 180),
		Dec: unit.Angle(dec * math.Pi / 180),
	}
	to := t.prec.Precess(from, &coord.Equatorial{})

	raRad := math.Mod(float64(to.RA), 2*math.Pi)
	if raRad < 0 {
		raRad += 2 * math.Pi
	}
	return raRad * 12 / math.Pi, float64(to.Dec) * 180 / math.Pi
}

// FindB1875 searches the table with a B1875 position. The first row whose
// lower declination is at or below dec and whose RA span holds ra wins.
func (t *Table) FindB1875(raHours, decDeg float64) string {
	for _, b := range t.rows {
		if decDeg < b.DecLow {
			continue
		}
		if raHours >= b.RALow && raHours < b.RAHigh {
			return b.Abbr
		}
	}
	return ""
}
