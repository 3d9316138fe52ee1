// Package geometry encodes star positions as WKB points.
package geometry

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// PointWKB encodes (ra, dec) as a little-endian 2D WKB point.
func PointWKB(ra, dec float64) ([]byte, error) {
	p := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{ra, dec})
	return wkb.Marshal(p, wkb.NDR)
}

// DecodePoint decodes a WKB point written by PointWKB.
func DecodePoint(b []byte) (ra, dec float64, err error) {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return 0, 0, err
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, fmt.Errorf("expected point geometry, got %T", g)
	}
	return p.X(), p.Y(), nil
}

// MustPointWKB is PointWKB for callers holding plain float coordinates,
// which always encode.
func MustPointWKB(ra, dec float64) []byte {
	b, err := PointWKB(ra, dec)
	if err != nil {
		panic(err)
	}
	return b
}
