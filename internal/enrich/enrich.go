// Package enrich turns Gaia source rows into catalog stars.
package enrich

import (
	"strconv"

	"github.com/gaiacat/gaiacat/internal/constellation"
	"github.com/gaiacat/gaiacat/internal/crossmatch"
	"github.com/gaiacat/gaiacat/internal/geometry"
	"github.com/gaiacat/gaiacat/internal/photometry"
	"github.com/gaiacat/gaiacat/pkg/types"
)

// Decimal places kept in the catalog.
const (
	PositionPlaces   = 6
	MotionPlaces     = 6
	PhotometryPlaces = 2
)

// Enricher builds catalog stars from source rows. It holds only read-only
// state and may be shared, though each worker normally owns one.
type Enricher struct {
	hip     *crossmatch.Index[int64]
	tyc     *crossmatch.Index[string]
	locator constellation.Locator
}

// New creates an enricher. A nil locator leaves constellation_id empty.
func New(hip *crossmatch.Index[int64], tyc *crossmatch.Index[string], locator constellation.Locator) *Enricher {
	return &Enricher{hip: hip, tyc: tyc, locator: locator}
}

// Enrich converts a row. It returns false, without error, when either
// photometric input is missing; such rows never become stars.
func (e *Enricher) Enrich(row types.SourceRow) (types.Star, bool) {
	if !row.HasPhotometry() {
		return types.Star{}, false
	}

	bv, v := photometry.Convert(*row.PhotGMeanMag, *row.BPRP)
	ra := Round(row.RA, PositionPlaces)
	dec := Round(row.Dec, PositionPlaces)

	star := types.Star{
		PK:            row.SourceID,
		RA:            ra,
		Dec:           dec,
		Magnitude:     Round(v, PhotometryPlaces),
		BV:            Round(bv, PhotometryPlaces),
		ParallaxMas:   roundOptional(row.Parallax, MotionPlaces),
		RAMasPerYear:  roundOptional(row.PMRA, MotionPlaces),
		DecMasPerYear: roundOptional(row.PMDec, MotionPlaces),
		EpochYear:     int64(row.RefEpoch),
		Geometry:      geometry.MustPointWKB(ra, dec),
	}

	if hip, ok := e.hip.Get(row.SourceID); ok {
		star.HIP = &hip
	}
	if tyc, ok := e.tyc.Get(row.SourceID); ok {
		star.TYC = &tyc
	}
	if e.locator != nil {
		star.ConstellationID = e.locator.Find(ra, dec)
	}
	return star, true
}

// Round rounds x to places decimal places. Re-rounding a rounded value
// returns it unchanged.
func Round(x float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return r
}

func roundOptional(x *float64, places int) float64 {
	if x == nil {
		return 0
	}
	return Round(*x, places)
}
