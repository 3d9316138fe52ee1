// Package types provides the core data types of the gaiacat catalog pipeline.
package types

// SourceRow is one record of a Gaia source file.
// Optional inputs are pointers; nil means the column was null in the source.
type SourceRow struct {
	// SourceID is the Gaia survey id (unique)
	SourceID int64 `json:"source_id"`

	// RA and Dec are equatorial coordinates in degrees
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`

	// RefEpoch is the reference epoch as a Julian year (e.g. 2016.0)
	RefEpoch float64 `json:"ref_epoch"`

	// Parallax in mas; PMRA and PMDec in mas/yr
	Parallax *float64 `json:"parallax,omitempty"`
	PMRA     *float64 `json:"pmra,omitempty"`
	PMDec    *float64 `json:"pmdec,omitempty"`

	// PhotGMeanMag is the G band mean magnitude, BPRP the BP-RP color index
	PhotGMeanMag *float64 `json:"phot_g_mean_mag,omitempty"`
	BPRP         *float64 `json:"bp_rp,omitempty"`
}

// HasPhotometry reports whether both photometric inputs are present.
func (r *SourceRow) HasPhotometry() bool {
	return r.PhotGMeanMag != nil && r.BPRP != nil
}

// Star is one row of the output catalog.
type Star struct {
	PK              int64   `parquet:"pk" json:"pk"`
	RA              float64 `parquet:"ra" json:"ra"`
	Dec             float64 `parquet:"dec" json:"dec"`
	Magnitude       float64 `parquet:"magnitude" json:"magnitude"`
	BV              float64 `parquet:"bv" json:"bv"`
	ConstellationID string  `parquet:"constellation_id" json:"constellation_id"`

	// HIP and TYC come from disjoint cross-match tables; nil when unmatched
	HIP *int64  `parquet:"hip" json:"hip,omitempty"`
	TYC *string `parquet:"tyc" json:"tyc,omitempty"`

	ParallaxMas   float64 `parquet:"parallax_mas" json:"parallax_mas"`
	RAMasPerYear  float64 `parquet:"ra_mas_per_year" json:"ra_mas_per_year"`
	DecMasPerYear float64 `parquet:"dec_mas_per_year" json:"dec_mas_per_year"`
	EpochYear     int64   `parquet:"epoch_year" json:"epoch_year"`

	// Geometry is a WKB encoded point (ra, dec)
	Geometry []byte `parquet:"geometry" json:"-"`

	// HealpixIndex is assigned by the catalog writer
	HealpixIndex int64 `parquet:"healpix_index" json:"healpix_index"`
}
