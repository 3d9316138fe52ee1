package enrich

import "github.com/gaiacat/gaiacat/pkg/types"

// Counters tallies the outcome of enriching rows.
type Counters struct {
	Emitted       int64 `json:"catalog_length"`
	SkippedNoMag  int64 `json:"skipped_no_mag"`
	CrossmatchHip int64 `json:"crossmatches_hip"`
	CrossmatchTyc int64 `json:"crossmatches_tyc"`
}

// Observe records one Enrich result. A star matched in both tables counts
// only as a Hipparcos match.
func (c *Counters) Observe(star types.Star, ok bool) {
	if !ok {
		c.SkippedNoMag++
		return
	}
	c.Emitted++
	switch {
	case star.HIP != nil:
		c.CrossmatchHip++
	case star.TYC != nil:
		c.CrossmatchTyc++
	}
}

// Add merges other into c.
func (c *Counters) Add(other Counters) {
	c.Emitted += other.Emitted
	c.SkippedNoMag += other.SkippedNoMag
	c.CrossmatchHip += other.CrossmatchHip
	c.CrossmatchTyc += other.CrossmatchTyc
}

// Rows returns the number of rows observed.
func (c Counters) Rows() int64 {
	return c.Emitted + c.SkippedNoMag
}
