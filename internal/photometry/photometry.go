// Package photometry converts Gaia photometry to Johnson V and B-V through
// the Tycho-2 BT/VT bands.
//
// The Gaia to Tycho relations are the polynomials of Table 5.6 of the Gaia
// EDR3 documentation (photometric relations with other systems). The Tycho
// to Johnson step is note 7 of the Tycho-2 ReadMe.
package photometry

import "math"

// BT returns the Tycho BT magnitude for a G magnitude and BP-RP color.
func BT(g, bpRP float64) float64 {
	gBT := (-0.8547 * bpRP) +
		(0.1244 * math.Pow(bpRP, 2)) -
		(0.9085 * math.Pow(bpRP, 3)) +
		(0.4843 * math.Pow(bpRP, 4)) -
		(0.06814 * math.Pow(bpRP, 5)) -
		0.004288
	return g - gBT
}

// VT returns the Tycho VT magnitude for a G magnitude and BP-RP color.
func VT(g, bpRP float64) float64 {
	gVT := (-0.0682 * bpRP) -
		(0.2387 * math.Pow(bpRP, 2)) +
		(0.02342 * math.Pow(bpRP, 3)) -
		0.01077
	return g - gVT
}

// Convert returns (B-V, V) for a G magnitude and BP-RP color.
// It is pure and defined for all finite inputs.
func Convert(g, bpRP float64) (bv, v float64) {
	bt := BT(g, bpRP)
	vt := VT(g, bpRP)
	return 0.850 * (bt - vt), vt - 0.090*(bt-vt)
}

// TychoToJohnson converts Tycho magnitudes where either band may be missing.
// With one band missing, B-V is unknown and V falls back to the band given.
func TychoToJohnson(bt, vt *float64) (bv, v *float64) {
	if bt == nil || vt == nil {
		if vt != nil {
			return nil, vt
		}
		return nil, bt
	}
	b := 0.850 * (*bt - *vt)
	m := *vt - 0.090*(*bt-*vt)
	return &b, &m
}
