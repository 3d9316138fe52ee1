package healpix

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiacat/gaiacat/pkg/types"
)

func TestFromRADec_BasePixels(t *testing.T) {
	cases := []struct {
		name    string
		ra, dec float64
		nest    int64
		ring    int64
	}{
		{"north pole", 0, 90, 0, 0},
		{"south pole", 0, -90, 8, 8},
		{"equator origin", 0, 0, 4, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nest, err := FromRADec(1, types.SchemeNested, tc.ra, tc.dec)
			require.NoError(t, err)
			assert.Equal(t, tc.nest, nest)

			ring, err := FromRADec(1, types.SchemeRing, tc.ra, tc.dec)
			require.NoError(t, err)
			assert.Equal(t, tc.ring, ring)
		})
	}
}

func TestFromRADec_InvalidInputs(t *testing.T) {
	_, err := FromRADec(6, types.SchemeNested, 0, 0)
	assert.Error(t, err)

	_, err = FromRADec(8, "spiral", 0, 0)
	assert.Error(t, err)
}

func TestNestedCentresRoundTrip(t *testing.T) {
	for _, nside := range []int64{1, 2, 8, 64} {
		ringSeen := make(map[int64]bool, NPix(nside))
		for pix := int64(0); pix < NPix(nside); pix++ {
			theta, phi := Pix2AngNest(nside, pix)
			require.Equal(t, pix, Ang2PixNest(nside, theta, phi), "nside=%d pix=%d", nside, pix)

			ring := Ang2PixRing(nside, theta, phi)
			require.GreaterOrEqual(t, ring, int64(0))
			require.Less(t, ring, NPix(nside))
			ringSeen[ring] = true
		}
		// Pixel centres map one to one onto ring indices.
		assert.Len(t, ringSeen, int(NPix(nside)), "nside=%d", nside)
	}
}

func TestSpreadCompress(t *testing.T) {
	for _, v := range []int64{0, 1, 2, 3, 255, 1<<20 + 7, 1<<31 - 1} {
		assert.Equal(t, v, compress(spread(v)))
	}
	assert.Equal(t, int64(0b0101), spread(0b11))
}

// TestProperty_PixelInRange checks that every position maps into [0, npix).
func TestProperty_PixelInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	for _, scheme := range []types.HealpixScheme{types.SchemeNested, types.SchemeRing} {
		scheme := scheme
		properties.Property(string(scheme)+" pixel within range", prop.ForAll(
			func(ra, dec float64, order int) bool {
				nside := int64(1) << uint(order)
				pix, err := FromRADec(nside, scheme, ra, dec)
				return err == nil && pix >= 0 && pix < NPix(nside)
			},
			gen.Float64Range(0, 360),
			gen.Float64Range(-90, 90),
			gen.IntRange(0, 12),
		))
	}

	properties.TestingRun(t)
}
