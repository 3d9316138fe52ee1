// Package healpix maps sky positions to HEALPix pixel indices.
//
// Only the pieces the catalog needs are implemented: ang2pix in both
// numbering schemes and pixel centres in the nested scheme. Nside must be a
// power of two.
package healpix

import (
	"fmt"
	"math"

	"github.com/gaiacat/gaiacat/pkg/types"
)

const (
	twoThirds = 2.0 / 3.0
	halfPi    = math.Pi / 2
	twoPi     = 2 * math.Pi
)

// Face row and column offsets of the twelve base pixels.
var (
	jrll = [12]int64{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]int64{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// NPix returns the number of pixels at resolution nside.
func NPix(nside int64) int64 {
	return 12 * nside * nside
}

// ValidNside reports whether nside is a supported resolution.
func ValidNside(nside int64) bool {
	return nside >= 1 && nside <= 1<<29 && nside&(nside-1) == 0
}

// FromRADec returns the pixel containing (ra, dec) given in degrees.
func FromRADec(nside int64, scheme types.HealpixScheme, ra, dec float64) (int64, error) {
	if !ValidNside(nside) {
		return 0, fmt.Errorf("healpix: nside %d is not a power of two", nside)
	}
	theta := (90 - dec) * math.Pi / 180
	phi := ra * math.Pi / 180
	switch scheme {
	case types.SchemeNested, "":
		return Ang2PixNest(nside, theta, phi), nil
	case types.SchemeRing:
		return Ang2PixRing(nside, theta, phi), nil
	default:
		return 0, fmt.Errorf("healpix: unknown scheme %q", scheme)
	}
}

// Ang2PixNest returns the nested pixel index of colatitude theta and longitude phi (radians).
func Ang2PixNest(nside int64, theta, phi float64) int64 {
	z := math.Cos(theta)
	za := math.Abs(z)
	tt := normPhi(phi) / halfPi // [0,4)

	var face, ix, iy int64
	if za <= twoThirds {
		temp1 := float64(nside) * (0.5 + tt)
		temp2 := float64(nside) * z * 0.75
		jp := int64(temp1 - temp2)
		jm := int64(temp1 + temp2)
		ifp := jp / nside
		ifm := jm / nside
		switch {
		case ifp == ifm:
			face = ifp | 4
		case ifp < ifm:
			face = ifp
		default:
			face = ifm + 8
		}
		ix = jm & (nside - 1)
		iy = nside - (jp & (nside - 1)) - 1
	} else {
		ntt := int64(tt)
		if ntt >= 4 {
			ntt = 3
		}
		tp := tt - float64(ntt)
		tmp := float64(nside) * math.Sqrt(3*(1-za))
		jp := int64(tp * tmp)
		jm := int64((1 - tp) * tmp)
		if jp >= nside {
			jp = nside - 1
		}
		if jm >= nside {
			jm = nside - 1
		}
		if z >= 0 {
			face = ntt
			ix = nside - jm - 1
			iy = nside - jp - 1
		} else {
			face = ntt + 8
			ix = jp
			iy = jm
		}
	}
	return face*nside*nside + spread(ix) + spread(iy)<<1
}

// Ang2PixRing returns the ring pixel index of colatitude theta and longitude phi (radians).
func Ang2PixRing(nside int64, theta, phi float64) int64 {
	z := math.Cos(theta)
	za := math.Abs(z)
	tt := normPhi(phi) / halfPi // [0,4)

	if za <= twoThirds {
		temp1 := float64(nside) * (0.5 + tt)
		temp2 := float64(nside) * z * 0.75
		jp := int64(temp1 - temp2)
		jm := int64(temp1 + temp2)
		ir := nside + 1 + jp - jm
		kshift := 1 - (ir & 1)
		ip := (jp + jm - nside + kshift + 1) / 2
		ip = mod(ip, 4*nside)
		ncap := 2 * nside * (nside - 1)
		return ncap + (ir-1)*4*nside + ip
	}

	tp := tt - math.Floor(tt)
	tmp := float64(nside) * math.Sqrt(3*(1-za))
	jp := int64(tp * tmp)
	jm := int64((1 - tp) * tmp)
	ir := jp + jm + 1
	ip := int64(tt * float64(ir))
	ip = mod(ip, 4*ir)
	if z > 0 {
		return 2*ir*(ir-1) + ip
	}
	return NPix(nside) - 2*ir*(ir+1) + ip
}

// Pix2AngNest returns the centre (theta, phi) in radians of a nested pixel.
func Pix2AngNest(nside, pix int64) (theta, phi float64) {
	npface := nside * nside
	npix := 12 * npface
	fact2 := 4.0 / float64(npix)
	fact1 := float64(nside<<1) * fact2
	nl4 := 4 * nside

	face := pix / npface
	ipf := pix % npface
	ix := compress(ipf)
	iy := compress(ipf >> 1)

	jr := jrll[face]*nside - ix - iy - 1

	var nr, kshift int64
	var z float64
	switch {
	case jr < nside:
		nr = jr
		z = 1 - float64(nr*nr)*fact2
	case jr > 3*nside:
		nr = nl4 - jr
		z = float64(nr*nr)*fact2 - 1
	default:
		nr = nside
		z = float64(2*nside-jr) * fact1
		kshift = (jr - nside) & 1
	}

	jp := (jpll[face]*nr + ix - iy + 1 + kshift) / 2
	if jp > nl4 {
		jp -= nl4
	}
	if jp < 1 {
		jp += nl4
	}
	phi = (float64(jp) - float64(kshift+1)*0.5) * (halfPi / float64(nr))
	return math.Acos(z), phi
}

func normPhi(phi float64) float64 {
	phi = math.Mod(phi, twoPi)
	if phi < 0 {
		phi += twoPi
	}
	if phi >= twoPi {
		phi = 0
	}
	return phi
}

func mod(a, n int64) int64 {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

// spread interleaves zero bits between the low 32 bits of v.
func spread(v int64) int64 {
	x := uint64(v) & 0xffffffff
	x = (x | x<<16) & 0x0000ffff0000ffff
	x = (x | x<<8) & 0x00ff00ff00ff00ff
	x = (x | x<<4) & 0x0f0f0f0f0f0f0f0f
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return int64(x)
}

// compress is the inverse of spread, taking the even bits of v.
func compress(v int64) int64 {
	x := uint64(v) & 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0f0f0f0f0f0f0f0f
	x = (x | x>>4) & 0x00ff00ff00ff00ff
	x = (x | x>>8) & 0x0000ffff0000ffff
	x = (x | x>>16) & 0x00000000ffffffff
	return int64(x)
}
