package compaction

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/gaiacat/gaiacat/pkg/types"
)

// Fingerprint is an order-independent digest of a multiset of stars.
// Two files hold the same rows, in any order, when their fingerprints match.
type Fingerprint struct {
	Rows int64
	Sum  uint64
	Xor  uint64
}

// Add folds one star into the fingerprint.
func (f *Fingerprint) Add(s *types.Star) {
	h := murmur3.Sum64(encodeStar(s))
	f.Rows++
	f.Sum += h
	f.Xor ^= h
}

// String renders the fingerprint for logs.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d/%016x/%016x", f.Rows, f.Sum, f.Xor)
}

// FingerprintOf digests a slice of stars.
func FingerprintOf(stars []types.Star) Fingerprint {
	var f Fingerprint
	for i := range stars {
		f.Add(&stars[i])
	}
	return f
}

func encodeStar(s *types.Star) []byte {
	b := make([]byte, 0, 160)
	b = binary.LittleEndian.AppendUint64(b, uint64(s.PK))
	for _, v := range []float64{s.RA, s.Dec, s.Magnitude, s.BV, s.ParallaxMas, s.RAMasPerYear, s.DecMasPerYear} {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	b = binary.LittleEndian.AppendUint64(b, uint64(s.EpochYear))
	b = binary.LittleEndian.AppendUint64(b, uint64(s.HealpixIndex))
	b = appendString(b, s.ConstellationID)
	if s.HIP != nil {
		b = append(b, 1)
		b = binary.LittleEndian.AppendUint64(b, uint64(*s.HIP))
	} else {
		b = append(b, 0)
	}
	if s.TYC != nil {
		b = append(b, 1)
		b = appendString(b, *s.TYC)
	} else {
		b = append(b, 0)
	}
	return appendString(b, string(s.Geometry))
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}
