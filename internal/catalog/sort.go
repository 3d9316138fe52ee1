package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gaiacat/gaiacat/pkg/types"
)

type starCompare func(a, b *types.Star) int

func columnCompare(col string) (starCompare, bool) {
	switch col {
	case "pk":
		return func(a, b *types.Star) int { return cmpInt(a.PK, b.PK) }, true
	case "ra":
		return func(a, b *types.Star) int { return cmpFloat(a.RA, b.RA) }, true
	case "dec":
		return func(a, b *types.Star) int { return cmpFloat(a.Dec, b.Dec) }, true
	case "magnitude":
		return func(a, b *types.Star) int { return cmpFloat(a.Magnitude, b.Magnitude) }, true
	case "bv":
		return func(a, b *types.Star) int { return cmpFloat(a.BV, b.BV) }, true
	case "epoch_year":
		return func(a, b *types.Star) int { return cmpInt(a.EpochYear, b.EpochYear) }, true
	case "healpix_index":
		return func(a, b *types.Star) int { return cmpInt(a.HealpixIndex, b.HealpixIndex) }, true
	case "constellation_id":
		return func(a, b *types.Star) int { return strings.Compare(a.ConstellationID, b.ConstellationID) }, true
	default:
		return nil, false
	}
}

// ValidateSortColumns checks that every column can be sorted on.
func ValidateSortColumns(cols []string) error {
	for _, c := range cols {
		if _, ok := columnCompare(c); !ok {
			return fmt.Errorf("cannot sort on column %q", c)
		}
	}
	return nil
}

// SortStable sorts stars ascending by cols. Rows comparing equal keep
// their relative order.
func SortStable(stars []types.Star, cols []string) {
	if len(cols) == 0 {
		return
	}
	cmps := make([]starCompare, 0, len(cols))
	for _, c := range cols {
		if fn, ok := columnCompare(c); ok {
			cmps = append(cmps, fn)
		}
	}
	sort.SliceStable(stars, func(i, j int) bool {
		for _, cmp := range cmps {
			if r := cmp(&stars[i], &stars[j]); r != 0 {
				return r < 0
			}
		}
		return false
	})
}

// IsSorted reports whether stars are in ascending order of cols.
func IsSorted(stars []types.Star, cols []string) bool {
	for i := 1; i < len(stars); i++ {
		for _, c := range cols {
			fn, ok := columnCompare(c)
			if !ok {
				continue
			}
			r := fn(&stars[i-1], &stars[i])
			if r < 0 {
				break
			}
			if r > 0 {
				return false
			}
		}
	}
	return true
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
