package constellation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A cut-down table: a polar cap, two half bands and a catch-all.
const boundaries = `
# ra_low ra_high dec_low abbr
 0.0000 24.0000  88.0000 UMi
 0.0000 12.0000  30.0000 CAS
12.0000 24.0000  30.0000 DRA
 0.0000 24.0000 -90.0000 OCT
`

func loadTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := ParseTable(strings.NewReader(boundaries))
	require.NoError(t, err)
	return tbl
}

func TestFindB1875_FirstMatchWins(t *testing.T) {
	tbl := loadTestTable(t)
	assert.Equal(t, 4, tbl.Len())

	assert.Equal(t, "umi", tbl.FindB1875(5, 89))
	assert.Equal(t, "cas", tbl.FindB1875(5, 45))
	assert.Equal(t, "dra", tbl.FindB1875(12, 45), "ra high is exclusive")
	assert.Equal(t, "oct", tbl.FindB1875(5, -10))
}

func TestFind_PrecessesFromJ2000(t *testing.T) {
	tbl := loadTestTable(t)

	// The B1875 pole lies toward RA 12h of the J2000 frame, about 0.7 degrees off.
	_, dec := tbl.ToB1875(0, 88.5)
	assert.InDelta(t, 87.8, dec, 0.1)
	assert.NotEqual(t, "umi", tbl.Find(0, 88.5))

	_, dec = tbl.ToB1875(180, 87.5)
	assert.InDelta(t, 88.2, dec, 0.1)
	assert.Equal(t, "umi", tbl.Find(180, 87.5))
}

func TestParseTable_Errors(t *testing.T) {
	_, err := ParseTable(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseTable(strings.NewReader("0 24 x UMi\n"))
	assert.Error(t, err)

	_, err = ParseTable(strings.NewReader("0 24\n"))
	assert.Error(t, err)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.dat")
	require.NoError(t, os.WriteFile(path, []byte(boundaries), 0644))

	tbl, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "oct", tbl.Find(90, -60))

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.dat"))
	assert.Error(t, err)
}
