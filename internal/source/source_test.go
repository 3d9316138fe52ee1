package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/gaiacat/gaiacat/internal/errors"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

const sample = `# Gaia DR3 extract
# another comment
solution_id,source_id,ra,dec,ref_epoch,parallax,pmra,pmdec,phot_g_mean_mag,bp_rp
1,100,45.1234567,-12.5,2016.0,1.5,-3.25,0,9.81,0.65
1,200,10.0,20.0,2016.0,null,,null,11.2,null
`

func TestReader_StreamsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GaiaSource_000000-003111.csv.gz")
	writeGzip(t, path, sample)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(100), row.SourceID)
	assert.InDelta(t, 45.1234567, row.RA, 1e-12)
	assert.Equal(t, -12.5, row.Dec)
	assert.Equal(t, 2016.0, row.RefEpoch)
	require.NotNil(t, row.Parallax)
	assert.Equal(t, 1.5, *row.Parallax)
	require.NotNil(t, row.PMDec)
	assert.Equal(t, 0.0, *row.PMDec, "zero is a value, not absence")
	assert.True(t, row.HasPhotometry())

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(200), row.SourceID)
	assert.Nil(t, row.Parallax)
	assert.Nil(t, row.PMRA)
	assert.Nil(t, row.PMDec)
	assert.Nil(t, row.BPRP)
	assert.False(t, row.HasPhotometry())

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_PlainCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
}

func TestReader_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("source_id,ra,dec\n1,2,3\n"), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Equal(t, gerrors.CodeFileUnreadable, gerrors.GetCode(err))
}

func TestReader_MalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "source_id,ra,dec,ref_epoch,parallax,pmra,pmdec,phot_g_mean_mag,bp_rp\nabc,1,2,2016,,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.Error(t, err)
	assert.Equal(t, gerrors.CodeRowMalformed, gerrors.GetCode(err))
}

func TestReader_MalformedRowReportsPhysicalLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "# Gaia DR3 extract\n# second comment\n" +
		"source_id,ra,dec,ref_epoch,parallax,pmra,pmdec,phot_g_mean_mag,bp_rp\n" +
		"1,1,2,2016,,,,9,0.5\n" +
		"abc,1,2,2016,,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)

	var ge *gerrors.GaiacatError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, 5, ge.Details["line"])
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv.gz"))
	require.Error(t, err)
	assert.Equal(t, gerrors.ErrCategorySource, gerrors.GetCategory(err))
}

func TestDiscover_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.csv.gz", "a.csv.gz", "b.csv.gz", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.csv.gz"), 0755))

	files, err := Discover(dir, "*.csv.gz")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "a.csv.gz"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.csv.gz"), files[1])
	assert.Equal(t, filepath.Join(dir, "c.csv.gz"), files[2])
}
