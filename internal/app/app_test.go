package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiacat/gaiacat/internal/catalog"
	"github.com/gaiacat/gaiacat/internal/config"
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

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0755))

	header := "source_id,ra,dec,ref_epoch,parallax,pmra,pmdec,phot_g_mean_mag,bp_rp\n"
	writeGzip(t, filepath.Join(src, "GaiaSource_000.csv.gz"), header+
		"1,10.0,20.0,2016.0,1.5,2.0,-3.0,9.8,0.7\n"+
		"2,190.0,-40.0,2016.0,0.1,0.2,0.3,12.1,1.1\n")
	writeGzip(t, filepath.Join(src, "GaiaSource_001.csv.gz"), header+
		"3,11.0,21.0,2016.0,1.0,1.0,1.0,8.1,0.2\n"+
		"4,12.0,22.0,2016.0,1.0,1.0,1.0,,0.2\n")

	hip := filepath.Join(dir, "hip.csv")
	require.NoError(t, os.WriteFile(hip, []byte("source_id,original_ext_source_id\n1,11767\n"), 0644))
	tyc := filepath.Join(dir, "tyc.csv")
	require.NoError(t, os.WriteFile(tyc, []byte("source_id,original_ext_source_id\n2,TYC 1-2-1\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Build.SourceDir = src
	cfg.Build.Workers = 2
	cfg.Crossmatch.HipPath = hip
	cfg.Crossmatch.TycPath = tyc
	cfg.Catalog.Partitioning.Nside = 1
	cfg.Metrics.Textfile = filepath.Join(dir, "gaiacat.prom")
	return cfg
}

func TestApp_BuildCompactArchive(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)
	a.SetConsole(&strings.Builder{})
	ctx := context.Background()

	summary, err := a.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Counters.Emitted)
	assert.Equal(t, int64(1), summary.Counters.SkippedNoMag)

	report, err := a.Compact(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())

	parts, err := catalog.ListPartitions(cfg.Build.OutputDir)
	require.NoError(t, err)
	var rows int64
	for _, p := range parts {
		require.Equal(t, []string{filepath.Join(p.Dir, catalog.CompactedFileName)}, p.Files)
		info, err := catalog.Stat(p.Files[0])
		require.NoError(t, err)
		rows += info.NumRows
	}
	assert.Equal(t, int64(3), rows)

	cfg.Archive.Publish = true
	ar, err := a.Archive(ctx)
	require.NoError(t, err)
	require.Len(t, ar.Bundles, 1)
	assert.True(t, ar.Bundles[0].Published)
	assert.FileExists(t, filepath.Join(cfg.Storage.Path, "gaia-dr3", "gaia-dr3-p0.tar.gz"))

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "gaiacat_compacted_rows_total 3")
}

func TestApp_BuildRequiresCrossmatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crossmatch.HipPath = ""
	a, err := New(cfg)
	require.NoError(t, err)
	_, err = a.Build(context.Background())
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Build.Workers = 0
	_, err := New(cfg)
	assert.Error(t, err)
}
