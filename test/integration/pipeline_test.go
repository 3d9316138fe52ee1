package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiacat/gaiacat/internal/app"
	"github.com/gaiacat/gaiacat/internal/archive"
	"github.com/gaiacat/gaiacat/internal/catalog"
	"github.com/gaiacat/gaiacat/internal/config"
	"github.com/gaiacat/gaiacat/pkg/types"
)

const header = "source_id,ra,dec,ref_epoch,parallax,pmra,pmdec,phot_g_mean_mag,bp_rp\n"

func writeSource(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(header + strings.Join(rows, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "gaia_source")
	require.NoError(t, os.MkdirAll(src, 0755))

	hip := filepath.Join(root, "hip.csv")
	require.NoError(t, os.WriteFile(hip, []byte("source_id,original_ext_source_id\n101,11767\n"), 0644))
	tyc := filepath.Join(root, "tyc.csv")
	require.NoError(t, os.WriteFile(tyc, []byte("source_id,original_ext_source_id\n999,TYC 4628-237-1\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.Build.SourceDir = src
	cfg.Build.Workers = 2
	cfg.Crossmatch.HipPath = hip
	cfg.Crossmatch.TycPath = tyc
	cfg.Catalog.Partitioning.Nside = 1
	cfg.Compaction.Workers = 2
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.New(cfg)
	require.NoError(t, err)
	a.SetConsole(&strings.Builder{})
	return a
}

func readAll(t *testing.T, root string) map[int64][]types.Star {
	t.Helper()
	parts, err := catalog.ListPartitions(root)
	require.NoError(t, err)
	out := make(map[int64][]types.Star)
	for _, p := range parts {
		for _, f := range p.Files {
			stars, err := catalog.ReadFile(f)
			require.NoError(t, err)
			out[p.Key.Index] = append(out[p.Key.Index], stars...)
		}
	}
	return out
}

// One row lacks a colour, one matches Hipparcos, one matches nothing.
func TestPipeline_EnrichmentCounters(t *testing.T) {
	cfg := newConfig(t)
	writeSource(t, cfg.Build.SourceDir, "GaiaSource_000000-003111.csv.gz",
		"100,45.0,60.0,2016.0,1.0,1.0,1.0,10.0,",
		"101,45.5,60.5,2016.0,7.54,44.48,-11.85,1.97,0.6",
		"102,46.0,61.0,2016.0,,,,14.2,1.3",
	)

	summary, err := newApp(t, cfg).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Counters.Emitted)
	assert.Equal(t, int64(1), summary.Counters.SkippedNoMag)
	assert.Equal(t, int64(1), summary.Counters.CrossmatchHip)
	assert.Equal(t, int64(0), summary.Counters.CrossmatchTyc)

	stars := readAll(t, cfg.Build.OutputDir)
	require.Len(t, stars[0], 2)
	byPK := map[int64]types.Star{}
	for _, s := range stars[0] {
		byPK[s.PK] = s
	}
	require.NotNil(t, byPK[101].HIP)
	assert.Equal(t, int64(11767), *byPK[101].HIP)
	assert.Nil(t, byPK[102].HIP)
	assert.Nil(t, byPK[102].TYC)
	assert.Equal(t, 0.0, byPK[102].ParallaxMas)
	assert.Equal(t, int64(2016), byPK[102].EpochYear)
}

// Two workers each write shards into the same two partitions.
func TestPipeline_CompactionLeavesOneFilePerPartition(t *testing.T) {
	cfg := newConfig(t)
	writeSource(t, cfg.Build.SourceDir, "GaiaSource_000.csv.gz",
		"1,45.0,60.0,2016.0,1,1,1,9.0,0.5",
		"2,0.5,0.5,2016.0,1,1,1,7.0,0.5",
	)
	writeSource(t, cfg.Build.SourceDir, "GaiaSource_001.csv.gz",
		"3,46.0,61.0,2016.0,1,1,1,4.0,0.5",
		"4,1.0,1.0,2016.0,1,1,1,11.0,0.5",
	)
	a := newApp(t, cfg)
	ctx := context.Background()

	_, err := a.Build(ctx)
	require.NoError(t, err)
	parts, err := catalog.ListPartitions(cfg.Build.OutputDir)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	for _, p := range parts {
		assert.Len(t, p.Shards(), 2, "partition %d", p.Key.Index)
	}

	report, err := a.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Compacted)
	assert.Equal(t, 4, report.ShardsDeleted)

	parts, err = catalog.ListPartitions(cfg.Build.OutputDir)
	require.NoError(t, err)
	for _, p := range parts {
		require.Len(t, p.Files, 1)
		assert.Equal(t, catalog.CompactedFileName, filepath.Base(p.Files[0]))
	}

	stars := readAll(t, cfg.Build.OutputDir)
	assert.Equal(t, []int64{3, 1}, pks(stars[0]))
	assert.Equal(t, []int64{2, 4}, pks(stars[4]))
	assert.Less(t, stars[0][0].Magnitude, stars[0][1].Magnitude)

	// Compacting again changes nothing.
	_, err = a.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, stars, readAll(t, cfg.Build.OutputDir))

	cfg.Archive.MaxFilesizeMB = 1
	ar, err := a.Archive(ctx)
	require.NoError(t, err)
	require.Len(t, ar.Bundles, 1)
	entries, err := archive.Entries(ar.Bundles[0].Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"healpix_index=0/stars.parquet", "healpix_index=4/stars.parquet"}, entries)
}

func pks(stars []types.Star) []int64 {
	out := make([]int64, len(stars))
	for i, s := range stars {
		out[i] = s.PK
	}
	return out
}
