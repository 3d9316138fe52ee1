package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiacat/gaiacat/pkg/types"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.Catalog.Partitioning.Nside)
	assert.Equal(t, types.SchemeNested, cfg.Catalog.Partitioning.Scheme)
	assert.Equal(t, 200_000, cfg.Catalog.ChunkSize)
	assert.Equal(t, int64(100_000), cfg.Compaction.RowGroupSize)
	assert.Equal(t, filepath.Join("./data/gaiacat", "build"), cfg.Build.OutputDir)
	assert.Equal(t, cfg.Build.OutputDir, cfg.Compaction.SourceDir)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero workers":        func(c *Config) { c.Build.Workers = 0 },
		"nside not pow2":      func(c *Config) { c.Catalog.Partitioning.Nside = 6 },
		"nside zero":          func(c *Config) { c.Catalog.Partitioning.Nside = 0 },
		"bad scheme":          func(c *Config) { c.Catalog.Partitioning.Scheme = "spiral" },
		"bad codec":           func(c *Config) { c.Catalog.Compression = "lz4" },
		"stop before start":   func(c *Config) { c.Build.Start = 10; c.Build.Stop = 5 },
		"s3 without bucket":   func(c *Config) { c.Storage.Type = "s3" },
		"unknown storage":     func(c *Config) { c.Storage.Type = "ftp" },
		"constellations only": func(c *Config) { c.Build.Constellations = true },
		"bad archive codec":   func(c *Config) { c.Archive.Compression = "xz" },
		"bad log level":       func(c *Config) { c.Logging.Level = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gaiacat.yaml")
	content := `
data_dir: /tmp/gaia
build:
  source_dir: /data/gaia_source
  workers: 4
crossmatch:
  hip_path: /data/hip.csv
  tyc_path: /data/tyc.csv
catalog:
  partitioning:
    nside: 16
    scheme: ring
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/gaia", cfg.DataDir)
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, "*.csv.gz", cfg.Build.Pattern, "unset fields keep defaults")
	assert.Equal(t, 16, cfg.Catalog.Partitioning.Nside)
	assert.Equal(t, types.SchemeRing, cfg.Catalog.Partitioning.Scheme)
	require.NoError(t, cfg.ValidateBuild())
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaiacat.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GAIACAT_WORKERS", "3")
	t.Setenv("GAIACAT_HEALPIX_NSIDE", "32")
	t.Setenv("GAIACAT_CONSTELLATIONS", "true")
	t.Setenv("GAIACAT_S3_BUCKET", "stars")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, 3, cfg.Build.Workers)
	assert.Equal(t, 32, cfg.Catalog.Partitioning.Nside)
	assert.True(t, cfg.Build.Constellations)
	assert.Equal(t, "stars", cfg.Storage.S3.Bucket)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	// Missing file is not an error.
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GAIACAT_TEST_DOTENV=loaded\n"), 0644))
	t.Setenv("GAIACAT_TEST_DOTENV", "")
	os.Unsetenv("GAIACAT_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("GAIACAT_TEST_DOTENV"))
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "gaia")
	cfg.Resolve()

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.Build.OutputDir)
	assert.DirExists(t, filepath.Dir(cfg.Logging.File))
}
