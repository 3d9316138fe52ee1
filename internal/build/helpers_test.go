package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/gaiacat/gaiacat/internal/logagg"
	"github.com/gaiacat/gaiacat/pkg/types"
)

const sourceHeader = "source_id,ra,dec,ref_epoch,parallax,pmra,pmdec,phot_g_mean_mag,bp_rp\n"

// writeSource writes a gzip source file with the standard header.
func writeSource(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("# test extract\n" + sourceHeader + strings.Join(rows, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// memWriter collects stars in memory.
type memWriter struct {
	mu      sync.Mutex
	stars   []types.Star
	flushes int
	failOn  int64
	mark    int
}

func (m *memWriter) Write(ctx context.Context, s types.Star) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != 0 && s.PK == m.failOn {
		return os.ErrClosed
	}
	m.stars = append(m.stars, s)
	return nil
}

func (m *memWriter) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

func (m *memWriter) Mark() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mark = len(m.stars)
}

func (m *memWriter) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stars = m.stars[:m.mark]
	return nil
}

func (m *memWriter) pks() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.stars))
	for i, s := range m.stars {
		out[i] = s.PK
	}
	return out
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// syncBuffer is a goroutine-safe log sink for assertions.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestAggregator(t *testing.T, console *syncBuffer) *logagg.Aggregator {
	t.Helper()
	opts := logagg.Options{Level: "debug", Console: discard{}}
	if console != nil {
		opts.Console = console
	}
	agg, err := logagg.New(opts)
	require.NoError(t, err)
	agg.Start()
	return agg
}
