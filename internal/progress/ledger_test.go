package progress

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaiacat/gaiacat/internal/enrich"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_Lifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	require.NoError(t, l.Start(ctx, "run-1", 0, "a.csv.gz"))
	require.NoError(t, l.Start(ctx, "run-1", 1, "b.csv.gz"))
	require.NoError(t, l.Start(ctx, "run-1", 2, "c.csv.gz"))

	c := enrich.Counters{Emitted: 10, SkippedNoMag: 2, CrossmatchHip: 1, CrossmatchTyc: 3}
	require.NoError(t, l.Finish(ctx, "a.csv.gz", c))
	require.NoError(t, l.Fail(ctx, "b.csv.gz", errors.New("corrupt gzip")))

	done, err := l.Completed(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a.csv.gz": true}, done)

	e, err := l.Get(ctx, "a.csv.gz")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, c, e.Counters)
	assert.NotNil(t, e.FinishedAt)

	e, err = l.Get(ctx, "b.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "corrupt gzip", e.Error)

	missing, err := l.Get(ctx, "zzz.csv.gz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLedger_IncompleteFromEarlierRun(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	// run-1 stopped while processing b.
	require.NoError(t, l.Start(ctx, "run-1", 0, "a.csv.gz"))
	require.NoError(t, l.Finish(ctx, "a.csv.gz", enrich.Counters{Emitted: 1}))
	require.NoError(t, l.Start(ctx, "run-1", 1, "b.csv.gz"))

	require.NoError(t, l.Start(ctx, "run-2", 2, "c.csv.gz"))

	inc, err := l.Incomplete(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, inc, 1)
	assert.Equal(t, "b.csv.gz", inc[0].FileName)
	assert.Equal(t, StatusRunning, inc[0].Status)

	// Restarting the file resets it under the new run.
	require.NoError(t, l.Start(ctx, "run-2", 1, "b.csv.gz"))
	inc, err = l.Incomplete(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, inc)
}

func TestLedger_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Start(ctx, "run-1", 0, "a.csv.gz"))
	require.NoError(t, l.Finish(ctx, "a.csv.gz", enrich.Counters{Emitted: 5}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	done, err := l.Completed(ctx)
	require.NoError(t, err)
	assert.True(t, done["a.csv.gz"])
}
