package logagg

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer; logrus writes from the consumer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
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

func TestAggregator_DrainsBeforeShutdown(t *testing.T) {
	var console syncBuffer
	agg, err := New(Options{Level: "debug", Console: &console})
	require.NoError(t, err)
	agg.Start()

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			em := agg.Emitter(fmt.Sprintf("worker-%d", p))
			for i := 0; i < perProducer; i++ {
				em.Infof("event %d", i)
			}
		}(p)
	}
	wg.Wait()

	require.NoError(t, agg.Shutdown())
	assert.Equal(t, int64(producers*perProducer), agg.Dispatched())
	assert.Equal(t, producers*perProducer, strings.Count(console.String(), "\n"))
}

func TestAggregator_PerProducerOrder(t *testing.T) {
	var console syncBuffer
	agg, err := New(Options{Console: &console})
	require.NoError(t, err)
	agg.Start()

	em := agg.Emitter("worker-0")
	for i := 0; i < 100; i++ {
		em.Infof("seq=%03d", i)
	}
	require.NoError(t, agg.Shutdown())

	out := console.String()
	last := -1
	for i := 0; i < 100; i++ {
		pos := strings.Index(out, fmt.Sprintf("seq=%03d", i))
		require.GreaterOrEqual(t, pos, 0)
		assert.Greater(t, pos, last)
		last = pos
	}
}

func TestAggregator_FileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "build.log")

	for run := 0; run < 2; run++ {
		agg, err := New(Options{FilePath: path, Console: &syncBuffer{}})
		require.NoError(t, err)
		agg.Start()
		agg.Emitter("main").Log(logrus.InfoLevel, "run finished", logrus.Fields{"run": run})
		require.NoError(t, agg.Shutdown())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "run finished"))
	assert.Contains(t, string(data), "source=main")
}

func TestAggregator_LevelFilter(t *testing.T) {
	var console syncBuffer
	agg, err := New(Options{Level: "warn", Console: &console})
	require.NoError(t, err)
	agg.Start()

	em := agg.Emitter("w")
	em.Debugf("hidden debug")
	em.Infof("hidden info")
	em.Warnf("shown warning")
	em.Errorf("shown error")
	require.NoError(t, agg.Shutdown())

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warning")
	assert.Contains(t, out, "shown error")
}

func TestAggregator_ShutdownIdempotentAndDropsLateEvents(t *testing.T) {
	agg, err := New(Options{Console: &syncBuffer{}})
	require.NoError(t, err)

	em := agg.Emitter("w")
	em.Infof("before")

	// Shutdown without Start still drains.
	require.NoError(t, agg.Shutdown())
	require.NoError(t, agg.Shutdown())
	assert.Equal(t, int64(1), agg.Dispatched())

	em.Infof("after")
	assert.Equal(t, int64(1), agg.Dropped())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestEmitter_NilSafe(t *testing.T) {
	var em *Emitter
	assert.NotPanics(t, func() { em.Infof("nothing") })
}
