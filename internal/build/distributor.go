package build

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gaiacat/gaiacat/internal/enrich"
	"github.com/gaiacat/gaiacat/internal/logagg"
)

// WorkerFactory builds the worker for one chunk. The returned closer runs
// after the chunk is done and typically flushes the worker's writer.
type WorkerFactory func(id int) (*FileWorker, func() error, error)

// WorkerResult is the outcome of one worker's chunk.
type WorkerResult struct {
	Worker    int
	Chunk     Chunk
	Counters  enrich.Counters
	Processed int
	Failed    int
	Skipped   int

	// Crashed is set when the worker panicked; indices after the crash
	// were not processed.
	Crashed bool
	Err     error
}

// Distributor runs one worker goroutine per chunk and waits for all of them.
type Distributor struct {
	newWorker WorkerFactory
	emitter   *logagg.Emitter
	skip      func(index int) bool
}

// NewDistributor creates a distributor. skip, when non-nil, reports indices
// to pass over (files already completed by an earlier run).
func NewDistributor(newWorker WorkerFactory, emitter *logagg.Emitter, skip func(index int) bool) *Distributor {
	return &Distributor{newWorker: newWorker, emitter: emitter, skip: skip}
}

// Run processes every chunk concurrently and returns one result per chunk,
// in chunk order. It returns once all workers have finished.
func (d *Distributor) Run(ctx context.Context, chunks []Chunk) []WorkerResult {
	results := make([]WorkerResult, len(chunks))

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(id int, c Chunk) {
			defer wg.Done()
			results[id] = d.runChunk(ctx, id, c)
		}(i, c)
	}
	wg.Wait()

	return results
}

func (d *Distributor) runChunk(ctx context.Context, id int, c Chunk) (res WorkerResult) {
	res = WorkerResult{Worker: id, Chunk: c}
	em := d.emitter.With(fmt.Sprintf("worker-%d", id))

	defer func() {
		if r := recover(); r != nil {
			res.Crashed = true
			res.Err = fmt.Errorf("worker %d panicked: %v", id, r)
			em.Log(logrus.ErrorLevel, "worker crashed", logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
		}
	}()

	w, closeWorker, err := d.newWorker(id)
	if err != nil {
		res.Err = err
		em.Errorf("failed to start worker: %v", err)
		return res
	}

	em.Infof("worker started on [%d : %d]", c.Start, c.Stop)
	for idx := c.Start; idx < c.Stop; idx++ {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			break
		}
		if d.skip != nil && d.skip(idx) {
			res.Skipped++
			continue
		}
		counters, err := w.Process(ctx, idx)
		res.Counters.Add(counters)
		if err != nil {
			res.Failed++
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				res.Err = err
				break
			}
			continue
		}
		res.Processed++
	}

	if closeWorker != nil {
		if err := closeWorker(); err != nil {
			em.Errorf("failed to close worker: %v", err)
			if res.Err == nil {
				res.Err = err
			}
		}
	}
	em.Infof("worker finished: %d processed, %d failed, %d skipped", res.Processed, res.Failed, res.Skipped)
	return res
}
