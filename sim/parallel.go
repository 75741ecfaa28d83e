package sim

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to use parallel
// dispatch. Below this, single-threaded is faster than goroutine overhead.
const parallelThreshold = 64

// kernel processes particles [start, end) using the worker's scratch.
// Lanes within a kernel share state only through the grid and counter
// atomics; everything else is a per-slot write.
type kernel func(start, end int, scratch *workerScratch)

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	cells []int32 // candidate-cell buffer for grid queries
}

// workChunk represents a range of particles for a worker to process.
type workChunk struct {
	start, end int
	fn         kernel
}

// workerPool runs kernels over chunked index ranges on persistent
// goroutines. run does not return until every chunk has completed, which
// gives the caller a full barrier between kernels: no kernel observes
// another kernel's partial writes.
type workerPool struct {
	numWorkers int
	scratches  []workerScratch

	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newWorkerPool() *workerPool {
	numWorkers := runtime.GOMAXPROCS(0)
	scratches := make([]workerScratch, numWorkers)
	for i := range scratches {
		scratches[i].cells = make([]int32, 0, 27)
	}
	return &workerPool{
		numWorkers: numWorkers,
		scratches:  scratches,
	}
}

// start launches the persistent worker goroutines.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *workerPool) worker(workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes fn over [0, n) and returns once all chunks have completed.
func (p *workerPool) run(n int, fn kernel) {
	if n == 0 {
		return
	}

	// Single-threaded for small populations
	if n < parallelThreshold {
		fn(0, n, &p.scratches[0])
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		p.workChan <- workChunk{start: start, end: end, fn: fn}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
