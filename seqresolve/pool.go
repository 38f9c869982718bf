// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package seqresolve looks up reference genome bases for variants
// that did not match the catalogue, using a fixed pool of workers that
// send chunks of coordinates to an external lookup tool.
package seqresolve

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Slot holds the looked-up base for one region. OK is false if the
// region's chunk failed.
type Slot struct {
	Base string
	OK   bool
}

// Stats counts chunk outcomes and, after Resolve, row outcomes.
type Stats struct {
	Chunks       int // chunks whose bases were stored
	Retries      int // fetch attempts repeated after resource exhaustion
	FailedChunks int // chunks given up on
	Accepted     int
	Flipped      int // accepted rows whose alleles were swapped
	Discarded    int
}

// Pool sends regions to a Fetcher in fixed-size chunks, using a fixed
// number of workers.
type Pool struct {
	Fetcher Fetcher
	// Number of concurrent workers (default runtime.NumCPU()).
	Workers int
	// Regions per Fetch call (default 2000).
	ChunkSize int
	// Maximum number of times a chunk is re-fetched after a
	// resource exhaustion error. Zero means no retries.
	MaxRetries int
	// Delay before the first retry of a chunk; later retries back
	// off exponentially (default 1s).
	RetryInterval time.Duration
	Logger        logrus.FieldLogger
}

// workQueue is a FIFO of chunk indices shared by all workers. pop
// blocks while the queue is empty but some chunk is still in flight,
// since an in-flight chunk may be put back.
type workQueue struct {
	mtx      sync.Mutex
	cond     *sync.Cond
	pending  []int
	inflight map[int]bool
	closed   bool
}

func newWorkQueue(n int) *workQueue {
	q := &workQueue{pending: make([]int, n), inflight: map[int]bool{}}
	for i := range q.pending {
		q.pending[i] = i
	}
	q.cond = sync.NewCond(&q.mtx)
	return q
}

// pop returns the next chunk to work on, or false when there is no
// more work.
func (q *workQueue) pop() (int, bool) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	for len(q.pending) == 0 && len(q.inflight) > 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed || len(q.pending) == 0 {
		return -1, false
	}
	chunk := q.pending[0]
	q.pending = q.pending[1:]
	if q.inflight[chunk] {
		panic(fmt.Sprintf("chunk %d dequeued while in flight", chunk))
	}
	q.inflight[chunk] = true
	return chunk, true
}

// done releases a chunk returned by pop, putting it back at the end
// of the queue if requeue is true.
func (q *workQueue) done(chunk int, requeue bool) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	delete(q.inflight, chunk)
	if requeue && !q.closed {
		q.pending = append(q.pending, chunk)
	}
	q.cond.Broadcast()
}

// close makes pop return false in all workers.
func (q *workQueue) close() {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// slotArray has one slot per region. Each chunk's range of slots is
// guarded by its own lock.
type slotArray struct {
	slots     []Slot
	locks     []sync.Mutex
	chunkSize int
}

func (sa *slotArray) fill(chunk int, bases []string) error {
	start := chunk * sa.chunkSize
	sa.locks[chunk].Lock()
	defer sa.locks[chunk].Unlock()
	for i := range bases {
		if sa.slots[start+i].OK {
			return fmt.Errorf("chunk %d: slot %d already filled", chunk, start+i)
		}
	}
	for i, base := range bases {
		sa.slots[start+i] = Slot{Base: base, OK: true}
	}
	return nil
}

// chunkState is owned by whichever worker holds the chunk.
type chunkState struct {
	retries int
	backoff backoff.BackOff
}

// Lookup fetches one base per region and returns one slot per region,
// in the same order. A failed chunk leaves its slots empty; this is
// logged but not returned as an error. The returned error is non-nil
// only if ctx is cancelled or the pool itself misbehaves.
func (p *Pool) Lookup(ctx context.Context, regions []string) ([]Slot, Stats, error) {
	logger := p.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	chunkSize := p.ChunkSize
	if chunkSize < 1 {
		chunkSize = 2000
	}
	workers := p.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryInterval := p.RetryInterval
	if retryInterval <= 0 {
		retryInterval = time.Second
	}

	nchunks := (len(regions) + chunkSize - 1) / chunkSize
	sa := &slotArray{
		slots:     make([]Slot, len(regions)),
		locks:     make([]sync.Mutex, nchunks),
		chunkSize: chunkSize,
	}
	states := make([]chunkState, nchunks)
	q := newWorkQueue(nchunks)

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			q.close()
		case <-finished:
		}
	}()

	var stats Stats
	var statsMtx sync.Mutex
	var fatal error
	count := func(f func()) {
		statsMtx.Lock()
		defer statsMtx.Unlock()
		f()
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(q *workQueue, sa *slotArray) {
			defer wg.Done()
			for {
				chunk, ok := q.pop()
				if !ok {
					return
				}
				start := chunk * chunkSize
				end := start + chunkSize
				if end > len(regions) {
					end = len(regions)
				}
				log := logger.WithField("chunk", chunk)
				bases, err := p.fetchChunk(ctx, regions[start:end])
				if err == nil {
					err = sa.fill(chunk, bases)
					if err != nil {
						count(func() {
							if fatal == nil {
								fatal = err
							}
						})
						q.close()
					} else {
						count(func() { stats.Chunks++ })
					}
					q.done(chunk, false)
					continue
				}
				if ctx.Err() != nil {
					q.done(chunk, false)
					continue
				}
				st := &states[chunk]
				delay := backoff.Stop
				if maxRetries > 0 && IsResourceExhausted(err) {
					if st.backoff == nil {
						bo := backoff.NewExponentialBackOff()
						bo.InitialInterval = retryInterval
						bo.MaxElapsedTime = 0
						bo.Reset()
						st.backoff = backoff.WithMaxRetries(bo, uint64(maxRetries))
					}
					delay = st.backoff.NextBackOff()
				}
				if delay == backoff.Stop {
					log.WithError(err).WithField("retries", st.retries).Errorf("giving up on chunk, %d rows unresolved", end-start)
					count(func() { stats.FailedChunks++ })
					q.done(chunk, false)
					continue
				}
				st.retries++
				count(func() { stats.Retries++ })
				log.WithError(err).Warnf("resource exhausted, retry %d/%d in %v", st.retries, maxRetries, delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
				}
				q.done(chunk, true)
			}
		}(q, sa)
	}
	wg.Wait()

	if fatal != nil {
		return nil, stats, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	logger.WithFields(logrus.Fields{
		"regions":       len(regions),
		"chunks":        nchunks,
		"chunks_done":   stats.Chunks,
		"retries":       stats.Retries,
		"chunks_failed": stats.FailedChunks,
	}).Info("sequence lookup done")
	return sa.slots, stats, nil
}

func (p *Pool) fetchChunk(ctx context.Context, regions []string) ([]string, error) {
	out, err := p.Fetcher.Fetch(ctx, regions)
	if err != nil {
		return nil, err
	}
	return parseBases(out, len(regions))
}
