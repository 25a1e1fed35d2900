// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package queue implements the bounded FIFO that sits between admission and
// the worker pool.
//
// Occupancy is the number of pending items plus outstanding reservations. It
// only changes together with the list under the queue mutex, so it can never
// drift from the real contents.
package queue

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vprint/vprint/pkg/job"
)

var (
	// ErrQueueFull is returned by Push and Reserve when occupancy has reached capacity.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueClosed is returned once the queue has been closed and drained.
	ErrQueueClosed = errors.New("job queue is closed")
	// ErrNoReservation is returned by Commit and Release without a matching Reserve.
	ErrNoReservation = errors.New("no outstanding queue reservation")
)

// Stats is a snapshot of queue counters.
type Stats struct {
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
	Reserved    int    `json:"reserved"`
	TotalPushed uint64 `json:"total_pushed"`
	TotalPopped uint64 `json:"total_popped"`
	Rejected    uint64 `json:"rejected"`
	Peak        int    `json:"peak"`
}

// Queue is a bounded multi-producer multi-consumer FIFO of job requests.
type Queue struct {
	mu       sync.Mutex
	items    *list.List
	index    map[job.ID]*list.Element
	reserved int
	capacity int
	closed   bool

	// kick wakes one waiting Pop. A woken consumer that leaves items behind
	// passes the kick on.
	kick chan struct{}
	done chan struct{}

	pushed   uint64
	popped   uint64
	rejected uint64
	peak     int
}

// New creates a queue holding at most capacity entries.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be at least 1, got %d", capacity)
	}
	return &Queue{
		items:    list.New(),
		index:    make(map[job.ID]*list.Element),
		capacity: capacity,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

func (q *Queue) occupancy() int {
	return q.items.Len() + q.reserved
}

func (q *Queue) signal() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

func (q *Queue) notePeak() {
	if occ := q.occupancy(); occ > q.peak {
		q.peak = occ
	}
}

// Push appends req at the tail. It never blocks.
func (q *Queue) Push(req *job.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.occupancy() >= q.capacity {
		q.rejected++
		return ErrQueueFull
	}
	q.index[req.ID] = q.items.PushBack(req)
	q.pushed++
	q.notePeak()
	q.signal()
	return nil
}

// Reserve claims one slot without an item. The slot counts towards occupancy
// until Commit or Release.
func (q *Queue) Reserve() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.occupancy() >= q.capacity {
		q.rejected++
		return ErrQueueFull
	}
	q.reserved++
	q.notePeak()
	return nil
}

// Commit turns a reservation into a pending item at the tail.
func (q *Queue) Commit(req *job.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.reserved == 0 {
		return ErrNoReservation
	}
	q.reserved--
	if q.closed {
		return ErrQueueClosed
	}
	q.index[req.ID] = q.items.PushBack(req)
	q.pushed++
	q.signal()
	return nil
}

// Release gives back an unused reservation.
func (q *Queue) Release() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.reserved == 0 {
		return ErrNoReservation
	}
	q.reserved--
	return nil
}

// Pop removes and returns the head, blocking until an item is available, ctx
// is done, or the queue is closed. Items still pending at Close are not
// returned; Stop paths drain them with Clear.
func (q *Queue) Pop(ctx context.Context) (*job.Request, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if front := q.items.Front(); front != nil {
			req := q.items.Remove(front).(*job.Request)
			delete(q.index, req.ID)
			q.popped++
			if q.items.Len() > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return req, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-q.done:
		case <-q.kick:
		}
	}
}

// Remove deletes a pending entry. It reports whether id was queued.
func (q *Queue) Remove(id job.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	el, ok := q.index[id]
	if !ok {
		return false
	}
	q.items.Remove(el)
	delete(q.index, id)
	return true
}

// Position returns the number of pending jobs ahead of id, or -1 when id
// is not pending.
func (q *Queue) Position(id job.ID) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := 0
	for el := q.items.Front(); el != nil; el = el.Next() {
		if el.Value.(*job.Request).ID == id {
			return i
		}
		i++
	}
	return -1
}

// Size returns the number of pending items. Reservations are not included.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// IsFull reports whether a Push would currently fail with ErrQueueFull.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.occupancy() >= q.capacity
}

// IsEmpty reports whether no items are pending.
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// Capacity returns the configured maximum occupancy.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Clear removes every pending item and returns them in FIFO order.
// Reservations and items already handed to a consumer are unaffected.
func (q *Queue) Clear() []*job.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := make([]*job.Request, 0, q.items.Len())
	for el := q.items.Front(); el != nil; el = el.Next() {
		drained = append(drained, el.Value.(*job.Request))
	}
	q.items.Init()
	clear(q.index)
	return drained
}

// Close stops the queue. Blocked and future Pop calls return ErrQueueClosed.
// Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Size:        q.items.Len(),
		Capacity:    q.capacity,
		Reserved:    q.reserved,
		TotalPushed: q.pushed,
		TotalPopped: q.popped,
		Rejected:    q.rejected,
		Peak:        q.peak,
	}
}
