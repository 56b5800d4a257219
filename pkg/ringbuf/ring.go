// Package ringbuf implements the ring-buffer transport: independent,
// large, lossy single-producer/multi-consumer queues from probes and the
// sampler to the user-side consumer.
//
// The real kernel-backed transport is a BPF_MAP_TYPE_RINGBUF map read
// through github.com/cilium/ebpf/ringbuf (see pkg/kernel); this package
// is the pure-Go queue with the same reserve/drop/poll contract, used
// directly by the unit tests, by the consumer's task-samples queue, and by
// pkg/kernel as the in-process ring its kernel reader feeds.
package ringbuf

import (
	"sync/atomic"
	"time"
)

// Producer is the write side of a ring-buffer-shaped transport: reserve a
// slot and enqueue v in one step, dropping it if none is free.
// *Ring[T] satisfies this.
type Producer[T any] interface {
	Submit(v T) bool
}

// Consumer is the read side: drain what's ready now, or block for up to
// timeout waiting for at least one record. *Ring[T] satisfies this, and so
// does pkg/kernel.RingReader, the adapter that bridges a real kernel ring
// buffer into this same contract.
type Consumer[T any] interface {
	Drain() []T
	Poll(timeout time.Duration) []T
}

// Ring is a fixed-capacity, lossy SPMC queue. Reservation never blocks:
// once the buffer is full, Submit fails and the caller is expected to
// drop the record, matching the BPF ring buffer's reservation contract.
type Ring[T any] struct {
	slots    chan T
	overflow atomic.Uint64
}

// New constructs a Ring with room for capacity records.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{slots: make(chan T, capacity)}
}

// Submit reserves a slot and enqueues v in one step. It returns false if
// the ring is full — the reservation failed and the record is dropped.
func (r *Ring[T]) Submit(v T) bool {
	select {
	case r.slots <- v:
		return true
	default:
		r.overflow.Add(1)
		return false
	}
}

// Overflows reports the number of records dropped so far due to a full ring.
func (r *Ring[T]) Overflows() uint64 { return r.overflow.Load() }

// Drain removes and returns every record currently queued, without blocking.
func (r *Ring[T]) Drain() []T {
	var out []T
	for {
		select {
		case v := <-r.slots:
			out = append(out, v)
		default:
			return out
		}
	}
}

// Poll blocks for up to timeout waiting for at least one record, then
// drains whatever else is immediately available. A zero or negative
// timeout polls without blocking.
func (r *Ring[T]) Poll(timeout time.Duration) []T {
	if timeout <= 0 {
		return r.Drain()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-r.slots:
		out := []T{v}
		return append(out, r.Drain()...)
	case <-timer.C:
		return nil
	}
}

// Len reports the number of records currently queued.
func (r *Ring[T]) Len() int { return len(r.slots) }

// Cap reports the ring's configured capacity.
func (r *Ring[T]) Cap() int { return cap(r.slots) }
