// Package iorq implements the I/O-request tracking map: one record per
// in-flight block I/O request, keyed by the request handle, as specified
// by xcapture's I/O-request tracking contract. It is shared between the
// insert/issue/complete probes (pkg/probes) and the sampler (pkg/sampler),
// which only ever reads an entry to set Sampled on it.
package iorq

import (
	"sync"

	"github.com/xcapture/xcapture/pkg/types"
)

// Record is one in-flight block I/O request.
type Record struct {
	sync.Mutex

	SeqNum uint64

	InsertTID  types.TID
	InsertTGID types.TGID
	IssueTID   types.TID
	IssueTGID  types.TGID

	HasIssue bool // false until the issue probe (or direct-dispatch insert) fills it in

	InsertKtime int64
	IssueKtime  int64

	Sampled bool // set by the sampler when it observes this request in flight
}

const shardCount = 64

// Store is the I/O-tracking map.
type Store struct {
	shards [shardCount]shard
}

type shard struct {
	mu   sync.Mutex
	rows map[types.IORequest]*Record
}

// NewStore constructs an empty I/O-tracking store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].rows = make(map[types.IORequest]*Record)
	}
	return s
}

func (s *Store) shardFor(rq types.IORequest) *shard {
	return &s.shards[uint64(rq)%shardCount]
}

// Create inserts a fresh zero-initialized record for rq, overwriting any
// stale entry left by a handle reuse (request handles are only reused
// after completion deletes the prior entry, but insert is defensive).
func (s *Store) Create(rq types.IORequest) *Record {
	sh := s.shardFor(rq)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec := &Record{}
	sh.rows[rq] = rec
	return rec
}

// Lookup returns the record for rq, or nil if absent.
func (s *Store) Lookup(rq types.IORequest) *Record {
	sh := s.shardFor(rq)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.rows[rq]
}

// Delete removes the record for rq, e.g. once its completion has been
// handled (or discarded because it was never sampled).
func (s *Store) Delete(rq types.IORequest) {
	sh := s.shardFor(rq)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.rows, rq)
}

// Len reports the number of tracked in-flight requests, for diagnostics/tests.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].rows)
		s.shards[i].mu.Unlock()
	}
	return n
}
