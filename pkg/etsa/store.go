// Package etsa implements the Extended Thread-State Store (eTSA): a
// per-task record holding the current in-syscall context and the last
// in-flight I/O request pointer, as specified by xcapture's eTSA contract.
//
// The store is indexed by task identity and keeps records mutated in
// place. Unlike the kernel-side original — where per-task access is
// serialized for free by the scheduler's task-local locking — probes and
// the sampler here may run on different goroutines, so each record gets
// its own mutex. Records are sharded across a fixed number of buckets to
// keep lock contention low under many concurrently active tasks, the way
// the teacher shards per-PID counters across plain maps in
// pkg/system/proc/v1.go, generalized here to a concurrent-safe store.
package etsa

import (
	"sync"

	"github.com/xcapture/xcapture/pkg/types"
)

const shardCount = 64

// State is one task's extended thread-state record. The embedded mutex
// stands in for the kernel's per-task locking discipline (spec §4.1/§5):
// callers must Lock/Unlock around any read-modify-write sequence, but
// different tasks' records never contend with each other.
type State struct {
	sync.Mutex

	TID  types.TID
	TGID types.TGID

	SampleStartKtime  int64 // ktime when the current sample tick began
	SampleActualKtime int64 // ktime when this task was visited within the tick

	InSyscallNr int32 // types.NoSyscall when in user mode
	SCEnterTime int64 // ktime the current syscall began; 0 when none active
	SCSeqNum    uint64
	SCSampled   bool

	IORQSeqNum           uint64
	LastIORQRequest      types.IORequest // in-flight request handle
	LastIORQValid        bool            // false means "no in-flight request"
	LastIORQSampled      types.IORequest // handle observed in-flight at last sample
	LastIORQSampledValid bool

	AIOInflightReqs    uint32
	AIOInflightUnknown bool // set when the user-memory read of the AIO ring failed
}

// Store is the eTSA: get-or-create and lookup, keyed by task identity.
// Records are removed only by an explicit Delete call; the store does not
// reclaim a record by itself when its task exits.
type Store struct {
	shards [shardCount]shard
}

type shard struct {
	mu   sync.Mutex
	rows map[types.TaskID]*State
}

// NewStore constructs an empty eTSA store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].rows = make(map[types.TaskID]*State)
	}
	return s
}

func (s *Store) shardFor(id types.TaskID) *shard {
	h := uint32(id.TID)*2654435761 + uint32(id.TGID)
	return &s.shards[h%shardCount]
}

// GetOrCreate returns the record for id, creating a zero-initialized one
// (with InSyscallNr set to the "none" sentinel) if absent.
func (s *Store) GetOrCreate(id types.TaskID) *State {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.rows[id]
	if !ok {
		st = &State{TID: id.TID, TGID: id.TGID, InSyscallNr: types.NoSyscall}
		sh.rows[id] = st
	}
	return st
}

// Lookup returns the record for id, or nil if absent.
func (s *Store) Lookup(id types.TaskID) *State {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.rows[id]
}

// Delete reclaims the record for id, e.g. on task exit.
func (s *Store) Delete(id types.TaskID) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.rows, id)
}

// Len reports the number of live records, for diagnostics/tests.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].rows)
		s.shards[i].mu.Unlock()
	}
	return n
}
