// Package probes implements xcapture's four event-probe handlers — syscall
// entry/exit and block-I/O insert/issue/complete. Each handler is a
// short, non-blocking function over the eTSA (pkg/etsa) and I/O-tracking
// (pkg/iorq) stores and the completion ring buffer (pkg/ringbuf), so it
// can be called directly from tests. The kernel adapter in pkg/kernel does
// not call these handlers; there the probes are the loaded BPF programs.
package probes

import (
	"github.com/xcapture/xcapture/pkg/etsa"
	"github.com/xcapture/xcapture/pkg/events"
	"github.com/xcapture/xcapture/pkg/iorq"
	"github.com/xcapture/xcapture/pkg/ringbuf"
	"github.com/xcapture/xcapture/pkg/syscalltable"
	"github.com/xcapture/xcapture/pkg/types"
)

// IsAIOWaitSyscall reports whether nr is one of the two AIO-wait syscalls
// on the native architecture's syscall table.
func IsAIOWaitSyscall(nr int32) bool {
	return syscalltable.Native.IsAIOWait(nr)
}

// AIOInflightReader reads the AIO ring's head/tail pointers from a task's
// user memory. The default used when none is supplied always reports
// "unknown".
type AIOInflightReader interface {
	Read(id types.TaskID) (count uint32, ok bool)
}

type noAIOReader struct{}

func (noAIOReader) Read(types.TaskID) (uint32, bool) { return 0, false }

// NoAIOReader is the AIOInflightReader used when the caller has no real
// AIO ring access (e.g. in tests that don't exercise AIO-wait syscalls).
var NoAIOReader AIOInflightReader = noAIOReader{}

// Completions is the write side of the completion-events transport both
// completion probes submit into: a ringbuf.Producer, satisfied directly by
// *ringbuf.Ring[events.Completion].
type Completions = ringbuf.Producer[events.Completion]

// SyscallEntry handles syscall entry: get-or-create the eTSA, stamp entry
// time and syscall number, bump the sequence number, and — for the two
// AIO-wait syscalls — snapshot the AIO ring depth.
func SyscallEntry(store *etsa.Store, id types.TaskID, nr int32, nowKtime int64, aio AIOInflightReader) {
	st := store.GetOrCreate(id)
	st.Lock()
	defer st.Unlock()

	st.SCEnterTime = nowKtime
	st.InSyscallNr = nr
	st.SCSeqNum++

	if IsAIOWaitSyscall(nr) {
		if aio == nil {
			aio = NoAIOReader
		}
		if count, ok := aio.Read(id); ok {
			st.AIOInflightReqs = count
			st.AIOInflightUnknown = false
		} else {
			st.AIOInflightUnknown = true
		}
	}
}

// SyscallExit handles syscall exit: if the sampler had flagged this
// syscall as sampled, emit a completion record, then always reset the
// in-syscall state to "none".
func SyscallExit(store *etsa.Store, completions Completions, id types.TaskID, nowKtime int64, retVal int64) {
	st := store.Lookup(id)
	if st == nil {
		// Lookup miss is normal: nothing to exit from.
		return
	}

	st.Lock()
	sampled := st.SCSampled
	var ev events.SyscallCompletion
	if sampled {
		ev = events.SyscallCompletion{
			TID:              id.TID,
			TGID:             id.TGID,
			SyscallNr:        st.InSyscallNr,
			SCSeqNum:         st.SCSeqNum,
			SCEnterTimeKtime: st.SCEnterTime,
			SCExitTimeKtime:  nowKtime,
			RetVal:           retVal,
		}
		st.SCSampled = false
	}
	st.InSyscallNr = types.NoSyscall
	st.SCEnterTime = 0
	st.Unlock()

	if sampled {
		completions.Submit(events.Completion{Kind: events.KindSyscallCompletion, SC: &ev})
	}
}

// BlockIOInsert handles block I/O insert: allocate a zero-initialized
// I/O-tracking record, assign it the next sequence number from the
// inserting task's eTSA, and remember the handle as the task's current
// in-flight request.
func BlockIOInsert(etsaStore *etsa.Store, iorqStore *iorq.Store, id types.TaskID, rq types.IORequest, nowKtime int64) {
	st := etsaStore.GetOrCreate(id)
	st.Lock()
	st.IORQSeqNum++
	seq := st.IORQSeqNum
	st.LastIORQRequest = rq
	st.LastIORQValid = true
	st.Unlock()

	rec := iorqStore.Create(rq)
	rec.Lock()
	rec.SeqNum = seq
	rec.InsertTID = id.TID
	rec.InsertTGID = id.TGID
	rec.InsertKtime = nowKtime
	rec.Unlock()
}

// BlockIOIssue handles block I/O issue: fill in the issuing identity on
// the existing tracking record from insert, or — for a direct-dispatch
// request that skipped the queue — create the record now with insert
// and issue identities both set to the current task.
func BlockIOIssue(etsaStore *etsa.Store, iorqStore *iorq.Store, id types.TaskID, rq types.IORequest, nowKtime int64) {
	if rec := iorqStore.Lookup(rq); rec != nil {
		rec.Lock()
		rec.IssueTID = id.TID
		rec.IssueTGID = id.TGID
		rec.IssueKtime = nowKtime
		rec.HasIssue = true
		rec.Unlock()
		return
	}

	st := etsaStore.GetOrCreate(id)
	st.Lock()
	st.IORQSeqNum++
	seq := st.IORQSeqNum
	st.LastIORQRequest = rq
	st.LastIORQValid = true
	st.Unlock()

	rec := iorqStore.Create(rq)
	rec.Lock()
	rec.SeqNum = seq
	rec.InsertTID, rec.InsertTGID = id.TID, id.TGID
	rec.IssueTID, rec.IssueTGID = id.TID, id.TGID
	rec.InsertKtime, rec.IssueKtime = nowKtime, nowKtime
	rec.HasIssue = true
	rec.Unlock()
}

// IOCompleteInfo carries the device/transfer facts only the completing
// probe invocation knows, gathered from the block layer request at the
// point of completion.
type IOCompleteInfo struct {
	Major, Minor uint32
	Sector       uint64
	Bytes        uint64
	Flags        uint32
	Error        int32
}

// BlockIOComplete handles block I/O completion: look up the tracking
// record; if absent, there is nothing to do. If it was never observed in
// flight by the sampler, discard it silently. Otherwise emit an
// I/O-completion record and delete the tracking entry.
func BlockIOComplete(iorqStore *iorq.Store, completions Completions, rq types.IORequest, nowKtime int64, info IOCompleteInfo) {
	rec := iorqStore.Lookup(rq)
	if rec == nil {
		return
	}

	rec.Lock()
	sampled := rec.Sampled
	var ev events.IORQCompletion
	if sampled {
		ev = events.IORQCompletion{
			InsertTID:     rec.InsertTID,
			InsertTGID:    rec.InsertTGID,
			IssueTID:      rec.IssueTID,
			IssueTGID:     rec.IssueTGID,
			IORQSeqNum:    rec.SeqNum,
			InsertKtime:   rec.InsertKtime,
			IssueKtime:    rec.IssueKtime,
			CompleteKtime: nowKtime,
			Major:         info.Major,
			Minor:         info.Minor,
			Sector:        info.Sector,
			Bytes:         types.ToBytes(info.Bytes),
			Flags:         info.Flags,
			Error:         info.Error,
		}
	}
	rec.Unlock()

	iorqStore.Delete(rq)

	if sampled {
		completions.Submit(events.Completion{Kind: events.KindIORQCompletion, IORQ: &ev})
	}
}
