package probes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcapture/xcapture/pkg/etsa"
	"github.com/xcapture/xcapture/pkg/events"
	"github.com/xcapture/xcapture/pkg/iorq"
	"github.com/xcapture/xcapture/pkg/ringbuf"
	"github.com/xcapture/xcapture/pkg/syscalltable"
	"github.com/xcapture/xcapture/pkg/types"
)

func readNr(t *testing.T) int32 {
	nr, ok := syscalltable.Native.Number("read")
	require.True(t, ok)
	return nr
}

func TestSyscallEntryStampsStateAndBumpsSeqNum(t *testing.T) {
	store := etsa.NewStore()
	id := types.TaskID{TID: 1, TGID: 1}
	nr := readNr(t)

	SyscallEntry(store, id, nr, 1000, nil)

	st := store.Lookup(id)
	require.NotNil(t, st)
	st.Lock()
	defer st.Unlock()
	assert.Equal(t, nr, st.InSyscallNr)
	assert.Equal(t, int64(1000), st.SCEnterTime)
	assert.EqualValues(t, 1, st.SCSeqNum)
}

func TestSyscallEntryReadsAIORingOnWaitSyscalls(t *testing.T) {
	store := etsa.NewStore()
	id := types.TaskID{TID: 1, TGID: 1}
	waitNr, ok := syscalltable.Native.Number("io_getevents")
	if !ok {
		t.Skip("no io_getevents entry for native arch table")
	}

	reader := fakeAIOReader{count: 3, ok: true}
	SyscallEntry(store, id, waitNr, 1000, reader)

	st := store.Lookup(id)
	st.Lock()
	defer st.Unlock()
	assert.Equal(t, uint32(3), st.AIOInflightReqs)
	assert.False(t, st.AIOInflightUnknown)
}

type fakeAIOReader struct {
	count uint32
	ok    bool
}

func (f fakeAIOReader) Read(types.TaskID) (uint32, bool) { return f.count, f.ok }

func TestSyscallExitEmitsCompletionOnlyWhenSampled(t *testing.T) {
	store := etsa.NewStore()
	completions := ringbuf.New[events.Completion](4)
	id := types.TaskID{TID: 2, TGID: 2}
	nr := readNr(t)

	SyscallEntry(store, id, nr, 1000, nil)
	st := store.Lookup(id)
	st.Lock()
	st.SCSampled = true
	st.Unlock()

	SyscallExit(store, completions, id, 1500, 0)

	drained := completions.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, events.KindSyscallCompletion, drained[0].Kind)
	assert.Equal(t, nr, drained[0].SC.SyscallNr)
	assert.Equal(t, int64(1500), drained[0].SC.SCExitTimeKtime)

	st.Lock()
	assert.Equal(t, types.NoSyscall, st.InSyscallNr)
	assert.False(t, st.SCSampled)
	st.Unlock()
}

func TestSyscallExitSkipsUnsampled(t *testing.T) {
	store := etsa.NewStore()
	completions := ringbuf.New[events.Completion](4)
	id := types.TaskID{TID: 3, TGID: 3}
	nr := readNr(t)

	SyscallEntry(store, id, nr, 1000, nil)
	SyscallExit(store, completions, id, 1500, 0)

	assert.Empty(t, completions.Drain())
}

func TestSyscallExitLookupMissIsNoOp(t *testing.T) {
	store := etsa.NewStore()
	completions := ringbuf.New[events.Completion](4)
	id := types.TaskID{TID: 99, TGID: 99}

	assert.NotPanics(t, func() {
		SyscallExit(store, completions, id, 1000, 0)
	})
	assert.Empty(t, completions.Drain())
}

func TestBlockIOInsertThenIssueFillsRecord(t *testing.T) {
	etsaStore := etsa.NewStore()
	iorqStore := iorq.NewStore()
	id := types.TaskID{TID: 4, TGID: 4}
	rq := types.IORequest(55)

	BlockIOInsert(etsaStore, iorqStore, id, rq, 1000)
	BlockIOIssue(etsaStore, iorqStore, id, rq, 1200)

	rec := iorqStore.Lookup(rq)
	require.NotNil(t, rec)
	rec.Lock()
	defer rec.Unlock()
	assert.True(t, rec.HasIssue)
	assert.Equal(t, id.TID, rec.InsertTID)
	assert.Equal(t, id.TID, rec.IssueTID)
	assert.Equal(t, int64(1000), rec.InsertKtime)
	assert.Equal(t, int64(1200), rec.IssueKtime)
	assert.EqualValues(t, 1, rec.SeqNum)
}

func TestBlockIOIssueWithoutPriorInsertCreatesDirectDispatchRecord(t *testing.T) {
	etsaStore := etsa.NewStore()
	iorqStore := iorq.NewStore()
	id := types.TaskID{TID: 5, TGID: 5}
	rq := types.IORequest(77)

	BlockIOIssue(etsaStore, iorqStore, id, rq, 1300)

	rec := iorqStore.Lookup(rq)
	require.NotNil(t, rec)
	rec.Lock()
	defer rec.Unlock()
	assert.True(t, rec.HasIssue)
	assert.Equal(t, id.TID, rec.InsertTID)
	assert.Equal(t, id.TID, rec.IssueTID)
}

func TestBlockIOCompleteEmitsCompletionOnlyWhenSampled(t *testing.T) {
	etsaStore := etsa.NewStore()
	iorqStore := iorq.NewStore()
	completions := ringbuf.New[events.Completion](4)
	id := types.TaskID{TID: 6, TGID: 6}
	rq := types.IORequest(88)

	BlockIOInsert(etsaStore, iorqStore, id, rq, 1000)
	BlockIOIssue(etsaStore, iorqStore, id, rq, 1100)

	rec := iorqStore.Lookup(rq)
	rec.Lock()
	rec.Sampled = true
	rec.Unlock()

	BlockIOComplete(iorqStore, completions, rq, 1500, IOCompleteInfo{
		Major: 8, Minor: 1, Sector: 100, Bytes: 4096,
	})

	drained := completions.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, events.KindIORQCompletion, drained[0].Kind)
	assert.Equal(t, uint32(8), drained[0].IORQ.Major)
	assert.Equal(t, int64(1500), drained[0].IORQ.CompleteKtime)

	assert.Nil(t, iorqStore.Lookup(rq))
}

func TestBlockIOCompleteUnsampledIsDiscardedSilently(t *testing.T) {
	etsaStore := etsa.NewStore()
	iorqStore := iorq.NewStore()
	completions := ringbuf.New[events.Completion](4)
	id := types.TaskID{TID: 7, TGID: 7}
	rq := types.IORequest(99)

	BlockIOInsert(etsaStore, iorqStore, id, rq, 1000)
	BlockIOComplete(iorqStore, completions, rq, 1500, IOCompleteInfo{})

	assert.Empty(t, completions.Drain())
	assert.Nil(t, iorqStore.Lookup(rq))
}

func TestBlockIOCompleteLookupMissIsNoOp(t *testing.T) {
	iorqStore := iorq.NewStore()
	completions := ringbuf.New[events.Completion](4)

	assert.NotPanics(t, func() {
		BlockIOComplete(iorqStore, completions, types.IORequest(1), 1000, IOCompleteInfo{})
	})
}
