package sampler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcapture/xcapture/pkg/etsa"
	"github.com/xcapture/xcapture/pkg/events"
	"github.com/xcapture/xcapture/pkg/iorq"
	"github.com/xcapture/xcapture/pkg/taskstate"
	"github.com/xcapture/xcapture/pkg/types"
)

type fakeSource struct {
	tasks []RawTask
}

func (f fakeSource) Walk(context.Context) ([]RawTask, error) { return f.tasks, nil }

func fakeClock(start int64) func() int64 {
	n := start
	return func() int64 {
		n++
		return n
	}
}

func TestTickEmitsRunningAndDiskTasks(t *testing.T) {
	tasks := []RawTask{
		{ID: types.TaskID{TID: 1, TGID: 1}, State: uint32(taskstate.Run)},
		{ID: types.TaskID{TID: 2, TGID: 2}, State: uint32(taskstate.Disk)},
	}
	s := New(fakeSource{tasks}, etsa.NewStore(), iorq.NewStore(), Config{}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestTickExcludesNoLoadAndIdleTasks(t *testing.T) {
	tasks := []RawTask{
		{ID: types.TaskID{TID: 1, TGID: 1}, State: uint32(taskstate.NoLoad)},
		{ID: types.TaskID{TID: 2, TGID: 2}, State: uint32(taskstate.Idle)},
	}
	s := New(fakeSource{tasks}, etsa.NewStore(), iorq.NewStore(), Config{}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTickExcludesSleepingKernelThreads(t *testing.T) {
	tasks := []RawTask{
		{ID: types.TaskID{TID: 1, TGID: 1}, State: uint32(taskstate.Sleep), Flags: taskstate.PFKthread},
	}
	s := New(fakeSource{tasks}, etsa.NewStore(), iorq.NewStore(), Config{}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTickEmitsSleepingDaemonPortClient(t *testing.T) {
	etsaStore := etsa.NewStore()
	id := types.TaskID{TID: 1, TGID: 1}
	st := etsaStore.GetOrCreate(id)
	readNr := int32(0) // amd64 "read"
	st.Lock()
	st.InSyscallNr = readNr
	st.Unlock()

	task := RawTask{
		ID:     id,
		State:  uint32(taskstate.Sleep),
		Socket: &events.SocketInfo{LocalPort: 20000},
	}
	s := New(fakeSource{[]RawTask{task}}, etsaStore, iorq.NewStore(), Config{DaemonPortThreshold: 10000}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].SyscallActive)
}

func TestTickExcludesSleepingNonDaemonPortClient(t *testing.T) {
	task := RawTask{
		ID:     types.TaskID{TID: 1, TGID: 1},
		State:  uint32(taskstate.Sleep),
		Socket: &events.SocketInfo{LocalPort: 80},
	}
	s := New(fakeSource{[]RawTask{task}}, etsa.NewStore(), iorq.NewStore(), Config{DaemonPortThreshold: 10000}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTickShowAllBypassesFilter(t *testing.T) {
	task := RawTask{ID: types.TaskID{TID: 1, TGID: 1}, State: uint32(taskstate.NoLoad)}
	s := New(fakeSource{[]RawTask{task}}, etsa.NewStore(), iorq.NewStore(), Config{ShowAll: true}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestTickExcludesSelfTID(t *testing.T) {
	task := RawTask{ID: types.TaskID{TID: 5, TGID: 5}, State: uint32(taskstate.Run)}
	s := New(fakeSource{[]RawTask{task}}, etsa.NewStore(), iorq.NewStore(), Config{SelfTID: 5}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTickFiltersByOnlyTGID(t *testing.T) {
	tasks := []RawTask{
		{ID: types.TaskID{TID: 1, TGID: 100}, State: uint32(taskstate.Run)},
		{ID: types.TaskID{TID: 2, TGID: 200}, State: uint32(taskstate.Run)},
	}
	s := New(fakeSource{tasks}, etsa.NewStore(), iorq.NewStore(), Config{OnlyTGID: 100}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 100, out[0].TGID)
}

func TestTickMarksInFlightSyscallAndIORequestAsSampled(t *testing.T) {
	etsaStore := etsa.NewStore()
	iorqStore := iorq.NewStore()
	id := types.TaskID{TID: 1, TGID: 1}

	st := etsaStore.GetOrCreate(id)
	st.Lock()
	st.InSyscallNr = 7
	st.LastIORQRequest = types.IORequest(42)
	st.LastIORQValid = true
	st.Unlock()

	rec := iorqStore.Create(types.IORequest(42))
	rec.Lock()
	rec.Unlock()

	task := RawTask{ID: id, State: uint32(taskstate.Disk)}
	s := New(fakeSource{[]RawTask{task}}, etsaStore, iorqStore, Config{}, fakeClock(0))

	_, err := s.Tick(context.Background())
	require.NoError(t, err)

	st.Lock()
	assert.True(t, st.SCSampled)
	st.Unlock()

	rec.Lock()
	assert.True(t, rec.Sampled)
	rec.Unlock()
}

func TestTickAttachesFilenameAndSocketOnlyForFDArgSyscall(t *testing.T) {
	etsaStore := etsa.NewStore()
	id := types.TaskID{TID: 1, TGID: 1}
	st := etsaStore.GetOrCreate(id)
	readNr := int32(0)
	st.Lock()
	st.InSyscallNr = readNr
	st.Unlock()

	task := RawTask{
		ID:       id,
		State:    uint32(taskstate.Disk),
		Filename: "/proc/self/status",
		Socket:   &events.SocketInfo{Family: "inet"},
	}
	s := New(fakeSource{[]RawTask{task}}, etsaStore, iorq.NewStore(), Config{}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/proc/self/status", out[0].Filename)
	require.NotNil(t, out[0].Socket)
	assert.Equal(t, "inet", out[0].Socket.Family)
}

func TestTickTruncatesStacksToConfiguredDepth(t *testing.T) {
	task := RawTask{
		ID:    types.TaskID{TID: 1, TGID: 1},
		State: uint32(taskstate.Run),
		KStack: func() []uint64 {
			return []uint64{1, 2, 3, 4, 5}
		},
	}
	s := New(fakeSource{[]RawTask{task}}, etsa.NewStore(), iorq.NewStore(), Config{KStackDepth: 2}, fakeClock(0))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []uint64{1, 2}, out[0].KernelStack)
}

func TestTickReportsCurrentSequenceNumber(t *testing.T) {
	etsaStore := etsa.NewStore()
	id := types.TaskID{TID: 1, TGID: 1}
	task := RawTask{ID: id, State: uint32(taskstate.Run)}
	s := New(fakeSource{[]RawTask{task}}, etsaStore, iorq.NewStore(), Config{}, fakeClock(0))

	st := etsaStore.GetOrCreate(id)
	st.Lock()
	st.SCSeqNum = 3
	st.Unlock()

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 3, out[0].SCSeqNum)
}
