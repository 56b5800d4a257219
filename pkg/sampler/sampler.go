// Package sampler implements the task iterator sampler: the per-tick walk
// over every live task that decides which to emit and which in-flight
// syscalls/I/Os to mark for completion tracking.
//
// The actual walk over kernel tasks is left to a TaskSource collaborator;
// this package only implements the per-task decision algorithm run
// against whatever a TaskSource hands it.
package sampler

import (
	"context"

	"github.com/xcapture/xcapture/pkg/etsa"
	"github.com/xcapture/xcapture/pkg/events"
	"github.com/xcapture/xcapture/pkg/iorq"
	"github.com/xcapture/xcapture/pkg/syscalltable"
	"github.com/xcapture/xcapture/pkg/taskstate"
	"github.com/xcapture/xcapture/pkg/types"
)

// RawTask is one task as handed to the sampler by the task-walking
// mechanism for this tick. The fd-to-filename and fd-to-socket lookups
// are themselves resolved upstream; RawTask carries their result, already
// keyed to argument 0, so the sampler only has to decide *whether* the
// current syscall's first argument is an fd worth attaching (via the
// static bitmap in pkg/syscalltable).
type RawTask struct {
	ID    types.TaskID
	State uint32
	Flags uint32
	UID   uint32
	Comm  string
	Exe   string
	Args  [6]uint64

	Filename string              // dentry-derived filename for Args[0] as an fd, if resolved
	Socket   *events.SocketInfo  // populated when Args[0] as an fd refers to a socket
	KStack   func() []uint64     // lazily captured kernel stack, nil if unavailable
	UStack   func() []uint64     // lazily captured userspace stack, nil if unavailable
}

// TaskSource performs one tick's walk over every live task.
type TaskSource interface {
	Walk(ctx context.Context) ([]RawTask, error)
}

// Config holds the interest-filter policy for one sampler instance.
type Config struct {
	ShowAll             bool      // -a: disable the interest filter
	DaemonPortThreshold uint16    // -d: default 10000
	OnlyTGID            types.TGID // -p: 0 means "no restriction"
	SelfTID             types.TID  // the sampler's own task, always excluded
	KStackDepth         int        // -k: 0 disables kernel stack capture
	UStackDepth         int        // -u: 0 disables userspace stack capture
}

// Sampler runs the per-tick walk and per-task algorithm.
type Sampler struct {
	source TaskSource
	etsa   *etsa.Store
	iorq   *iorq.Store
	cfg    Config
	nowFn  func() int64
}

// New constructs a Sampler. nowFn supplies the monotonic clock (ktime.Now
// in production, a fake in tests).
func New(source TaskSource, etsaStore *etsa.Store, iorqStore *iorq.Store, cfg Config, nowFn func() int64) *Sampler {
	return &Sampler{source: source, etsa: etsaStore, iorq: iorqStore, cfg: cfg, nowFn: nowFn}
}

// Tick runs one sample tick: walks all tasks, applies the filter, marks
// in-flight syscalls/I/Os as sampled, and returns one task-sample event
// per interesting task.
func (s *Sampler) Tick(ctx context.Context) ([]events.Sample, error) {
	tasks, err := s.source.Walk(ctx)
	if err != nil {
		return nil, err
	}

	startKtime := s.nowFn()
	var out []events.Sample
	for _, t := range tasks {
		actual := s.nowFn()

		curSyscallNr := types.NoSyscall
		if peek := s.etsa.Lookup(t.ID); peek != nil {
			peek.Lock()
			curSyscallNr = peek.InSyscallNr
			peek.Unlock()
		}

		if !s.interesting(t, curSyscallNr) {
			continue
		}

		st := s.etsa.GetOrCreate(t.ID)
		st.Lock()
		st.SampleStartKtime = startKtime
		st.SampleActualKtime = actual

		syscallActive := st.InSyscallNr != types.NoSyscall
		if syscallActive {
			st.SCSampled = true
		}

		hasIO := st.LastIORQValid
		rq := st.LastIORQRequest
		if hasIO {
			st.LastIORQSampled = rq
			st.LastIORQSampledValid = true
		}

		syscallNr := st.InSyscallNr
		scSeq := st.SCSeqNum
		scEnter := st.SCEnterTime
		iorqSeq := st.IORQSeqNum
		aioInflight := st.AIOInflightReqs
		aioUnknown := st.AIOInflightUnknown
		st.Unlock()

		if hasIO {
			if rec := s.iorq.Lookup(rq); rec != nil {
				rec.Lock()
				rec.Sampled = true
				rec.Unlock()
			}
		}

		ev := events.Sample{
			ActualKtime:       actual,
			TID:               t.ID.TID,
			TGID:              t.ID.TGID,
			State:             t.State,
			Flags:             t.Flags,
			UID:               t.UID,
			Comm:              t.Comm,
			Exe:               t.Exe,
			SyscallActive:     syscallActive,
			SyscallNr:         syscallNr,
			Args:              t.Args,
			SCEnterTimeKtime:  scEnter,
			SCSeqNum:          scSeq,
			IORQSeqNum:        iorqSeq,
			AIOInflight:       aioInflight,
			AIOInflightUnknown: aioUnknown,
		}

		if syscallActive && syscalltable.Native.IsFDArg(syscallNr) {
			ev.Filename = t.Filename
			ev.Socket = t.Socket
		}
		if s.cfg.KStackDepth > 0 && t.KStack != nil {
			ev.KernelStack = truncate(t.KStack(), s.cfg.KStackDepth)
		}
		if s.cfg.UStackDepth > 0 && t.UStack != nil {
			ev.UserStack = truncate(t.UStack(), s.cfg.UStackDepth)
		}

		out = append(out, ev)
	}
	return out, nil
}

func truncate(addrs []uint64, depth int) []uint64 {
	if len(addrs) <= depth {
		return addrs
	}
	return addrs[:depth]
}

// interesting decides whether a task is worth emitting this tick.
func (s *Sampler) interesting(t RawTask, curSyscallNr int32) bool {
	if s.cfg.SelfTID != 0 && t.ID.TID == s.cfg.SelfTID {
		return false
	}
	if s.cfg.OnlyTGID != 0 && t.ID.TGID != s.cfg.OnlyTGID {
		return false
	}
	if s.cfg.ShowAll {
		return true
	}
	if taskstate.IsNoLoad(t.State) {
		return false
	}
	if taskstate.IsRunning(t.State) || taskstate.IsUninterruptible(t.State) {
		return true
	}
	if taskstate.IsInterruptible(t.State) {
		if taskstate.IsKernelThread(t.Flags) {
			return false
		}
		if t.Socket != nil &&
			syscalltable.Native.IsReadFamily(curSyscallNr) &&
			t.Socket.LocalPort > s.cfg.DaemonPortThreshold {
			return true
		}
		return false
	}
	return false
}
