// Package kernel is the production adapter that attaches xcapture's probes
// to a running Linux kernel: it loads a precompiled BPF object, attaches
// its tracepoints, and bridges the resulting kernel ring buffers to the
// pure-Go ringbuf.Ring contract the rest of the module is built against.
//
// The BPF C sources and their compilation into the object file are outside
// this module's build, exactly as the task-walking BPF iterator program is
// assumed to exist in that object under a fixed name. Everything below is
// ordinary userspace Go calling into github.com/cilium/ebpf.
package kernel

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"

	"github.com/xcapture/xcapture/pkg/events"
	xcringbuf "github.com/xcapture/xcapture/pkg/ringbuf"
	"github.com/xcapture/xcapture/pkg/types"
)

// Options configures which probes get attached.
type Options struct {
	// ObjectPath is the compiled BPF object on disk.
	ObjectPath string

	// TrackSyscall/TrackIORQ gate attaching the completion-tracking
	// tracepoints, matching the -t syscall|iorq flag.
	TrackSyscall bool
	TrackIORQ    bool

	// CompletionsCapacity sizes the bridged in-process completions ring.
	CompletionsCapacity int
}

// programNames are the BPF program names the object file is required to
// export, keyed by the tracepoint they attach to.
var programNames = map[string]struct{ group, name string }{
	"sys_enter":        {"raw_syscalls", "sys_enter"},
	"sys_exit":         {"raw_syscalls", "sys_exit"},
	"block_rq_insert":  {"block", "block_rq_insert"},
	"block_rq_issue":   {"block", "block_rq_issue"},
	"block_rq_complete": {"block", "block_rq_complete"},
}

// Attachment owns every kernel-side resource this adapter opened: the
// loaded collection, its tracepoint links, and the ring buffer readers.
// Close releases all of them.
type Attachment struct {
	coll  *ebpf.Collection
	links []link.Link

	completionsReader *ringbuf.Reader
	completions       *xcringbuf.Ring[events.Completion]

	closeOnce sync.Once
	bridgeErr chan error
}

// Attach loads the BPF object at opts.ObjectPath, attaches the requested
// tracepoints, and starts bridging the kernel completions ring buffer into
// an in-process ringbuf.Ring. Any failure here is the documented
// attach/load failure: fatal at startup, never partially attached.
func Attach(opts Options) (*Attachment, error) {
	spec, err := ebpf.LoadCollectionSpec(opts.ObjectPath)
	if err != nil {
		return nil, fmt.Errorf("kernel: load BPF object %s: %w", opts.ObjectPath, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("kernel: load BPF collection: %w", err)
	}

	a := &Attachment{coll: coll, bridgeErr: make(chan error, 1)}

	wanted := []string{"sys_enter"}
	if opts.TrackSyscall {
		wanted = append(wanted, "sys_exit")
	}
	if opts.TrackIORQ {
		wanted = append(wanted, "block_rq_insert", "block_rq_issue", "block_rq_complete")
	}

	for _, progName := range wanted {
		prog, ok := coll.Programs[progName]
		if !ok {
			a.Close()
			return nil, fmt.Errorf("kernel: BPF object missing program %q", progName)
		}
		tp := programNames[progName]
		l, err := link.Tracepoint(tp.group, tp.name, prog, nil)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kernel: attach tracepoint %s/%s: %w", tp.group, tp.name, err)
		}
		a.links = append(a.links, l)
	}

	completionsMap, ok := coll.Maps["completions"]
	if !ok {
		a.Close()
		return nil, fmt.Errorf("kernel: BPF object missing ring buffer map %q", "completions")
	}
	rd, err := ringbuf.NewReader(completionsMap)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("kernel: open completions ring buffer: %w", err)
	}
	a.completionsReader = rd

	capacity := opts.CompletionsCapacity
	if capacity <= 0 {
		capacity = 8192
	}
	a.completions = xcringbuf.New[events.Completion](capacity)
	go a.bridgeCompletions()

	return a, nil
}

// Completions returns the read side of the bridged completions ring, a
// RingReader satisfying ringbuf.Consumer so pkg/consumer depends on the
// same interface here as it does against the in-process fake ring in
// tests.
func (a *Attachment) Completions() *RingReader { return &RingReader{ring: a.completions} }

// RingReader is a thin adapter over the in-process ring this attachment
// bridges the kernel's completions ring buffer into. It exists so the
// production path hands pkg/consumer a narrow ringbuf.Consumer rather than
// the full *ringbuf.Ring[T], mirroring how pkg/probes only ever sees the
// write side (ringbuf.Producer) of the same transport.
type RingReader struct {
	ring *xcringbuf.Ring[events.Completion]
}

func (r *RingReader) Drain() []events.Completion { return r.ring.Drain() }

func (r *RingReader) Poll(timeout time.Duration) []events.Completion { return r.ring.Poll(timeout) }

var _ xcringbuf.Consumer[events.Completion] = (*RingReader)(nil)

// bridgeCompletions copies every record the kernel ring buffer yields into
// the in-process ring, decoding the wire record into events.Completion.
// It returns (stopping the bridge) once the reader is closed by Close.
func (a *Attachment) bridgeCompletions() {
	for {
		record, err := a.completionsReader.Read()
		if err != nil {
			a.bridgeErr <- err
			return
		}
		ev, err := decodeCompletion(record.RawSample)
		if err != nil {
			continue // malformed record from a mismatched object version; drop it
		}
		a.completions.Submit(ev)
	}
}

// completionWireKind mirrors the discriminant byte the BPF object writes at
// the front of every completions-ring record.
const (
	wireKindSyscall = 0
	wireKindIORQ    = 1
)

// decodeCompletion parses one fixed-layout record from the completions
// ring buffer. The exact field layout is a contract with the companion
// BPF object, not something this module can verify at build time.
func decodeCompletion(raw []byte) (events.Completion, error) {
	if len(raw) < 1 {
		return events.Completion{}, fmt.Errorf("kernel: empty completion record")
	}
	switch raw[0] {
	case wireKindSyscall:
		if len(raw) < 1+4+4+4+8+8+8+8 {
			return events.Completion{}, fmt.Errorf("kernel: short syscall completion record")
		}
		b := raw[1:]
		sc := &events.SyscallCompletion{
			TID:              int32FromLE(b[0:4]),
			TGID:             int32FromLE(b[4:8]),
			SyscallNr:        int32FromLE(b[8:12]),
			SCSeqNum:         binary.LittleEndian.Uint64(b[12:20]),
			SCEnterTimeKtime: int64FromLE(b[20:28]),
			SCExitTimeKtime:  int64FromLE(b[28:36]),
			RetVal:           int64FromLE(b[36:44]),
		}
		return events.Completion{Kind: events.KindSyscallCompletion, SC: sc}, nil
	case wireKindIORQ:
		const want = 1 + 4*4 + 8 + 8*3 + 4 + 4 + 8 + 8 + 4 + 4
		if len(raw) < want {
			return events.Completion{}, fmt.Errorf("kernel: short I/O completion record")
		}
		b := raw[1:]
		io := &events.IORQCompletion{
			InsertTID:     int32FromLE(b[0:4]),
			InsertTGID:    int32FromLE(b[4:8]),
			IssueTID:      int32FromLE(b[8:12]),
			IssueTGID:     int32FromLE(b[12:16]),
			IORQSeqNum:    binary.LittleEndian.Uint64(b[16:24]),
			InsertKtime:   int64FromLE(b[24:32]),
			IssueKtime:    int64FromLE(b[32:40]),
			CompleteKtime: int64FromLE(b[40:48]),
			Major:         binary.LittleEndian.Uint32(b[48:52]),
			Minor:         binary.LittleEndian.Uint32(b[52:56]),
			Sector:        binary.LittleEndian.Uint64(b[56:64]),
			Bytes:         types.ToBytes(binary.LittleEndian.Uint64(b[64:72])),
			Flags:         binary.LittleEndian.Uint32(b[72:76]),
			Error:         int32FromLE(b[76:80]),
		}
		return events.Completion{Kind: events.KindIORQCompletion, IORQ: io}, nil
	default:
		return events.Completion{}, fmt.Errorf("kernel: unknown completion discriminant %d", raw[0])
	}
}

func int32FromLE(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }
func int64FromLE(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }

// Close tears down every link and map reader this attachment opened. It is
// safe to call more than once and safe to call on a partially-built
// Attachment (Attach calls it itself on any failure path).
func (a *Attachment) Close() error {
	var firstErr error
	a.closeOnce.Do(func() {
		if a.completionsReader != nil {
			if err := a.completionsReader.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		for _, l := range a.links {
			if err := l.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if a.coll != nil {
			a.coll.Close()
		}
	})
	return firstErr
}
