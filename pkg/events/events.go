// Package events defines the wire-level record shapes that flow from
// probes and the task iterator, through the ring-buffer transport, to the
// user-side consumer: task-sample events and the two completion event
// kinds, multiplexed behind a single discriminated Completion so both
// kinds can share one ring buffer.
package events

import "github.com/xcapture/xcapture/pkg/types"

// CompletionKind discriminates the two completion record shapes carried
// in the completion-events ring buffer.
type CompletionKind uint8

const (
	KindSyscallCompletion CompletionKind = iota
	KindIORQCompletion
)

// SocketInfo is the optional connection summary attached to a sample when
// the syscall's file descriptor refers to a socket.
type SocketInfo struct {
	Family     string // "inet", "inet6", "unix", …
	Protocol   string // "tcp", "udp", …
	LocalAddr  string
	LocalPort  uint16
	RemoteAddr string
	RemotePort uint16
}

// Sample is a task-sample event: a full snapshot of a task at a sampling
// instant.
type Sample struct {
	WallTime    int64 // ns since epoch, filled in by the consumer's time correlation
	ActualKtime int64 // monotonic time this task was actually visited within the tick

	TID   types.TID
	TGID  types.TGID
	State uint32 // raw kernel task-state bitmask, decoded by pkg/taskstate
	Flags uint32 // raw kernel task-flags bitmask (PF_KTHREAD etc.)
	UID   uint32

	Comm string // command name (task_struct->comm)
	Exe  string // executable path basename

	SyscallActive bool  // true if in_syscall_nr != NoSyscall at sample time
	SyscallNr     int32 // types.NoSyscall when not in a syscall
	Args          [6]uint64

	SCEnterTimeKtime int64 // 0 when no syscall is active
	SCSeqNum         uint64
	IORQSeqNum       uint64

	Filename string // dentry-derived filename, if arg0 is an fd (static bitmap lookup)
	Socket   *SocketInfo

	AIOInflight        uint32
	AIOInflightUnknown bool

	KernelStack []uint64 // present only when kernel-stack capture is enabled
	UserStack   []uint64 // present only when userspace-stack capture is enabled
}

// SyscallCompletion is emitted when a sampled syscall returns.
type SyscallCompletion struct {
	TID       types.TID
	TGID      types.TGID
	SyscallNr int32
	SCSeqNum  uint64

	SCEnterTimeKtime int64
	SCExitTimeKtime  int64
	RetVal           int64
}

// IORQCompletion is emitted when a sampled block I/O request completes.
type IORQCompletion struct {
	InsertTID  types.TID
	InsertTGID types.TGID
	IssueTID   types.TID
	IssueTGID  types.TGID

	IORQSeqNum uint64

	InsertKtime   int64
	IssueKtime    int64
	CompleteKtime int64

	Major uint32
	Minor uint32
	Sector uint64
	Bytes  types.Bytes

	Flags uint32 // raw block I/O request flags, decoded by pkg/ioflags
	Error int32
}

// Completion is the tagged union submitted to the completion-events ring
// buffer: exactly one of SC or IORQ is populated, selected by Kind.
type Completion struct {
	Kind CompletionKind
	SC   *SyscallCompletion
	IORQ *IORQCompletion
}
