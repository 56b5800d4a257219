// Package types carries the small value types shared across xcapture's
// sampler, correlator, and CSV-reporting packages.
package types

import "fmt"

// TID is a kernel thread id, unique system-wide.
type TID int32

// TGID is a kernel thread-group id — the POSIX "pid" of the owning process.
type TGID int32

// NoSyscall is the sentinel in_syscall_nr value meaning "in user mode".
const NoSyscall int32 = -1

// TaskID identifies a kernel-schedulable task by the (tid, tgid) pair.
type TaskID struct {
	TID  TID
	TGID TGID
}

func (id TaskID) String() string {
	return fmt.Sprintf("tid=%d tgid=%d", id.TID, id.TGID)
}

// IORequest is the opaque handle used to key in-flight block I/O requests.
// Kernel-side this is a request-queue pointer; here it is whatever stable,
// comparable value the kernel-source adapter derives from it.
type IORequest uint64
