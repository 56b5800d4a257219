// Package syscalltable decodes syscall numbers to names via a static,
// architecture-keyed table, and answers the three structural questions the
// sampler and consumer need about a syscall: is its first argument a file
// descriptor (so the dentry-derived filename can be attached to a
// sample), is it one of the two AIO-wait syscalls (so the AIO ring
// depth should be read on entry), and is it a read-family syscall (for the
// daemon-port interest filter). Gaps and out-of-table numbers render as
// decimal.
package syscalltable

import "strconv"

// Table is a fully-resolved, architecture-specific syscall table.
type Table struct {
	arch   string
	byName map[string]int32
	byNum  map[int32]string
	fdArg      map[int32]bool
	aioWait    map[int32]bool
	readFamily map[int32]bool
}

// fdArgNames lists syscalls whose first argument is a file descriptor —
// the set the sampler consults to decide whether to attach a
// dentry-derived filename to a task-sample event.
var fdArgNames = []string{
	"read", "write", "pread64", "pwrite64", "readv", "writev",
	"preadv", "pwritev", "recvfrom", "sendto", "recvmsg", "sendmsg",
	"accept", "accept4", "fsync", "fdatasync", "close", "fstat",
	"ioctl", "fcntl", "ftruncate", "flock", "getsockopt", "setsockopt",
	"lseek", "dup", "shutdown",
}

// aioWaitNames lists the two AIO-wait syscalls whose entry probe reads
// the AIO ring head/tail pointers.
var aioWaitNames = []string{"io_getevents", "io_pgetevents"}

// readFamilyNames lists the syscalls the interest filter treats as
// "blocked reading" for the daemon-port heuristic: a client waiting for
// a reply, as opposed to accept(2) which is a server idling on its
// listen socket and never counts as read-family.
var readFamilyNames = []string{"read", "readv", "recvfrom", "recvmsg", "pread64", "preadv"}

func build(arch string, numbers map[string]int32) *Table {
	t := &Table{
		arch:       arch,
		byName:     numbers,
		byNum:      make(map[int32]string, len(numbers)),
		fdArg:      make(map[int32]bool),
		aioWait:    make(map[int32]bool),
		readFamily: make(map[int32]bool),
	}
	for name, nr := range numbers {
		t.byNum[nr] = name
	}
	for _, name := range fdArgNames {
		if nr, ok := numbers[name]; ok {
			t.fdArg[nr] = true
		}
	}
	for _, name := range aioWaitNames {
		if nr, ok := numbers[name]; ok {
			t.aioWait[nr] = true
		}
	}
	for _, name := range readFamilyNames {
		if nr, ok := numbers[name]; ok {
			t.readFamily[nr] = true
		}
	}
	return t
}

// Name renders a syscall number as its name, or as decimal if the number
// is outside the table.
func (t *Table) Name(nr int32) string {
	if name, ok := t.byNum[nr]; ok {
		return name
	}
	return strconv.Itoa(int(nr))
}

// Number looks up a syscall by name, for tests and CLI flag parsing.
func (t *Table) Number(name string) (int32, bool) {
	nr, ok := t.byName[name]
	return nr, ok
}

// IsFDArg reports whether nr's first argument is a file descriptor.
func (t *Table) IsFDArg(nr int32) bool { return t.fdArg[nr] }

// IsAIOWait reports whether nr is one of the two AIO-wait syscalls.
func (t *Table) IsAIOWait(nr int32) bool { return t.aioWait[nr] }

// IsReadFamily reports whether nr is one of the "blocked reading" syscalls
// the daemon-port heuristic looks for.
func (t *Table) IsReadFamily(nr int32) bool { return t.readFamily[nr] }

// Arch reports the GOARCH this table was built for.
func (t *Table) Arch() string { return t.arch }

// For returns the static table for the given GOARCH, falling back to a
// decimal-only table (no names resolved, but still usable) for
// architectures without a curated table.
func For(arch string) *Table {
	switch arch {
	case "amd64":
		return amd64Table
	case "arm64":
		return arm64Table
	default:
		return build(arch, map[string]int32{})
	}
}

// Native is the table for runtime.GOARCH, built once at package init.
var Native = For(nativeArch)
