// Package report renders task-sample and completion events into the CSV
// files xcapture leaves behind, one file per output kind per hour.
package report

import (
	"strconv"

	"github.com/xcapture/xcapture/pkg/device"
	"github.com/xcapture/xcapture/pkg/events"
	"github.com/xcapture/xcapture/pkg/ioflags"
	"github.com/xcapture/xcapture/pkg/symbolize"
	"github.com/xcapture/xcapture/pkg/syscalltable"
	"github.com/xcapture/xcapture/pkg/taskstate"
)

// Kind identifies one of the CSV output files xcapture writes.
type Kind string

const (
	KindSamples    Kind = "samples"
	KindSyscallEnd Kind = "syscend"
	KindIORQEnd    Kind = "iorqend"
	KindKStacks    Kind = "kstacks"
	KindUStacks    Kind = "ustacks"
)

// wideHeader is the full sample row column set. STACK_HASH/USTACK_HASH
// extend the abridged common-case listing to carry the dedup key a
// sample's captured stacks were filed under.
var wideHeader = []string{
	"TIMESTAMP", "TID", "TGID", "STATE", "USER", "EXE", "COMM",
	"SYSCALL_PASSIVE", "SYSCALL_ACTIVE",
	"SC_ENTRY_TIME", "SC_US_SO_FAR", "SC_SEQ_NUM", "IORQ_SEQ_NUM",
	"ARG0", "ARG1", "ARG2", "ARG3", "ARG4", "ARG5",
	"FILENAME", "CONNECTION", "EXTRA_INFO", "AIO_INFLIGHT",
	"STACK_HASH", "USTACK_HASH",
}

// narrowHeader is the commonly-useful subset for interactive use.
var narrowHeader = []string{
	"TIMESTAMP", "TID", "TGID", "STATE", "COMM",
	"SYSCALL_ACTIVE", "FILENAME", "CONNECTION",
}

// syscendHeader matches the syscall-completion row, plus trailing RETVAL
// and SYSCALL_NAME (the name beyond the raw number) columns.
var syscendHeader = []string{
	"TYPE", "TID", "TGID", "SYSCALL_NR", "SC_SEQ_NUM",
	"SC_ENTER_TIME", "SC_EXIT_TIME", "DURATION_US",
	"RETVAL", "SYSCALL_NAME",
}

// iorqendHeader matches the I/O-completion row, plus trailing QUEUE_US/
// SERVICE_US/TOTAL_US enrichments derived from the three timestamps.
var iorqendHeader = []string{
	"TYPE", "INSERT_TID", "INSERT_TGID", "ISSUE_TID", "ISSUE_TGID", "IORQ_SEQ_NUM",
	"INSERT_NS", "ISSUE_NS", "COMPLETE_NS",
	"DEV", "SECTOR", "BYTES", "FLAGS", "ERROR",
	"QUEUE_US", "SERVICE_US", "TOTAL_US",
}

var stackHeader = []string{"TIMESTAMP", "TID", "TGID", "STACK_HASH", "STACK_ADDRS", "STACK_SYMS"}

// sampleFields renders every wide column for one sample, keyed by header
// name so narrow/custom column sets can select a subset positionally.
func sampleFields(ev events.Sample, wallTimeFmt string, kStackHash, uStackHash string) map[string]string {
	active, passive := "", ""
	if ev.SyscallActive && !taskstate.IsKernelThread(ev.Flags) {
		name := syscalltable.Native.Name(ev.SyscallNr)
		if taskstate.IsInterruptible(ev.State) {
			passive = name
		} else {
			active = name
		}
	}

	scUsSoFar := ""
	scEntry := ""
	if ev.SyscallActive {
		scEntry = strconv.FormatInt(ev.SCEnterTimeKtime, 10)
		scUsSoFar = strconv.FormatInt((ev.ActualKtime-ev.SCEnterTimeKtime)/1000, 10)
	}

	connection, extra := "", ""
	if ev.Socket != nil {
		connection = ev.Socket.Protocol + " " + ev.Socket.LocalAddr + ":" + strconv.Itoa(int(ev.Socket.LocalPort)) +
			"->" + ev.Socket.RemoteAddr + ":" + strconv.Itoa(int(ev.Socket.RemotePort))
	}

	aioInflight := ""
	switch {
	case ev.AIOInflightUnknown:
		aioInflight = "?"
	case ev.SyscallActive && syscalltable.Native.IsAIOWait(ev.SyscallNr):
		aioInflight = strconv.FormatUint(uint64(ev.AIOInflight), 10)
	}

	return map[string]string{
		"TIMESTAMP":        wallTimeFmt,
		"TID":              strconv.Itoa(int(ev.TID)),
		"TGID":             strconv.Itoa(int(ev.TGID)),
		"STATE":            taskstate.Name(ev.State),
		"USER":             strconv.FormatUint(uint64(ev.UID), 10),
		"EXE":              ev.Exe,
		"COMM":             ev.Comm,
		"SYSCALL_PASSIVE":  passive,
		"SYSCALL_ACTIVE":   active,
		"SC_ENTRY_TIME":    scEntry,
		"SC_US_SO_FAR":     scUsSoFar,
		"SC_SEQ_NUM":       strconv.FormatUint(ev.SCSeqNum, 10),
		"IORQ_SEQ_NUM":     strconv.FormatUint(ev.IORQSeqNum, 10),
		"ARG0":             strconv.FormatUint(ev.Args[0], 10),
		"ARG1":             strconv.FormatUint(ev.Args[1], 10),
		"ARG2":             strconv.FormatUint(ev.Args[2], 10),
		"ARG3":             strconv.FormatUint(ev.Args[3], 10),
		"ARG4":             strconv.FormatUint(ev.Args[4], 10),
		"ARG5":             strconv.FormatUint(ev.Args[5], 10),
		"FILENAME":         ev.Filename,
		"CONNECTION":       connection,
		"EXTRA_INFO":       extra,
		"AIO_INFLIGHT":     aioInflight,
		"STACK_HASH":       kStackHash,
		"USTACK_HASH":      uStackHash,
	}
}

func row(header []string, fields map[string]string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = fields[col]
	}
	return out
}

func syscallEndRow(ev events.SyscallCompletion) []string {
	return []string{
		"SC",
		strconv.Itoa(int(ev.TID)),
		strconv.Itoa(int(ev.TGID)),
		strconv.Itoa(int(ev.SyscallNr)),
		strconv.FormatUint(ev.SCSeqNum, 10),
		strconv.FormatInt(ev.SCEnterTimeKtime, 10),
		strconv.FormatInt(ev.SCExitTimeKtime, 10),
		strconv.FormatInt((ev.SCExitTimeKtime-ev.SCEnterTimeKtime)/1000, 10),
		strconv.FormatInt(ev.RetVal, 10),
		syscalltable.Native.Name(ev.SyscallNr),
	}
}

func iorqEndRow(ev events.IORQCompletion) []string {
	queueUS, serviceUS := "", ""
	if ev.IssueKtime != 0 {
		queueUS = strconv.FormatInt((ev.IssueKtime-ev.InsertKtime)/1000, 10)
		serviceUS = strconv.FormatInt((ev.CompleteKtime-ev.IssueKtime)/1000, 10)
	}
	totalUS := strconv.FormatInt((ev.CompleteKtime-ev.InsertKtime)/1000, 10)

	return []string{
		"IORQ",
		strconv.Itoa(int(ev.InsertTID)),
		strconv.Itoa(int(ev.InsertTGID)),
		strconv.Itoa(int(ev.IssueTID)),
		strconv.Itoa(int(ev.IssueTGID)),
		strconv.FormatUint(ev.IORQSeqNum, 10),
		strconv.FormatInt(ev.InsertKtime, 10),
		strconv.FormatInt(ev.IssueKtime, 10),
		strconv.FormatInt(ev.CompleteKtime, 10),
		device.String(ev.Major, ev.Minor),
		strconv.FormatUint(ev.Sector, 10),
		strconv.FormatUint(ev.Bytes.Uint64(), 10),
		ioflags.Render(ev.Flags),
		strconv.Itoa(int(ev.Error)),
		queueUS, serviceUS, totalUS,
	}
}

// stackRow renders one captured stack's address list plus, per address, a
// resolver-provided symbol name falling back to the same hex address when
// the resolver can't place it — resolver is never nil, callers pass
// symbolize.NoOp{} when no real resolver is wired in.
func stackRow(wallTimeFmt string, tid, tgid string, hash uint64, addrs []uint64, resolver symbolize.Resolver) []string {
	hexAddrs := make([]byte, 0, len(addrs)*19)
	syms := make([]byte, 0, len(addrs)*19)
	for i, a := range addrs {
		if i > 0 {
			hexAddrs = append(hexAddrs, ' ')
			syms = append(syms, ' ')
		}
		hexAddrs = strconv.AppendUint(hexAddrs, a, 16)
		if sym, ok := resolver.Resolve(a); ok {
			syms = append(syms, sym...)
		} else {
			syms = strconv.AppendUint(syms, a, 16)
		}
	}
	return []string{
		wallTimeFmt, tid, tgid,
		strconv.FormatUint(hash, 16),
		string(hexAddrs),
		string(syms),
	}
}
