package syscalltable

// amd64Numbers is the x86-64 syscall table (arch/x86/entry/syscalls/syscall_64.tbl),
// limited to the subset xcapture's sampler and consumer need to name and
// classify: the syscalls a blocked thread is commonly observed in.
var amd64Numbers = map[string]int32{
	"read":          0,
	"write":         1,
	"open":          2,
	"close":         3,
	"stat":          4,
	"fstat":         5,
	"lseek":         8,
	"mmap":          9,
	"ioctl":         16,
	"pread64":       17,
	"pwrite64":      18,
	"readv":         19,
	"writev":        20,
	"access":        21,
	"pipe":          22,
	"select":        23,
	"sched_yield":   24,
	"dup":           32,
	"dup2":          33,
	"nanosleep":     35,
	"getpid":        39,
	"socket":        41,
	"connect":       42,
	"accept":        43,
	"sendto":        44,
	"recvfrom":      45,
	"sendmsg":       46,
	"recvmsg":       47,
	"shutdown":      48,
	"bind":          49,
	"listen":        50,
	"getsockopt":    55,
	"setsockopt":    54,
	"fork":          57,
	"execve":        59,
	"exit":          60,
	"wait4":         61,
	"fcntl":         72,
	"flock":         73,
	"fsync":         74,
	"fdatasync":     75,
	"ftruncate":     77,
	"getdents":      78,
	"poll":          7,
	"futex":         202,
	"io_setup":      206,
	"io_destroy":    207,
	"io_getevents":  208,
	"io_submit":     209,
	"io_cancel":     210,
	"epoll_wait":    232,
	"epoll_ctl":     233,
	"preadv":        295,
	"pwritev":       296,
	"accept4":       288,
	"io_pgetevents":  333,
	"io_uring_enter":  426,
}

var amd64Table = build("amd64", amd64Numbers)
