package syscalltable

// arm64Numbers is the arm64 generic syscall table
// (arch/arm64/include/uapi/asm/unistd.h / the Linux generic ABI), limited
// to a subset similar to amd64Numbers; the entries differ where the generic
// ABI lacks a syscall (open, stat, poll) or has its own (ppoll, pselect6).
var arm64Numbers = map[string]int32{
	"io_setup":      0,
	"io_destroy":    1,
	"io_submit":     2,
	"io_cancel":     3,
	"io_getevents":  4,
	"setxattr":      5,
	"dup":           23,
	"dup3":          24,
	"fcntl":         25,
	"ioctl":         29,
	"flock":         32,
	"mknodat":       33,
	"statfs":        43,
	"ftruncate":     46,
	"fallocate":     47,
	"fsync":         82,
	"fdatasync":     83,
	"acct":          89,
	"exit":          93,
	"exit_group":    94,
	"futex":         98,
	"nanosleep":     101,
	"getpid":        172,
	"socket":        198,
	"bind":          200,
	"listen":        201,
	"accept":        202,
	"connect":       203,
	"getsockopt":    209,
	"setsockopt":    208,
	"sendto":        206,
	"recvfrom":      207,
	"sendmsg":       211,
	"recvmsg":       212,
	"shutdown":      210,
	"readv":         65,
	"writev":        66,
	"pread64":       67,
	"pwrite64":      68,
	"preadv":        69,
	"pwritev":       70,
	"pselect6":       72,
	"ppoll":          73,
	"readlinkat":     78,
	"fstat":          80,
	"close":          57,
	"read":           63,
	"write":          64,
	"lseek":          62,
	"accept4":        242,
	"epoll_ctl":       21,
	"epoll_pwait":     22,
	"io_pgetevents":   292,
	"io_uring_enter":  426,
}

var arm64Table = build("arm64", arm64Numbers)
