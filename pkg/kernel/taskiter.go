package kernel

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cilium/ebpf/link"

	"github.com/xcapture/xcapture/pkg/sampler"
	"github.com/xcapture/xcapture/pkg/types"
)

// AttachTaskIterator opens the BPF task iterator program the companion
// object is expected to export under the name "task_iter", and returns a
// sampler.TaskSource that re-opens and fully drains it once per Walk call —
// the same once-per-tick semantics a bpf_iter link gives a single reader.
func (a *Attachment) AttachTaskIterator() (sampler.TaskSource, error) {
	prog, ok := a.coll.Programs["task_iter"]
	if !ok {
		return nil, fmt.Errorf("kernel: BPF object missing program %q", "task_iter")
	}
	it, err := link.AttachIter(link.IterOptions{Program: prog})
	if err != nil {
		return nil, fmt.Errorf("kernel: attach task iterator: %w", err)
	}
	a.links = append(a.links, it)
	return &taskSource{iter: it}, nil
}

type taskSource struct {
	iter *link.Iter
}

// Walk opens a fresh read of the iterator and decodes every fixed-layout
// task record it yields until EOF. The per-record wire layout (tid, tgid,
// state, flags, uid, comm, syscall args) is a contract with the companion
// BPF object, exactly like the completions ring buffer's layout. The
// record carries no exe, filename, socket or stack fields, so those
// RawTask fields stay empty.
func (s *taskSource) Walk(ctx context.Context) ([]sampler.RawTask, error) {
	r, err := s.iter.Open()
	if err != nil {
		return nil, fmt.Errorf("kernel: open task iterator: %w", err)
	}
	defer r.Close()

	var out []sampler.RawTask
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		rec, err := readTaskRecord(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("kernel: decode task record: %w", err)
		}
		out = append(out, rec)
	}
}

const taskRecordFixedLen = 4 + 4 + 4 + 4 + 4 + 16 + 6*8 // tid,tgid,state,flags,uid,comm[16],args[6]

func readTaskRecord(r io.Reader) (sampler.RawTask, error) {
	var hdr [taskRecordFixedLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return sampler.RawTask{}, err
	}

	tid := int32FromLE(hdr[0:4])
	tgid := int32FromLE(hdr[4:8])
	state := binary.LittleEndian.Uint32(hdr[8:12])
	flags := binary.LittleEndian.Uint32(hdr[12:16])
	uid := binary.LittleEndian.Uint32(hdr[16:20])
	comm := cString(hdr[20:36])

	var args [6]uint64
	for i := range args {
		off := 36 + i*8
		args[i] = binary.LittleEndian.Uint64(hdr[off : off+8])
	}

	return sampler.RawTask{
		ID:    types.TaskID{TID: types.TID(tid), TGID: types.TGID(tgid)},
		State: state,
		Flags: flags,
		UID:   uid,
		Comm:  comm,
		Args:  args,
	}, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
