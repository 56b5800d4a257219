// Package ioflags renders a block I/O request's raw operation and
// modifier-flag bitmask into the consumer's CSV text form: a "|"-joined
// list drawn from a fixed set of modifier names, concatenated with the
// operation name.
package ioflags

// Op is the low-byte block I/O operation code.
type Op uint32

const (
	OpRead Op = iota
	OpWrite
	OpFlush
	OpDiscard
	OpSecureErase
	OpWriteZeroes
)

var opNames = map[Op]string{
	OpRead:        "Read",
	OpWrite:       "Write",
	OpFlush:       "Flush",
	OpDiscard:     "Discard",
	OpSecureErase: "SecureErase",
	OpWriteZeroes: "WriteZeroes",
}

// Modifier bits, packed above the low byte carrying Op.
const (
	NoWait Modifier = 1 << (8 + iota)
	Background
	ReadAhead
	PreFlush
	FUA
	Integrity
	Idle
	NoMerge
	Priority
	Metadata
	Sync
)

// Modifier is one bit of the request's modifier flags.
type Modifier uint32

// orderedModifiers is the fixed rendering order for the "|"-joined string.
var orderedModifiers = []struct {
	bit  Modifier
	name string
}{
	{NoWait, "NoWait"},
	{Background, "Background"},
	{ReadAhead, "ReadAhead"},
	{PreFlush, "PreFlush"},
	{FUA, "FUA"},
	{Integrity, "Integrity"},
	{Idle, "Idle"},
	{NoMerge, "NoMerge"},
	{Priority, "Priority"},
	{Metadata, "Metadata"},
	{Sync, "Sync"},
}

// OpOf extracts the operation code from the low byte of a raw flags word.
func OpOf(raw uint32) Op { return Op(raw & 0xFF) }

// OpName renders the operation name, or "Unknown" if out of range.
func OpName(op Op) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "Unknown"
}

// Render renders raw as "Op|Modifier|Modifier|...".
func Render(raw uint32) string {
	s := OpName(OpOf(raw))
	for _, m := range orderedModifiers {
		if Modifier(raw)&m.bit != 0 {
			s += "|" + m.name
		}
	}
	return s
}
