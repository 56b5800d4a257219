// Package symbolize defines the seam for stack-trace symbol resolution,
// an external, pluggable collaborator kept out of this module's scope.
package symbolize

// Resolver maps a raw address to a symbol name. The zero value (nil
// Resolver) means "no resolution available"; callers render hex
// addresses in that case.
type Resolver interface {
	Resolve(addr uint64) (symbol string, ok bool)
}

// NoOp is a Resolver that never resolves anything, the default when no
// real resolver is wired in.
type NoOp struct{}

func (NoOp) Resolve(uint64) (string, bool) { return "", false }
