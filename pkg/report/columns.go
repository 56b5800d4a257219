package report

import "fmt"

// ColumnMode selects which wide-header columns a sample row renders.
type ColumnMode struct {
	header []string
}

// Wide selects every sample column.
func Wide() ColumnMode { return ColumnMode{header: wideHeader} }

// Narrow selects the commonly-useful subset.
func Narrow() ColumnMode { return ColumnMode{header: narrowHeader} }

// Custom selects exactly the named columns, in the given order. An
// unknown column name is an error, matching a CLI flag typo being
// rejected rather than silently dropped.
func Custom(names []string) (ColumnMode, error) {
	known := make(map[string]bool, len(wideHeader))
	for _, h := range wideHeader {
		known[h] = true
	}
	for _, n := range names {
		if !known[n] {
			return ColumnMode{}, fmt.Errorf("report: unknown column %q", n)
		}
	}
	cp := append([]string(nil), names...)
	return ColumnMode{header: cp}, nil
}
