// Package device encodes/decodes the Linux block-device major:minor pair
// the way dev_t packs it, for rendering in I/O-completion rows.
package device

import "fmt"

// Encode packs major:minor into the kernel's dev_t-style encoding.
func Encode(major, minor uint32) uint64 {
	return (uint64(major) << 20) | uint64(minor&0xFFFFF)
}

// Decode unpacks a dev_t-style value back into major:minor.
func Decode(dev uint64) (major, minor uint32) {
	return uint32(dev >> 20), uint32(dev & 0xFFFFF)
}

// String renders dev as "major:minor", the CSV column's text form.
func String(major, minor uint32) string {
	return fmt.Sprintf("%d:%d", major, minor)
}
