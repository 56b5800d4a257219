package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	dev := Encode(8, 1)
	major, minor := Decode(dev)
	assert.Equal(t, uint32(8), major)
	assert.Equal(t, uint32(1), minor)
}

func TestDecodeMasksMinorTo20Bits(t *testing.T) {
	dev := Encode(1, 0xFFFFFFFF)
	_, minor := Decode(dev)
	assert.Equal(t, uint32(0xFFFFF), minor)
}

func TestString(t *testing.T) {
	assert.Equal(t, "8:1", String(8, 1))
}
