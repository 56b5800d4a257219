package taskstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameKnownStates(t *testing.T) {
	cases := map[uint32]string{
		uint32(Run):     "RUN",
		uint32(Sleep):   "SLEEP",
		uint32(Disk):    "DISK",
		uint32(Waking):  "WAKING",
		uint32(NoLoad):  "NOLOAD",
		uint32(Idle):    "IDLE",
		uint32(NewTask): "NEW",
	}
	for raw, want := range cases {
		assert.Equal(t, want, Name(raw))
	}
}

func TestNameUnknownState(t *testing.T) {
	assert.Equal(t, "<unknown>", Name(0xFFF))
}

func TestNameIgnoresBitsAboveMask(t *testing.T) {
	assert.Equal(t, "DISK", Name(uint32(Disk)|0x1000))
}

func TestIsRunningUninterruptibleInterruptible(t *testing.T) {
	assert.True(t, IsRunning(uint32(Run)))
	assert.False(t, IsRunning(uint32(Disk)))

	assert.True(t, IsUninterruptible(uint32(Disk)))
	assert.False(t, IsUninterruptible(uint32(Sleep)))

	assert.True(t, IsInterruptible(uint32(Sleep)))
	assert.False(t, IsInterruptible(uint32(Disk)))
}

func TestIsNoLoadIncludesIdle(t *testing.T) {
	assert.True(t, IsNoLoad(uint32(NoLoad)))
	assert.True(t, IsNoLoad(uint32(Idle)))
	assert.False(t, IsNoLoad(uint32(Run)))
}

func TestIsKernelThread(t *testing.T) {
	assert.True(t, IsKernelThread(PFKthread))
	assert.False(t, IsKernelThread(0))
	assert.True(t, IsKernelThread(PFKthread|0x1))
}
