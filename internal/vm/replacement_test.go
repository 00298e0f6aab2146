package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplacementPolicyString(t *testing.T) {
	require.Equal(t, "fifo", PolicyFIFO.String())
	require.Equal(t, "clock", PolicyClock.String())
	require.Equal(t, "random", PolicyRandom.String())
}

func TestReplacementPolicyStringInvalid(t *testing.T) {
	require.Panics(t, func() { _ = ReplacementPolicy(99).String() })
}

func TestPickVictimFIFOCyclesThroughFrames(t *testing.T) {
	fsys := newTestFileSystem(t)
	writeProgram(t, fsys, "a", 1)
	writeProgram(t, fsys, "b", 1)

	fileA, err := fsys.Open("a")
	require.NoError(t, err)
	defer fsys.Close(fileA)
	fileB, err := fsys.Open("b")
	require.NoError(t, err)
	defer fsys.Close(fileB)

	core := NewCoreMap(2)
	machine := NewMachine(2, false)
	cfg := Config{CoreMap: core, Machine: machine, FileSystem: fsys, DemandLoading: true, Swap: true, Replacement: PolicyFIFO}

	spaceA, err := NewAddressSpace(fileA, 1, cfg)
	require.NoError(t, err)
	spaceB, err := NewAddressSpace(fileB, 2, cfg)
	require.NoError(t, err)

	spaceA.LoadPage(0)
	spaceB.LoadPage(0)
	require.Equal(t, 0, core.CountClear())

	// A third load must evict one of the two occupied frames in round-robin
	// order, never picking an already-free one (there is none) out of order.
	first := core.fifoNext
	spaceA.LoadPage(1)
	require.Equal(t, (first+1)%core.NumFrames(), core.fifoNext)
}
