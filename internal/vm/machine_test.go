package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMachineReadWriteMem(t *testing.T) {
	m := NewMachine(2, false)
	m.PageTable = make([]TranslationEntry, 2)
	m.PageTable[0] = TranslationEntry{VirtualPage: 0, PhysicalPage: 1, Valid: true}
	m.PageTableSize = 2

	require.NoError(t, m.WriteMem(5, 42))
	v, err := m.ReadMem(5)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, byte(42), m.MainMemory[1*PageSize+5])

	require.True(t, m.PageTable[0].Use)
	require.True(t, m.PageTable[0].Dirty)
}

func TestMachinePageFault(t *testing.T) {
	m := NewMachine(2, false)
	m.PageTable = make([]TranslationEntry, 2)
	m.PageTableSize = 2

	_, err := m.ReadMem(0)
	require.ErrorIs(t, err, ErrPageFault)
}

func TestMachineAddressError(t *testing.T) {
	m := NewMachine(1, false)
	m.PageTable = make([]TranslationEntry, 1)
	m.PageTableSize = 1

	_, err := m.ReadMem(PageSize * 5)
	require.ErrorIs(t, err, ErrAddressError)
}

func TestMachineReadOnlyViolation(t *testing.T) {
	m := NewMachine(1, false)
	m.PageTable = make([]TranslationEntry, 1)
	m.PageTable[0] = TranslationEntry{VirtualPage: 0, PhysicalPage: 0, Valid: true, ReadOnly: true}
	m.PageTableSize = 1

	err := m.WriteMem(0, 1)
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestMachineTLBTranslation(t *testing.T) {
	m := NewMachine(2, true)
	m.TLB[0] = TranslationEntry{VirtualPage: 3, PhysicalPage: 1, Valid: true}

	require.NoError(t, m.WriteMem(3*PageSize+4, 7))
	v, err := m.ReadMem(3*PageSize + 4)
	require.NoError(t, err)
	require.Equal(t, 7, v)

	_, err = m.ReadMem(4 * PageSize)
	require.ErrorIs(t, err, ErrPageFault)
}

func TestMachinePickTLBVictimPrefersInvalidSlot(t *testing.T) {
	m := NewMachine(4, true)
	m.TLB[0] = TranslationEntry{VirtualPage: 0, Valid: true}
	m.TLB[1] = TranslationEntry{VirtualPage: unallocated}
	m.TLB[2] = TranslationEntry{VirtualPage: 2, Valid: true}

	require.Equal(t, 1, m.pickTLBVictim())
}

func TestMachinePickTLBVictimRoundRobinsWhenFull(t *testing.T) {
	m := NewMachine(4, true)
	for i := range m.TLB {
		m.TLB[i] = TranslationEntry{VirtualPage: i, Valid: true}
	}

	first := m.pickTLBVictim()
	second := m.pickTLBVictim()
	require.Equal(t, (first+1)%len(m.TLB), second)
}

func TestMachineInvalidateTLBForFrame(t *testing.T) {
	m := NewMachine(2, true)
	m.TLB[0] = TranslationEntry{VirtualPage: 5, PhysicalPage: 1, Valid: true, Use: true, Dirty: true}

	use, dirty, found := m.invalidateTLBForFrame(1)
	require.True(t, found)
	require.True(t, use)
	require.True(t, dirty)
	require.False(t, m.TLB[0].Valid)

	_, _, found = m.invalidateTLBForFrame(1)
	require.False(t, found)
}
