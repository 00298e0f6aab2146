package trap

import (
	"testing"

	"github.com/BMarelli/nachos/internal/vm"
)

// newIdentityMachine returns a machine with numPages frames, translating
// straight through a linear page table (no TLB) with every page valid
// and identity-mapped, so transfer/arg tests can read and write user
// memory without first wiring up demand loading.
func newIdentityMachine(t *testing.T, numPages int) *vm.Machine {
	t.Helper()
	m := vm.NewMachine(numPages, false)

	table := make([]vm.TranslationEntry, numPages)
	for i := range table {
		table[i] = vm.TranslationEntry{VirtualPage: i, PhysicalPage: i, Valid: true}
	}
	m.PageTable = table
	m.PageTableSize = numPages
	return m
}
