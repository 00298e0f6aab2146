package trap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteArgsThenSaveArgsRoundTrip(t *testing.T) {
	m := newIdentityMachine(t, 8)

	args := []string{"prog", "one", "two", "three"}
	sp, argvAddr, err := WriteArgs(m, args, 900)
	require.NoError(t, err)
	require.NotZero(t, sp)

	got, err := SaveArgs(m, argvAddr)
	require.NoError(t, err)
	require.Equal(t, args, got)
}

func TestSaveArgsNilWhenArgvIsZero(t *testing.T) {
	m := newIdentityMachine(t, 4)

	args, err := SaveArgs(m, 0)
	require.NoError(t, err)
	require.Nil(t, args)
}

func TestSaveArgsStopsAtNullPointer(t *testing.T) {
	m := newIdentityMachine(t, 4)

	require.NoError(t, WriteStringToUser(m, 64, "only"))
	require.NoError(t, WriteBufferToUser(m, 8, intToBytes(64)))
	require.NoError(t, WriteBufferToUser(m, 12, intToBytes(0)))

	args, err := SaveArgs(m, 8)
	require.NoError(t, err)
	require.Equal(t, []string{"only"}, args)
}
