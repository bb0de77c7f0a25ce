package peg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWhitelistContainsAndRemove(t *testing.T) {
	wl := NewLockWhitelist()
	addr := testP2PKHAddress(t, 1)
	other := testP2PKHAddress(t, 2)

	require.False(t, wl.Contains(addr))
	wl.Put(addr, 0)
	require.True(t, wl.Contains(addr))
	require.False(t, wl.Contains(other))
	require.Equal(t, 1, wl.Len())

	require.True(t, wl.Remove(addr))
	require.False(t, wl.Remove(addr))
	require.Equal(t, 0, wl.Len())
}

func TestWhitelistCanLock(t *testing.T) {
	wl := NewLockWhitelist()
	capped := testP2PKHAddress(t, 1)
	uncapped := testP2PKHAddress(t, 2)
	wl.Put(capped, 10_000)
	wl.Put(uncapped, 0)

	require.True(t, wl.CanLock(capped, 10_000))
	require.False(t, wl.CanLock(capped, 10_001))
	require.True(t, wl.CanLock(uncapped, 1_000_000_000))
	require.False(t, wl.CanLock(testP2PKHAddress(t, 3), 1))
}

func TestWhitelistSorted(t *testing.T) {
	wl := NewLockWhitelist()
	for _, seed := range []byte{5, 1, 3} {
		wl.Put(testP2PKHAddress(t, seed), 0)
	}
	sorted := wl.Sorted()
	require.Len(t, sorted, 3)
	for i := 1; i < len(sorted); i++ {
		require.Less(t, sorted[i-1].Address.EncodeAddress(), sorted[i].Address.EncodeAddress())
	}
}
