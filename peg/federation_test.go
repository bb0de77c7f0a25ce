package peg

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

var testCreatedAt = time.Unix(1_700_000_000, 0).UTC()

func TestNewFederationOrdersKeys(t *testing.T) {
	keys := [][]byte{testPubKey(t, 9), testPubKey(t, 1), testPubKey(t, 5)}

	fed, err := NewFederation(keys, testCreatedAt, 42, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	got := fed.PublicKeys()
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		require.True(t, bytes.Compare(got[i-1], got[i]) < 0, "keys not in canonical order")
	}

	// Same members in any input order produce the same federation.
	shuffled, err := NewFederation([][]byte{keys[2], keys[0], keys[1]}, testCreatedAt, 42, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.True(t, fed.Equal(shuffled))
	require.Equal(t, fed.Address().EncodeAddress(), shuffled.Address().EncodeAddress())
	require.Equal(t, fed.RedeemScript(), shuffled.RedeemScript())
}

func TestNewFederationRejectsBadInput(t *testing.T) {
	_, err := NewFederation(nil, testCreatedAt, 1, &chaincfg.RegressionNetParams)
	require.Error(t, err)

	_, err = NewFederation([][]byte{{0x02, 0x01}}, testCreatedAt, 1, &chaincfg.RegressionNetParams)
	require.Error(t, err)
}

func TestFederationThreshold(t *testing.T) {
	cases := []struct {
		members   int
		threshold int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{5, 3},
		{15, 8},
	}
	for _, tc := range cases {
		keys := make([][]byte, tc.members)
		for i := range keys {
			keys[i] = testPubKey(t, byte(i+1))
		}
		fed, err := NewFederation(keys, testCreatedAt, 1, &chaincfg.RegressionNetParams)
		require.NoError(t, err)
		require.Equal(t, tc.threshold, fed.Threshold(), "members=%d", tc.members)
	}
}

func TestPendingFederationAddAndComplete(t *testing.T) {
	pending, err := NewPendingFederation(nil)
	require.NoError(t, err)
	require.Equal(t, 0, pending.Size())

	_, err = pending.Complete(testCreatedAt, 10, &chaincfg.RegressionNetParams)
	require.Error(t, err, "completing an undersized pending federation must fail")

	require.NoError(t, pending.AddPublicKey(testPubKey(t, 3)))
	require.NoError(t, pending.AddPublicKey(testPubKey(t, 1)))
	require.Error(t, pending.AddPublicKey(testPubKey(t, 3)), "duplicate key must be rejected")
	require.Equal(t, 2, pending.Size())

	fed, err := pending.Complete(testCreatedAt, 10, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.Equal(t, 2, fed.NumMembers())
	require.Equal(t, uint64(10), fed.CreationHeight())
	require.Equal(t, pending.PublicKeys(), fed.PublicKeys())
}
