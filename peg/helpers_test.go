package peg

import (
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/ethereum/go-ethereum/common"
)

// testPubKey derives a deterministic compressed secp256k1 public key from a
// small seed.
func testPubKey(t *testing.T, seed byte) []byte {
	t.Helper()
	priv := make([]byte, 32)
	priv[31] = seed
	if seed == 0 {
		priv[31] = 1
	}
	_, pub := btcec.PrivKeyFromBytes(btcec.S256(), priv)
	return pub.SerializeCompressed()
}

// testBtcHash returns a chainhash whose first byte is seed.
func testBtcHash(seed byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = seed
	return h
}

// testLedgerHash returns a ledger tx hash whose first byte is seed.
func testLedgerHash(seed byte) common.Hash {
	var h common.Hash
	h[0] = seed
	return h
}

// testP2PKHAddress builds a regtest pay-to-pubkey-hash address from a seeded
// hash160.
func testP2PKHAddress(t *testing.T, seed byte) btcutil.Address {
	t.Helper()
	hash := make([]byte, 20)
	hash[0] = seed
	addr, err := btcutil.NewAddressPubKeyHash(hash, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("building test address: %v", err)
	}
	return addr
}

// testBtcTx builds a minimal release transaction paying amount to a seeded
// script.
func testBtcTx(seed byte, amount int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	prev := testBtcHash(seed)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(amount, []byte{0x76, 0xa9, 0x14, seed}))
	return tx
}

func testVoter(seed byte) common.Address {
	var a common.Address
	a[19] = seed
	return a
}
