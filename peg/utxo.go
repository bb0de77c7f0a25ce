// Package peg implements the persistence layer of the two-way peg bridge:
// the domain entities kept under the bridge's storage scope, their wire
// codecs, and the lazy-loading storage provider that maps them onto a
// byte-oriented key/value store.
package peg

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// UTXO is an unspent output on the external chain under custody of a
// federation.
type UTXO struct {
	Hash   chainhash.Hash
	Index  uint32
	Value  btcutil.Amount
	Height uint32
	Script []byte
}

// OutPoint returns the wire outpoint referencing this output.
func (u UTXO) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.Hash, Index: u.Index}
}

func (u UTXO) equal(o UTXO) bool {
	return u.Hash == o.Hash && u.Index == o.Index && u.Value == o.Value &&
		u.Height == o.Height && bytes.Equal(u.Script, o.Script)
}

// UTXOList is an ordered sequence of custody UTXOs. Order is preserved as
// given; it is part of the persisted form.
type UTXOList struct {
	utxos []UTXO
}

// NewUTXOList builds a list containing the given outputs in order.
func NewUTXOList(utxos ...UTXO) *UTXOList {
	list := &UTXOList{utxos: make([]UTXO, len(utxos))}
	copy(list.utxos, utxos)
	return list
}

// Add appends an output to the list.
func (l *UTXOList) Add(u UTXO) {
	l.utxos = append(l.utxos, u)
}

// RemoveOutPoint removes the output referenced by (hash, index) and reports
// whether it was present.
func (l *UTXOList) RemoveOutPoint(hash chainhash.Hash, index uint32) bool {
	for i, u := range l.utxos {
		if u.Hash == hash && u.Index == index {
			l.utxos = append(l.utxos[:i], l.utxos[i+1:]...)
			return true
		}
	}
	return false
}

// All returns a copy of the outputs in list order.
func (l *UTXOList) All() []UTXO {
	out := make([]UTXO, len(l.utxos))
	copy(out, l.utxos)
	return out
}

// Len returns the number of outputs held.
func (l *UTXOList) Len() int {
	return len(l.utxos)
}

// TotalValue sums the value of all held outputs.
func (l *UTXOList) TotalValue() btcutil.Amount {
	var total btcutil.Amount
	for _, u := range l.utxos {
		total += u.Value
	}
	return total
}

// Equal reports whether both lists hold the same outputs in the same order.
func (l *UTXOList) Equal(o *UTXOList) bool {
	if l.Len() != o.Len() {
		return false
	}
	for i := range l.utxos {
		if !l.utxos[i].equal(o.utxos[i]) {
			return false
		}
	}
	return true
}
