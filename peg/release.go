package peg

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/ethereum/go-ethereum/common"
)

// Releases move through an irreversible forward-only pipeline: a request
// enters the ReleaseRequestQueue, coin selection turns it into a built
// transaction in the ReleaseTransactionSet, and once confirmed the built
// transaction waits for custodian co-signatures in the SignatureQueue, keyed
// by the originating ledger transaction hash. The storage layer persists
// whatever the collections contain; it does not enforce the transitions.

// ReleaseRequestEntry is one approved release awaiting coin selection.
type ReleaseRequestEntry struct {
	Destination btcutil.Address
	Amount      btcutil.Amount
}

// ReleaseRequestQueue is the ordered sequence of releases awaiting coin
// selection. Order is first-in first-out and is part of the persisted form.
type ReleaseRequestQueue struct {
	entries []ReleaseRequestEntry
}

// NewReleaseRequestQueue returns an empty queue.
func NewReleaseRequestQueue() *ReleaseRequestQueue {
	return &ReleaseRequestQueue{}
}

// Add appends a release request to the back of the queue.
func (q *ReleaseRequestQueue) Add(destination btcutil.Address, amount btcutil.Amount) {
	q.entries = append(q.entries, ReleaseRequestEntry{Destination: destination, Amount: amount})
}

// Entries returns a copy of the queued requests in order.
func (q *ReleaseRequestQueue) Entries() []ReleaseRequestEntry {
	out := make([]ReleaseRequestEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of queued requests.
func (q *ReleaseRequestQueue) Len() int {
	return len(q.entries)
}

// Process walks the queue in order, removing every entry for which f returns
// true (meaning the entry was consumed by coin selection).
func (q *ReleaseRequestQueue) Process(f func(ReleaseRequestEntry) bool) {
	kept := q.entries[:0]
	for _, entry := range q.entries {
		if !f(entry) {
			kept = append(kept, entry)
		}
	}
	q.entries = kept
}

// ReleaseTxEntry is a built release transaction together with the ledger
// height it was created at, used to count confirmations.
type ReleaseTxEntry struct {
	Tx           *wire.MsgTx
	LedgerHeight uint64
}

// ReleaseTransactionSet holds built release transactions awaiting enough
// ledger confirmations, keyed by their transaction hash.
type ReleaseTransactionSet struct {
	entries map[chainhash.Hash]ReleaseTxEntry
}

// NewReleaseTransactionSet returns an empty set.
func NewReleaseTransactionSet() *ReleaseTransactionSet {
	return &ReleaseTransactionSet{entries: make(map[chainhash.Hash]ReleaseTxEntry)}
}

// Add inserts a built transaction created at the given ledger height.
// Re-adding the same transaction replaces its entry.
func (s *ReleaseTransactionSet) Add(tx *wire.MsgTx, ledgerHeight uint64) {
	s.entries[tx.TxHash()] = ReleaseTxEntry{Tx: tx, LedgerHeight: ledgerHeight}
}

// Contains reports whether a transaction with the given hash is in the set.
func (s *ReleaseTransactionSet) Contains(hash chainhash.Hash) bool {
	_, ok := s.entries[hash]
	return ok
}

// Len returns the number of transactions held.
func (s *ReleaseTransactionSet) Len() int {
	return len(s.entries)
}

// Entries returns the held transactions sorted by transaction hash.
func (s *ReleaseTransactionSet) Entries() []ReleaseTxEntry {
	hashes := s.sortedHashes()
	out := make([]ReleaseTxEntry, len(hashes))
	for i, h := range hashes {
		out[i] = s.entries[h]
	}
	return out
}

// SliceWithConfirmations removes and returns up to limit transactions that
// have at least minConfirmations ledger blocks on top of their creation
// height, in transaction-hash order. A zero limit means no limit.
func (s *ReleaseTransactionSet) SliceWithConfirmations(currentHeight, minConfirmations uint64, limit int) []ReleaseTxEntry {
	var out []ReleaseTxEntry
	for _, h := range s.sortedHashes() {
		if limit > 0 && len(out) >= limit {
			break
		}
		entry := s.entries[h]
		if entry.LedgerHeight+minConfirmations <= currentHeight {
			out = append(out, entry)
			delete(s.entries, h)
		}
	}
	return out
}

func (s *ReleaseTransactionSet) sortedHashes() []chainhash.Hash {
	hashes := make([]chainhash.Hash, 0, len(s.entries))
	for h := range s.entries {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes
}

// SignatureQueueEntry pairs a built release transaction with the ledger
// transaction hash that originated it.
type SignatureQueueEntry struct {
	LedgerTxHash common.Hash
	Tx           *wire.MsgTx
}

// SignatureQueue holds built release transactions awaiting custodian
// co-signatures, keyed by originating ledger transaction hash. Iteration is
// always in ascending key order so independent custodian nodes process
// signature rounds in the same sequence.
type SignatureQueue struct {
	txs map[common.Hash]*wire.MsgTx
}

// NewSignatureQueue returns an empty queue.
func NewSignatureQueue() *SignatureQueue {
	return &SignatureQueue{txs: make(map[common.Hash]*wire.MsgTx)}
}

// Put registers tx under the originating ledger transaction hash.
func (q *SignatureQueue) Put(ledgerTxHash common.Hash, tx *wire.MsgTx) {
	q.txs[ledgerTxHash] = tx
}

// Get returns the transaction registered under the given ledger hash.
func (q *SignatureQueue) Get(ledgerTxHash common.Hash) (*wire.MsgTx, bool) {
	tx, ok := q.txs[ledgerTxHash]
	return tx, ok
}

// Remove deletes the entry for the given ledger hash, reporting whether it
// existed. Called once a release is fully co-signed and broadcast.
func (q *SignatureQueue) Remove(ledgerTxHash common.Hash) bool {
	if _, ok := q.txs[ledgerTxHash]; !ok {
		return false
	}
	delete(q.txs, ledgerTxHash)
	return true
}

// Len returns the number of transactions awaiting signatures.
func (q *SignatureQueue) Len() int {
	return len(q.txs)
}

// Hashes returns the ledger hashes in ascending byte order.
func (q *SignatureQueue) Hashes() []common.Hash {
	hashes := make([]common.Hash, 0, len(q.txs))
	for h := range q.txs {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	return hashes
}

// Entries returns the queued transactions in ascending ledger-hash order.
func (q *SignatureQueue) Entries() []SignatureQueueEntry {
	hashes := q.Hashes()
	out := make([]SignatureQueueEntry, len(hashes))
	for i, h := range hashes {
		out[i] = SignatureQueueEntry{LedgerTxHash: h, Tx: q.txs[h]}
	}
	return out
}
