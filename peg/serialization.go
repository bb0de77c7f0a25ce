package peg

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Entity codecs. Every serialized form is RLP over a stored shadow struct
// with a fully deterministic field and element order: map-shaped entities are
// sorted by key bytes before encoding, and external-chain transactions use
// their canonical wire serialization. Deserializers accept nil/empty input as
// the absence sentinel; except where noted, absence decodes to the entity's
// empty value.

type storedUTXO struct {
	Hash   chainhash.Hash
	Index  uint32
	Value  uint64
	Height uint32
	Script []byte
}

// SerializeUTXOList encodes the outputs in list order.
func SerializeUTXOList(list *UTXOList) ([]byte, error) {
	stored := make([]storedUTXO, 0, list.Len())
	for _, u := range list.All() {
		stored = append(stored, storedUTXO{
			Hash:   u.Hash,
			Index:  u.Index,
			Value:  uint64(u.Value),
			Height: u.Height,
			Script: u.Script,
		})
	}
	return rlp.EncodeToBytes(stored)
}

// DeserializeUTXOList decodes a UTXO list; absent input yields an empty list.
func DeserializeUTXOList(data []byte) (*UTXOList, error) {
	list := NewUTXOList()
	if len(data) == 0 {
		return list, nil
	}
	var stored []storedUTXO
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding utxo list: %w", err)
	}
	for _, s := range stored {
		list.Add(UTXO{
			Hash:   s.Hash,
			Index:  s.Index,
			Value:  btcutil.Amount(s.Value),
			Height: s.Height,
			Script: s.Script,
		})
	}
	return list, nil
}

type storedHashHeight struct {
	Hash   chainhash.Hash
	Height uint64
}

// SerializeHashHeightMap encodes the processed-transaction index with entries
// in ascending hash order.
func SerializeHashHeightMap(m map[chainhash.Hash]uint64) ([]byte, error) {
	hashes := make([]chainhash.Hash, 0, len(m))
	for h := range m {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i][:], hashes[j][:]) < 0
	})
	stored := make([]storedHashHeight, len(hashes))
	for i, h := range hashes {
		stored[i] = storedHashHeight{Hash: h, Height: m[h]}
	}
	return rlp.EncodeToBytes(stored)
}

// DeserializeHashHeightMap decodes the processed-transaction index; absent
// input yields an empty map.
func DeserializeHashHeightMap(data []byte) (map[chainhash.Hash]uint64, error) {
	m := make(map[chainhash.Hash]uint64)
	if len(data) == 0 {
		return m, nil
	}
	var stored []storedHashHeight
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding processed tx hashes: %w", err)
	}
	for _, s := range stored {
		m[s.Hash] = s.Height
	}
	return m, nil
}

type storedReleaseRequest struct {
	DestinationHash []byte // pubkey hash160
	Amount          uint64
}

// SerializeReleaseRequestQueue encodes the queue in FIFO order. Destinations
// are persisted as their pubkey hash160, so only pay-to-pubkey-hash
// destinations are representable.
func SerializeReleaseRequestQueue(q *ReleaseRequestQueue) ([]byte, error) {
	stored := make([]storedReleaseRequest, 0, q.Len())
	for _, entry := range q.Entries() {
		stored = append(stored, storedReleaseRequest{
			DestinationHash: entry.Destination.ScriptAddress(),
			Amount:          uint64(entry.Amount),
		})
	}
	return rlp.EncodeToBytes(stored)
}

// DeserializeReleaseRequestQueue decodes the queue, reconstructing
// destination addresses on the given network; absent input yields an empty
// queue.
func DeserializeReleaseRequestQueue(data []byte, btcParams *chaincfg.Params) (*ReleaseRequestQueue, error) {
	q := NewReleaseRequestQueue()
	if len(data) == 0 {
		return q, nil
	}
	var stored []storedReleaseRequest
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding release request queue: %w", err)
	}
	for _, s := range stored {
		addr, err := btcutil.NewAddressPubKeyHash(s.DestinationHash, btcParams)
		if err != nil {
			return nil, fmt.Errorf("decoding release destination: %w", err)
		}
		q.Add(addr, btcutil.Amount(s.Amount))
	}
	return q, nil
}

type storedReleaseTx struct {
	Tx           []byte // canonical btc wire serialization
	LedgerHeight uint64
}

func serializeBtcTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeBtcTx(data []byte) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return tx, nil
}

// SerializeReleaseTransactionSet encodes the set with entries in ascending
// transaction-hash order.
func SerializeReleaseTransactionSet(s *ReleaseTransactionSet) ([]byte, error) {
	entries := s.Entries()
	stored := make([]storedReleaseTx, len(entries))
	for i, entry := range entries {
		txBytes, err := serializeBtcTx(entry.Tx)
		if err != nil {
			return nil, fmt.Errorf("encoding release tx: %w", err)
		}
		stored[i] = storedReleaseTx{Tx: txBytes, LedgerHeight: entry.LedgerHeight}
	}
	return rlp.EncodeToBytes(stored)
}

// DeserializeReleaseTransactionSet decodes the set; absent input yields an
// empty set.
func DeserializeReleaseTransactionSet(data []byte) (*ReleaseTransactionSet, error) {
	s := NewReleaseTransactionSet()
	if len(data) == 0 {
		return s, nil
	}
	var stored []storedReleaseTx
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding release tx set: %w", err)
	}
	for _, e := range stored {
		tx, err := deserializeBtcTx(e.Tx)
		if err != nil {
			return nil, fmt.Errorf("decoding release tx: %w", err)
		}
		s.Add(tx, e.LedgerHeight)
	}
	return s, nil
}

type storedSignatureEntry struct {
	LedgerTxHash common.Hash
	Tx           []byte
}

// SerializeSignatureQueue encodes the queue with entries in ascending
// ledger-hash order.
func SerializeSignatureQueue(q *SignatureQueue) ([]byte, error) {
	entries := q.Entries()
	stored := make([]storedSignatureEntry, len(entries))
	for i, entry := range entries {
		txBytes, err := serializeBtcTx(entry.Tx)
		if err != nil {
			return nil, fmt.Errorf("encoding signature-pending tx: %w", err)
		}
		stored[i] = storedSignatureEntry{LedgerTxHash: entry.LedgerTxHash, Tx: txBytes}
	}
	return rlp.EncodeToBytes(stored)
}

// DeserializeSignatureQueue decodes the queue; absent input yields an empty
// queue.
func DeserializeSignatureQueue(data []byte) (*SignatureQueue, error) {
	q := NewSignatureQueue()
	if len(data) == 0 {
		return q, nil
	}
	var stored []storedSignatureEntry
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding signature queue: %w", err)
	}
	for _, e := range stored {
		tx, err := deserializeBtcTx(e.Tx)
		if err != nil {
			return nil, fmt.Errorf("decoding signature-pending tx: %w", err)
		}
		q.Put(e.LedgerTxHash, tx)
	}
	return q, nil
}

type storedFederation struct {
	CreationTime   uint64 // unix seconds
	CreationHeight uint64
	PublicKeys     [][]byte
}

// SerializeFederation encodes a federation. A nil federation serializes to
// nil, the explicit absence marker.
func SerializeFederation(f *Federation) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	return rlp.EncodeToBytes(&storedFederation{
		CreationTime:   uint64(f.CreationTime().Unix()),
		CreationHeight: f.CreationHeight(),
		PublicKeys:     f.PublicKeys(),
	})
}

// DeserializeFederation decodes a federation, rebuilding its key material and
// custody address on the given network. Absent input decodes to nil.
func DeserializeFederation(data []byte, btcParams *chaincfg.Params) (*Federation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var stored storedFederation
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding federation: %w", err)
	}
	f, err := NewFederation(stored.PublicKeys, time.Unix(int64(stored.CreationTime), 0).UTC(), stored.CreationHeight, btcParams)
	if err != nil {
		return nil, fmt.Errorf("decoding federation: %w", err)
	}
	return f, nil
}

type storedPendingFederation struct {
	PublicKeys [][]byte
}

// SerializePendingFederation encodes a pending federation. A nil pending
// federation serializes to nil, the explicit absence marker.
func SerializePendingFederation(p *PendingFederation) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return rlp.EncodeToBytes(&storedPendingFederation{PublicKeys: p.PublicKeys()})
}

// DeserializePendingFederation decodes a pending federation. Absent input
// decodes to nil.
func DeserializePendingFederation(data []byte) (*PendingFederation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var stored storedPendingFederation
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding pending federation: %w", err)
	}
	p, err := NewPendingFederation(stored.PublicKeys)
	if err != nil {
		return nil, fmt.Errorf("decoding pending federation: %w", err)
	}
	return p, nil
}

type storedElectionEntry struct {
	Spec   storedCallSpec
	Voters []common.Address
}

// SerializeElection encodes the tally with calls in canonical key order. The
// authorizer is not part of the persisted form; it is re-supplied on load.
func SerializeElection(e *CallElection) ([]byte, error) {
	stored := make([]storedElectionEntry, 0, e.NumSpecs())
	for _, k := range e.sortedKeys() {
		spec := e.specs[k]
		stored = append(stored, storedElectionEntry{
			Spec:   storedCallSpec{Function: spec.Function, Args: spec.Args},
			Voters: e.votes[k],
		})
	}
	return rlp.EncodeToBytes(stored)
}

// DeserializeElection decodes a tally and binds it to the supplied
// authorizer. Absent input decodes to a fresh empty tally bound to that
// authorizer.
func DeserializeElection(data []byte, authorizer *AddressAuthorizer) (*CallElection, error) {
	e := NewCallElection(authorizer)
	if len(data) == 0 {
		return e, nil
	}
	var stored []storedElectionEntry
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding federation election: %w", err)
	}
	for _, entry := range stored {
		spec := CallSpec{Function: entry.Spec.Function, Args: entry.Spec.Args}
		k := spec.key()
		e.specs[k] = spec
		voters := make([]common.Address, len(entry.Voters))
		copy(voters, entry.Voters)
		e.votes[k] = voters
	}
	return e, nil
}

type storedWhitelistEntry struct {
	AddressHash []byte // pubkey hash160
	MaxCap      uint64
}

// SerializeLockWhitelist encodes the whitelist with entries in ascending
// encoded-address order. Addresses are persisted as their pubkey hash160.
func SerializeLockWhitelist(w *LockWhitelist) ([]byte, error) {
	entries := w.Sorted()
	stored := make([]storedWhitelistEntry, len(entries))
	for i, entry := range entries {
		stored[i] = storedWhitelistEntry{
			AddressHash: entry.Address.ScriptAddress(),
			MaxCap:      uint64(entry.MaxTransferValue),
		}
	}
	return rlp.EncodeToBytes(stored)
}

// DeserializeLockWhitelist decodes the whitelist, reconstructing addresses on
// the given network. Absent input decodes to an empty whitelist, never nil.
func DeserializeLockWhitelist(data []byte, btcParams *chaincfg.Params) (*LockWhitelist, error) {
	w := NewLockWhitelist()
	if len(data) == 0 {
		return w, nil
	}
	var stored []storedWhitelistEntry
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding lock whitelist: %w", err)
	}
	for _, entry := range stored {
		addr, err := btcutil.NewAddressPubKeyHash(entry.AddressHash, btcParams)
		if err != nil {
			return nil, fmt.Errorf("decoding whitelisted address: %w", err)
		}
		w.Put(addr, btcutil.Amount(entry.MaxCap))
	}
	return w, nil
}
