package peg

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"pegbridge/params"
	"pegbridge/storage"
)

// Slot keys under the bridge's storage scope. The literal strings are part of
// the persisted format and must never change: any stored state written by
// another implementation is addressed by exactly these identifiers.
var (
	keyActiveFederationUTXOs   = []byte("activeFederationBtcUTXOs")
	keyRetiringFederationUTXOs = []byte("retiringFederationBtcUTXOs")
	keyBtcTxHashesProcessed    = []byte("btcTxHashesAP")
	keyReleaseRequestQueue     = []byte("releaseRequestQueue")
	keyReleaseTransactionSet   = []byte("releaseTransactionSet")
	keyTxsWaitingForSignatures = []byte("rskTxsWaitingFS")
	keyActiveFederation        = []byte("bridgeActiveFederation")
	keyRetiringFederation      = []byte("bridgeRetiringFederation")
	keyPendingFederation       = []byte("bridgePendingFederation")
	keyFederationElection      = []byte("bridgeFederationElection")
	keyLockWhitelist           = []byte("bridgeLockWhitelist")

	// Reserved for dynamic fee support; nothing reads or writes it yet.
	keyFeePerKB = []byte("feePerKb")
)

var (
	// ErrStore indicates the underlying key/value store failed on a read
	// or write. Unrecoverable at this layer.
	ErrStore = errors.New("peg: bridge store access failed")
	// ErrCodec indicates stored bytes could not be decoded into the
	// expected entity, or an entity could not be encoded. Unrecoverable
	// at this layer.
	ErrCodec = errors.New("peg: bridge state codec failure")
)

// StorageProvider is an object-oriented facade over the bridge's slice of the
// ledger store. It lazily loads each entity on first access (at most one
// store read per entity per provider lifetime, absence included), hands out
// the same in-memory instance on every subsequent read, and writes all dirty
// entities back in one fixed-order Commit.
//
// A provider is created per execution context (one ledger-state transition)
// and discarded after its single Commit. It performs no internal locking;
// exclusivity over the scope for the provider's lifetime is the caller's
// responsibility, and two live providers over the same scope are not
// coherent.
type StorageProvider struct {
	store        storage.Store
	scope        []byte
	bridgeParams *params.BridgeParams

	processedTxHashes map[chainhash.Hash]uint64
	releaseQueue      *ReleaseRequestQueue
	releaseSet        *ReleaseTransactionSet
	signatureQueue    *SignatureQueue

	activeUTXOs   *UTXOList
	retiringUTXOs *UTXOList

	activeFederation       *Federation
	activeFederationLoaded bool

	// The retiring and pending federation slots carry an explicit touched
	// flag, set only by their setters, because "this slot was cleared" is
	// itself persisted as an explicit absence. The active federation has
	// no such flag: it is replace-only and a nil value is never written.
	retiringFederation        *Federation
	retiringFederationLoaded  bool
	retiringFederationTouched bool

	pendingFederation        *PendingFederation
	pendingFederationLoaded  bool
	pendingFederationTouched bool

	federationElection *CallElection
	lockWhitelist      *LockWhitelist
}

// NewStorageProvider creates a provider over the given store, owner scope,
// and bridge parameters.
func NewStorageProvider(store storage.Store, scope []byte, bridgeParams *params.BridgeParams) *StorageProvider {
	return &StorageProvider{
		store:        store,
		scope:        append([]byte(nil), scope...),
		bridgeParams: bridgeParams,
	}
}

func (p *StorageProvider) read(key []byte) ([]byte, error) {
	data, err := p.store.Get(p.scope, key)
	if err != nil {
		return nil, fmt.Errorf("%w: reading slot %s: %v", ErrStore, key, err)
	}
	return data, nil
}

func (p *StorageProvider) write(key, value []byte) error {
	if err := p.store.Put(p.scope, key, value); err != nil {
		return fmt.Errorf("%w: writing slot %s: %v", ErrStore, key, err)
	}
	return nil
}

func codecFailure(key []byte, err error) error {
	return fmt.Errorf("%w: slot %s: %v", ErrCodec, key, err)
}

// GetBtcTxHashesAlreadyProcessed returns the external-tx-hash to
// ledger-height index guarding against double credits. The returned map is
// the live cached instance; mutations persist on Commit.
func (p *StorageProvider) GetBtcTxHashesAlreadyProcessed() (map[chainhash.Hash]uint64, error) {
	if p.processedTxHashes != nil {
		return p.processedTxHashes, nil
	}
	data, err := p.read(keyBtcTxHashesProcessed)
	if err != nil {
		return nil, err
	}
	m, err := DeserializeHashHeightMap(data)
	if err != nil {
		return nil, codecFailure(keyBtcTxHashesProcessed, err)
	}
	p.processedTxHashes = m
	return m, nil
}

// GetReleaseRequestQueue returns the queue of releases awaiting coin
// selection.
func (p *StorageProvider) GetReleaseRequestQueue() (*ReleaseRequestQueue, error) {
	if p.releaseQueue != nil {
		return p.releaseQueue, nil
	}
	data, err := p.read(keyReleaseRequestQueue)
	if err != nil {
		return nil, err
	}
	q, err := DeserializeReleaseRequestQueue(data, p.bridgeParams.BtcParams)
	if err != nil {
		return nil, codecFailure(keyReleaseRequestQueue, err)
	}
	p.releaseQueue = q
	return q, nil
}

// GetReleaseTransactionSet returns the built release transactions awaiting
// ledger confirmations.
func (p *StorageProvider) GetReleaseTransactionSet() (*ReleaseTransactionSet, error) {
	if p.releaseSet != nil {
		return p.releaseSet, nil
	}
	data, err := p.read(keyReleaseTransactionSet)
	if err != nil {
		return nil, err
	}
	s, err := DeserializeReleaseTransactionSet(data)
	if err != nil {
		return nil, codecFailure(keyReleaseTransactionSet, err)
	}
	p.releaseSet = s
	return s, nil
}

// GetTxsWaitingForSignatures returns the release transactions awaiting
// custodian co-signatures, keyed by originating ledger transaction hash.
func (p *StorageProvider) GetTxsWaitingForSignatures() (*SignatureQueue, error) {
	if p.signatureQueue != nil {
		return p.signatureQueue, nil
	}
	data, err := p.read(keyTxsWaitingForSignatures)
	if err != nil {
		return nil, err
	}
	q, err := DeserializeSignatureQueue(data)
	if err != nil {
		return nil, codecFailure(keyTxsWaitingForSignatures, err)
	}
	p.signatureQueue = q
	return q, nil
}

// GetActiveFederationBtcUTXOs returns the outputs controlled by the active
// federation.
func (p *StorageProvider) GetActiveFederationBtcUTXOs() (*UTXOList, error) {
	if p.activeUTXOs != nil {
		return p.activeUTXOs, nil
	}
	data, err := p.read(keyActiveFederationUTXOs)
	if err != nil {
		return nil, err
	}
	list, err := DeserializeUTXOList(data)
	if err != nil {
		return nil, codecFailure(keyActiveFederationUTXOs, err)
	}
	p.activeUTXOs = list
	return list, nil
}

// GetRetiringFederationBtcUTXOs returns the outputs still controlled by the
// outgoing federation during handover.
func (p *StorageProvider) GetRetiringFederationBtcUTXOs() (*UTXOList, error) {
	if p.retiringUTXOs != nil {
		return p.retiringUTXOs, nil
	}
	data, err := p.read(keyRetiringFederationUTXOs)
	if err != nil {
		return nil, err
	}
	list, err := DeserializeUTXOList(data)
	if err != nil {
		return nil, codecFailure(keyRetiringFederationUTXOs, err)
	}
	p.retiringUTXOs = list
	return list, nil
}

// GetActiveFederation returns the current custodian set, or nil when none is
// stored.
func (p *StorageProvider) GetActiveFederation() (*Federation, error) {
	if p.activeFederationLoaded {
		return p.activeFederation, nil
	}
	data, err := p.read(keyActiveFederation)
	if err != nil {
		return nil, err
	}
	f, err := DeserializeFederation(data, p.bridgeParams.BtcParams)
	if err != nil {
		return nil, codecFailure(keyActiveFederation, err)
	}
	p.activeFederation = f
	p.activeFederationLoaded = true
	return f, nil
}

// SetActiveFederation replaces the active federation in memory. The active
// federation slot is replace-only: a non-nil value is written on Commit, a
// nil value is never re-serialized as absence.
func (p *StorageProvider) SetActiveFederation(f *Federation) {
	p.activeFederation = f
	p.activeFederationLoaded = true
}

// GetRetiringFederation returns the outgoing custodian set, or nil when none
// is stored. Loading absence here does not mark the slot for writing.
func (p *StorageProvider) GetRetiringFederation() (*Federation, error) {
	if p.retiringFederationLoaded {
		return p.retiringFederation, nil
	}
	data, err := p.read(keyRetiringFederation)
	if err != nil {
		return nil, err
	}
	f, err := DeserializeFederation(data, p.bridgeParams.BtcParams)
	if err != nil {
		return nil, codecFailure(keyRetiringFederation, err)
	}
	p.retiringFederation = f
	p.retiringFederationLoaded = true
	return f, nil
}

// SetRetiringFederation sets the outgoing custodian set and marks the slot
// for writing. A nil federation persists an explicit absence marker,
// recording that the slot was cleared.
func (p *StorageProvider) SetRetiringFederation(f *Federation) {
	p.retiringFederation = f
	p.retiringFederationLoaded = true
	p.retiringFederationTouched = true
}

// GetPendingFederation returns the federation in formation, or nil when none
// is stored. Loading absence here does not mark the slot for writing.
func (p *StorageProvider) GetPendingFederation() (*PendingFederation, error) {
	if p.pendingFederationLoaded {
		return p.pendingFederation, nil
	}
	data, err := p.read(keyPendingFederation)
	if err != nil {
		return nil, err
	}
	f, err := DeserializePendingFederation(data)
	if err != nil {
		return nil, codecFailure(keyPendingFederation, err)
	}
	p.pendingFederation = f
	p.pendingFederationLoaded = true
	return f, nil
}

// SetPendingFederation sets the federation in formation and marks the slot
// for writing. A nil value persists an explicit absence marker.
func (p *StorageProvider) SetPendingFederation(f *PendingFederation) {
	p.pendingFederation = f
	p.pendingFederationLoaded = true
	p.pendingFederationTouched = true
}

// GetFederationElection returns the vote tally over federation-change calls.
// A never-stored election loads as an empty tally bound to the supplied
// authorizer.
func (p *StorageProvider) GetFederationElection(authorizer *AddressAuthorizer) (*CallElection, error) {
	if p.federationElection != nil {
		return p.federationElection, nil
	}
	data, err := p.read(keyFederationElection)
	if err != nil {
		return nil, err
	}
	e, err := DeserializeElection(data, authorizer)
	if err != nil {
		return nil, codecFailure(keyFederationElection, err)
	}
	p.federationElection = e
	return e, nil
}

// GetLockWhitelist returns the deposit whitelist. A never-stored whitelist
// loads as an empty one, never nil.
func (p *StorageProvider) GetLockWhitelist() (*LockWhitelist, error) {
	if p.lockWhitelist != nil {
		return p.lockWhitelist, nil
	}
	data, err := p.read(keyLockWhitelist)
	if err != nil {
		return nil, err
	}
	w, err := DeserializeLockWhitelist(data, p.bridgeParams.BtcParams)
	if err != nil {
		return nil, codecFailure(keyLockWhitelist, err)
	}
	p.lockWhitelist = w
	return w, nil
}

// Commit writes every dirty entity back to the store in one fixed sequence.
// The sequence is part of the bridge's observable behaviour: auditors and
// light clients replaying writes must see identical (slot, value) sequences
// from every implementation. Entities never read or set are skipped. Any
// store or codec failure aborts the commit immediately; the commit is atomic
// per entity only, never across entities.
func (p *StorageProvider) Commit() error {
	if err := p.saveBtcTxHashesAlreadyProcessed(); err != nil {
		return err
	}
	if err := p.saveReleaseRequestQueue(); err != nil {
		return err
	}
	if err := p.saveReleaseTransactionSet(); err != nil {
		return err
	}
	if err := p.saveTxsWaitingForSignatures(); err != nil {
		return err
	}
	if err := p.saveActiveFederation(); err != nil {
		return err
	}
	if err := p.saveActiveFederationBtcUTXOs(); err != nil {
		return err
	}
	if err := p.saveRetiringFederation(); err != nil {
		return err
	}
	if err := p.saveRetiringFederationBtcUTXOs(); err != nil {
		return err
	}
	if err := p.savePendingFederation(); err != nil {
		return err
	}
	if err := p.saveFederationElection(); err != nil {
		return err
	}
	return p.saveLockWhitelist()
}

func (p *StorageProvider) saveBtcTxHashesAlreadyProcessed() error {
	if p.processedTxHashes == nil {
		return nil
	}
	data, err := SerializeHashHeightMap(p.processedTxHashes)
	if err != nil {
		return codecFailure(keyBtcTxHashesProcessed, err)
	}
	return p.write(keyBtcTxHashesProcessed, data)
}

func (p *StorageProvider) saveReleaseRequestQueue() error {
	if p.releaseQueue == nil {
		return nil
	}
	data, err := SerializeReleaseRequestQueue(p.releaseQueue)
	if err != nil {
		return codecFailure(keyReleaseRequestQueue, err)
	}
	return p.write(keyReleaseRequestQueue, data)
}

func (p *StorageProvider) saveReleaseTransactionSet() error {
	if p.releaseSet == nil {
		return nil
	}
	data, err := SerializeReleaseTransactionSet(p.releaseSet)
	if err != nil {
		return codecFailure(keyReleaseTransactionSet, err)
	}
	return p.write(keyReleaseTransactionSet, data)
}

func (p *StorageProvider) saveTxsWaitingForSignatures() error {
	if p.signatureQueue == nil {
		return nil
	}
	data, err := SerializeSignatureQueue(p.signatureQueue)
	if err != nil {
		return codecFailure(keyTxsWaitingForSignatures, err)
	}
	return p.write(keyTxsWaitingForSignatures, data)
}

// saveActiveFederation writes the active federation only when a non-nil value
// is in memory. A nil value, whether loaded as absence or never loaded, is
// skipped rather than re-serialized: this slot is never explicitly cleared.
func (p *StorageProvider) saveActiveFederation() error {
	if p.activeFederation == nil {
		return nil
	}
	data, err := SerializeFederation(p.activeFederation)
	if err != nil {
		return codecFailure(keyActiveFederation, err)
	}
	return p.write(keyActiveFederation, data)
}

func (p *StorageProvider) saveActiveFederationBtcUTXOs() error {
	if p.activeUTXOs == nil {
		return nil
	}
	data, err := SerializeUTXOList(p.activeUTXOs)
	if err != nil {
		return codecFailure(keyActiveFederationUTXOs, err)
	}
	return p.write(keyActiveFederationUTXOs, data)
}

// saveRetiringFederation writes the retiring federation only when its setter
// ran. A nil value then writes an explicit absence marker.
func (p *StorageProvider) saveRetiringFederation() error {
	if !p.retiringFederationTouched {
		return nil
	}
	data, err := SerializeFederation(p.retiringFederation)
	if err != nil {
		return codecFailure(keyRetiringFederation, err)
	}
	return p.write(keyRetiringFederation, data)
}

func (p *StorageProvider) saveRetiringFederationBtcUTXOs() error {
	if p.retiringUTXOs == nil {
		return nil
	}
	data, err := SerializeUTXOList(p.retiringUTXOs)
	if err != nil {
		return codecFailure(keyRetiringFederationUTXOs, err)
	}
	return p.write(keyRetiringFederationUTXOs, data)
}

// savePendingFederation writes the pending federation only when its setter
// ran. A nil value then writes an explicit absence marker.
func (p *StorageProvider) savePendingFederation() error {
	if !p.pendingFederationTouched {
		return nil
	}
	data, err := SerializePendingFederation(p.pendingFederation)
	if err != nil {
		return codecFailure(keyPendingFederation, err)
	}
	return p.write(keyPendingFederation, data)
}

func (p *StorageProvider) saveFederationElection() error {
	if p.federationElection == nil {
		return nil
	}
	data, err := SerializeElection(p.federationElection)
	if err != nil {
		return codecFailure(keyFederationElection, err)
	}
	return p.write(keyFederationElection, data)
}

func (p *StorageProvider) saveLockWhitelist() error {
	if p.lockWhitelist == nil {
		return nil
	}
	data, err := SerializeLockWhitelist(p.lockWhitelist)
	if err != nil {
		return codecFailure(keyLockWhitelist, err)
	}
	return p.write(keyLockWhitelist, data)
}
