package peg

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcutil"
	"github.com/stretchr/testify/require"

	"pegbridge/params"
	"pegbridge/storage"
)

// countingStore wraps a MemStore, counting reads per slot and journaling
// writes in order.
type countingStore struct {
	mem    *storage.MemStore
	reads  map[string]int
	writes []writeOp
}

type writeOp struct {
	key   string
	value []byte
}

func newCountingStore() *countingStore {
	return &countingStore{mem: storage.NewMemStore(), reads: make(map[string]int)}
}

func (s *countingStore) Get(scope, key []byte) ([]byte, error) {
	s.reads[string(key)]++
	return s.mem.Get(scope, key)
}

func (s *countingStore) Put(scope, key, value []byte) error {
	var copied []byte
	if value != nil {
		copied = append([]byte(nil), value...)
	}
	s.writes = append(s.writes, writeOp{key: string(key), value: copied})
	return s.mem.Put(scope, key, value)
}

func (s *countingStore) Close() error {
	return s.mem.Close()
}

// failingStore fails every access.
type failingStore struct{}

var errBroken = errors.New("disk on fire")

func (failingStore) Get(scope, key []byte) ([]byte, error) { return nil, errBroken }
func (failingStore) Put(scope, key, value []byte) error    { return errBroken }
func (failingStore) Close() error                          { return nil }

func testBridgeParams(t *testing.T) *params.BridgeParams {
	t.Helper()
	prms, err := params.ForNetwork("regtest")
	if err != nil {
		t.Fatalf("resolving regtest params: %v", err)
	}
	return prms
}

func newTestProvider(t *testing.T, store storage.Store) *StorageProvider {
	t.Helper()
	prms := testBridgeParams(t)
	return NewStorageProvider(store, prms.Scope(), prms)
}

func TestProviderLoadOnce(t *testing.T) {
	store := newCountingStore()
	provider := newTestProvider(t, store)

	first, err := provider.GetReleaseRequestQueue()
	require.NoError(t, err)
	second, err := provider.GetReleaseRequestQueue()
	require.NoError(t, err)
	require.Same(t, first, second, "repeated reads must return the cached instance")
	require.Equal(t, 1, store.reads["releaseRequestQueue"])

	// Load-once holds for federations even when the stored value is
	// absent.
	fed, err := provider.GetActiveFederation()
	require.NoError(t, err)
	require.Nil(t, fed)
	fed, err = provider.GetActiveFederation()
	require.NoError(t, err)
	require.Nil(t, fed)
	require.Equal(t, 1, store.reads["bridgeActiveFederation"])
}

func TestProviderCommitUntouchedWritesNothing(t *testing.T) {
	store := newCountingStore()
	provider := newTestProvider(t, store)

	require.NoError(t, provider.Commit())
	require.Empty(t, store.writes)
}

func TestProviderReadEntityIsWrittenBack(t *testing.T) {
	store := newCountingStore()
	provider := newTestProvider(t, store)

	processed, err := provider.GetBtcTxHashesAlreadyProcessed()
	require.NoError(t, err)
	processed[testBtcHash(1)] = 100

	require.NoError(t, provider.Commit())
	require.Len(t, store.writes, 1)
	require.Equal(t, "btcTxHashesAP", store.writes[0].key)

	fresh := newTestProvider(t, store)
	reloaded, err := fresh.GetBtcTxHashesAlreadyProcessed()
	require.NoError(t, err)
	require.Equal(t, uint64(100), reloaded[testBtcHash(1)])
}

func TestProviderExplicitAbsence(t *testing.T) {
	store := newCountingStore()
	prms := testBridgeParams(t)

	// Store a retiring federation, then clear it from a later provider.
	setup := NewStorageProvider(store, prms.Scope(), prms)
	fed, err := NewFederation([][]byte{testPubKey(t, 1), testPubKey(t, 2)}, testCreatedAt, 5, prms.BtcParams)
	require.NoError(t, err)
	setup.SetRetiringFederation(fed)
	require.NoError(t, setup.Commit())

	clearing := NewStorageProvider(store, prms.Scope(), prms)
	clearing.SetRetiringFederation(nil)
	require.NoError(t, clearing.Commit())

	last := store.writes[len(store.writes)-1]
	require.Equal(t, "bridgeRetiringFederation", last.key)
	require.Nil(t, last.value, "clearing must write an explicit absence marker")
	require.True(t, store.mem.Written(prms.Scope(), []byte("bridgeRetiringFederation")))

	fresh := NewStorageProvider(store, prms.Scope(), prms)
	got, err := fresh.GetRetiringFederation()
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestProviderPendingFederationExplicitAbsence(t *testing.T) {
	store := newCountingStore()
	provider := newTestProvider(t, store)

	provider.SetPendingFederation(nil)
	require.NoError(t, provider.Commit())
	require.Len(t, store.writes, 1)
	require.Equal(t, "bridgePendingFederation", store.writes[0].key)
	require.Nil(t, store.writes[0].value)
}

func TestProviderActiveFederationImplicitSkip(t *testing.T) {
	store := newCountingStore()
	provider := newTestProvider(t, store)

	// Reading the active federation as absent must not mark it dirty.
	fed, err := provider.GetActiveFederation()
	require.NoError(t, err)
	require.Nil(t, fed)

	// Reading the retiring and pending federations as absent must not
	// either: their touched flags belong to the setters alone.
	_, err = provider.GetRetiringFederation()
	require.NoError(t, err)
	_, err = provider.GetPendingFederation()
	require.NoError(t, err)

	require.NoError(t, provider.Commit())
	require.Empty(t, store.writes)
}

func TestProviderActiveFederationSetIsWritten(t *testing.T) {
	store := newCountingStore()
	provider := newTestProvider(t, store)
	prms := testBridgeParams(t)

	fed, err := NewFederation([][]byte{testPubKey(t, 1), testPubKey(t, 2), testPubKey(t, 3)}, testCreatedAt, 9, prms.BtcParams)
	require.NoError(t, err)
	provider.SetActiveFederation(fed)
	require.NoError(t, provider.Commit())

	require.Len(t, store.writes, 1)
	require.Equal(t, "bridgeActiveFederation", store.writes[0].key)

	fresh := newTestProvider(t, store)
	got, err := fresh.GetActiveFederation()
	require.NoError(t, err)
	require.True(t, fed.Equal(got))
}

func TestProviderCommitOrderDeterministic(t *testing.T) {
	prms := testBridgeParams(t)

	populate := func(provider *StorageProvider) {
		processed, err := provider.GetBtcTxHashesAlreadyProcessed()
		require.NoError(t, err)
		processed[testBtcHash(2)] = 42

		queue, err := provider.GetReleaseRequestQueue()
		require.NoError(t, err)
		queue.Add(testP2PKHAddress(t, 1), 5000)

		set, err := provider.GetReleaseTransactionSet()
		require.NoError(t, err)
		set.Add(testBtcTx(1, 4000), 77)

		sigs, err := provider.GetTxsWaitingForSignatures()
		require.NoError(t, err)
		sigs.Put(testLedgerHash(3), testBtcTx(2, 3000))

		fed, err := NewFederation([][]byte{testPubKey(t, 1), testPubKey(t, 2)}, testCreatedAt, 5, prms.BtcParams)
		require.NoError(t, err)
		provider.SetActiveFederation(fed)

		activeUTXOs, err := provider.GetActiveFederationBtcUTXOs()
		require.NoError(t, err)
		activeUTXOs.Add(UTXO{Hash: testBtcHash(4), Index: 1, Value: 9000, Height: 3, Script: []byte{0x51}})

		provider.SetRetiringFederation(nil)

		retiringUTXOs, err := provider.GetRetiringFederationBtcUTXOs()
		require.NoError(t, err)
		retiringUTXOs.Add(UTXO{Hash: testBtcHash(5), Index: 0, Value: 100, Height: 2, Script: []byte{0x52}})

		pending, err := NewPendingFederation([][]byte{testPubKey(t, 7)})
		require.NoError(t, err)
		provider.SetPendingFederation(pending)

		election, err := provider.GetFederationElection(NewMajorityAuthorizer(prms.FederationChangeVoters))
		require.NoError(t, err)
		require.True(t, election.Vote(CallSpec{Function: "create"}, prms.FederationChangeVoters[0]))

		whitelist, err := provider.GetLockWhitelist()
		require.NoError(t, err)
		whitelist.Put(testP2PKHAddress(t, 9), 12_000)
	}

	storeA := newCountingStore()
	providerA := NewStorageProvider(storeA, prms.Scope(), prms)
	populate(providerA)
	require.NoError(t, providerA.Commit())

	storeB := newCountingStore()
	providerB := NewStorageProvider(storeB, prms.Scope(), prms)
	populate(providerB)
	require.NoError(t, providerB.Commit())

	wantOrder := []string{
		"btcTxHashesAP",
		"releaseRequestQueue",
		"releaseTransactionSet",
		"rskTxsWaitingFS",
		"bridgeActiveFederation",
		"activeFederationBtcUTXOs",
		"bridgeRetiringFederation",
		"retiringFederationBtcUTXOs",
		"bridgePendingFederation",
		"bridgeFederationElection",
		"bridgeLockWhitelist",
	}
	require.Len(t, storeA.writes, len(wantOrder))
	for i, op := range storeA.writes {
		require.Equal(t, wantOrder[i], op.key, "write %d", i)
	}
	// Independently constructed providers over identical state produce
	// byte-identical write sequences.
	require.Equal(t, storeA.writes, storeB.writes)
}

func TestProviderDefaultsOnAbsence(t *testing.T) {
	store := newCountingStore()
	provider := newTestProvider(t, store)
	prms := testBridgeParams(t)

	whitelist, err := provider.GetLockWhitelist()
	require.NoError(t, err)
	require.NotNil(t, whitelist, "absent whitelist must load as empty, not nil")
	require.Equal(t, 0, whitelist.Len())

	authorizer := NewMajorityAuthorizer(prms.FederationChangeVoters)
	election, err := provider.GetFederationElection(authorizer)
	require.NoError(t, err)
	require.NotNil(t, election)
	require.Equal(t, 0, election.NumSpecs())
	require.True(t, election.Vote(CallSpec{Function: "create"}, prms.FederationChangeVoters[0]),
		"fresh election must be bound to the supplied authorizer")
}

func TestProviderReleasePipelineScenario(t *testing.T) {
	store := newCountingStore()
	prms := testBridgeParams(t)
	addrA := testP2PKHAddress(t, 1)

	// A release request is queued and committed.
	requesting := NewStorageProvider(store, prms.Scope(), prms)
	queue, err := requesting.GetReleaseRequestQueue()
	require.NoError(t, err)
	queue.Add(addrA, 5000)
	require.NoError(t, requesting.Commit())

	// Coin selection happens in a later execution context: the request
	// leaves the queue, a built transaction enters the set.
	builtTx := testBtcTx(1, 5000)
	selecting := NewStorageProvider(store, prms.Scope(), prms)
	queue, err = selecting.GetReleaseRequestQueue()
	require.NoError(t, err)
	require.Equal(t, 1, queue.Len())
	queue.Process(func(e ReleaseRequestEntry) bool {
		require.Equal(t, addrA.EncodeAddress(), e.Destination.EncodeAddress())
		require.Equal(t, btcutil.Amount(5000), e.Amount)
		return true
	})
	set, err := selecting.GetReleaseTransactionSet()
	require.NoError(t, err)
	set.Add(builtTx, 100)
	require.NoError(t, selecting.Commit())

	// A fresh provider over the same store sees the moved entry.
	fresh := NewStorageProvider(store, prms.Scope(), prms)
	queue, err = fresh.GetReleaseRequestQueue()
	require.NoError(t, err)
	require.Equal(t, 0, queue.Len())
	set, err = fresh.GetReleaseTransactionSet()
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	entries := set.Entries()
	require.Equal(t, builtTx.TxHash(), entries[0].Tx.TxHash())
	require.Equal(t, uint64(100), entries[0].LedgerHeight)
}

func TestProviderStoreFaultIsFatal(t *testing.T) {
	prms := testBridgeParams(t)
	provider := NewStorageProvider(failingStore{}, prms.Scope(), prms)

	_, err := provider.GetReleaseRequestQueue()
	require.ErrorIs(t, err, ErrStore)

	provider = NewStorageProvider(failingStore{}, prms.Scope(), prms)
	provider.SetPendingFederation(nil)
	require.ErrorIs(t, provider.Commit(), ErrStore)
}

func TestProviderCorruptSlotIsCodecFailure(t *testing.T) {
	store := newCountingStore()
	prms := testBridgeParams(t)
	require.NoError(t, store.mem.Put(prms.Scope(), []byte("bridgeActiveFederation"), []byte{0x13, 0x37}))

	provider := NewStorageProvider(store, prms.Scope(), prms)
	_, err := provider.GetActiveFederation()
	require.ErrorIs(t, err, ErrCodec)
}
