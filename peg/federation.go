package peg

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
)

// Federation is the set of custodians authorised to control pegged funds.
// Member public keys are kept in lexicographic order of their compressed
// encoding so that the multisig redeem script, the derived address, and the
// persisted form are identical on every node.
type Federation struct {
	pubKeys        [][]byte
	creationTime   time.Time
	creationHeight uint64
	redeemScript   []byte
	address        btcutil.Address
}

// NewFederation validates the member public keys (compressed secp256k1),
// orders them, and derives the federation's multisig redeem script and P2SH
// address on the given network. The signature threshold is a simple majority
// of the members.
func NewFederation(pubKeys [][]byte, createdAt time.Time, creationHeight uint64, btcParams *chaincfg.Params) (*Federation, error) {
	if len(pubKeys) == 0 {
		return nil, fmt.Errorf("peg: federation requires at least one member key")
	}
	sorted := sortedPubKeys(pubKeys)
	addrKeys := make([]*btcutil.AddressPubKey, len(sorted))
	for i, pk := range sorted {
		if _, err := btcec.ParsePubKey(pk, btcec.S256()); err != nil {
			return nil, fmt.Errorf("peg: invalid federation member key: %w", err)
		}
		addrKey, err := btcutil.NewAddressPubKey(pk, btcParams)
		if err != nil {
			return nil, fmt.Errorf("peg: invalid federation member key: %w", err)
		}
		addrKeys[i] = addrKey
	}

	threshold := len(sorted)/2 + 1
	script, err := txscript.MultiSigScript(addrKeys, threshold)
	if err != nil {
		return nil, fmt.Errorf("peg: building federation redeem script: %w", err)
	}
	address, err := btcutil.NewAddressScriptHash(script, btcParams)
	if err != nil {
		return nil, fmt.Errorf("peg: deriving federation address: %w", err)
	}

	return &Federation{
		pubKeys:        sorted,
		creationTime:   createdAt,
		creationHeight: creationHeight,
		redeemScript:   script,
		address:        address,
	}, nil
}

func sortedPubKeys(pubKeys [][]byte) [][]byte {
	sorted := make([][]byte, len(pubKeys))
	for i, pk := range pubKeys {
		sorted[i] = append([]byte(nil), pk...)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// PublicKeys returns copies of the member keys in canonical order.
func (f *Federation) PublicKeys() [][]byte {
	out := make([][]byte, len(f.pubKeys))
	for i, pk := range f.pubKeys {
		out[i] = append([]byte(nil), pk...)
	}
	return out
}

// NumMembers returns the federation size.
func (f *Federation) NumMembers() int {
	return len(f.pubKeys)
}

// Threshold returns the number of co-signatures a release needs.
func (f *Federation) Threshold() int {
	return len(f.pubKeys)/2 + 1
}

// CreationTime returns when the federation was created on the ledger.
func (f *Federation) CreationTime() time.Time {
	return f.creationTime
}

// CreationHeight returns the ledger height the federation was created at.
func (f *Federation) CreationHeight() uint64 {
	return f.creationHeight
}

// RedeemScript returns a copy of the multisig redeem script.
func (f *Federation) RedeemScript() []byte {
	return append([]byte(nil), f.redeemScript...)
}

// Address returns the federation's P2SH custody address.
func (f *Federation) Address() btcutil.Address {
	return f.address
}

// Equal reports whether both federations have identical members, creation
// time, and creation height.
func (f *Federation) Equal(o *Federation) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.creationHeight != o.creationHeight || f.creationTime.Unix() != o.creationTime.Unix() {
		return false
	}
	if len(f.pubKeys) != len(o.pubKeys) {
		return false
	}
	for i := range f.pubKeys {
		if !bytes.Equal(f.pubKeys[i], o.pubKeys[i]) {
			return false
		}
	}
	return true
}

// PendingFederation is a federation in formation: a bare ordered key set that
// has not yet been activated. It carries no creation metadata and derives no
// address until completed.
type PendingFederation struct {
	pubKeys [][]byte
}

// NewPendingFederation validates and orders the given member keys.
func NewPendingFederation(pubKeys [][]byte) (*PendingFederation, error) {
	sorted := sortedPubKeys(pubKeys)
	for _, pk := range sorted {
		if _, err := btcec.ParsePubKey(pk, btcec.S256()); err != nil {
			return nil, fmt.Errorf("peg: invalid pending federation key: %w", err)
		}
	}
	return &PendingFederation{pubKeys: sorted}, nil
}

// AddPublicKey inserts a new member key, rejecting duplicates and malformed
// keys.
func (p *PendingFederation) AddPublicKey(pubKey []byte) error {
	if _, err := btcec.ParsePubKey(pubKey, btcec.S256()); err != nil {
		return fmt.Errorf("peg: invalid pending federation key: %w", err)
	}
	for _, existing := range p.pubKeys {
		if bytes.Equal(existing, pubKey) {
			return fmt.Errorf("peg: key already part of pending federation")
		}
	}
	p.pubKeys = append(p.pubKeys, append([]byte(nil), pubKey...))
	sort.Slice(p.pubKeys, func(i, j int) bool {
		return bytes.Compare(p.pubKeys[i], p.pubKeys[j]) < 0
	})
	return nil
}

// PublicKeys returns copies of the member keys in canonical order.
func (p *PendingFederation) PublicKeys() [][]byte {
	out := make([][]byte, len(p.pubKeys))
	for i, pk := range p.pubKeys {
		out[i] = append([]byte(nil), pk...)
	}
	return out
}

// Size returns the number of members gathered so far.
func (p *PendingFederation) Size() int {
	return len(p.pubKeys)
}

// Complete turns the pending set into a full federation created at the given
// time and height. At least two members are required.
func (p *PendingFederation) Complete(createdAt time.Time, creationHeight uint64, btcParams *chaincfg.Params) (*Federation, error) {
	if len(p.pubKeys) < 2 {
		return nil, fmt.Errorf("peg: pending federation has %d members, need at least 2", len(p.pubKeys))
	}
	return NewFederation(p.pubKeys, createdAt, creationHeight, btcParams)
}

// Equal reports whether both pending federations hold the same key set.
func (p *PendingFederation) Equal(o *PendingFederation) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.pubKeys) != len(o.pubKeys) {
		return false
	}
	for i := range p.pubKeys {
		if !bytes.Equal(p.pubKeys[i], o.pubKeys[i]) {
			return false
		}
	}
	return true
}
