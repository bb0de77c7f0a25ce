package peg

import (
	"sort"

	"github.com/btcsuite/btcutil"
)

// WhitelistEntry is one authorised deposit address with an optional cap on
// the amount it may lock. A zero MaxTransferValue means no cap.
type WhitelistEntry struct {
	Address          btcutil.Address
	MaxTransferValue btcutil.Amount
}

// LockWhitelist is the set of external-chain addresses permitted to deposit
// into custody. Downstream policy code never sees "no whitelist": an absent
// stored whitelist loads as an empty one.
type LockWhitelist struct {
	entries map[string]WhitelistEntry
}

// NewLockWhitelist returns an empty whitelist.
func NewLockWhitelist() *LockWhitelist {
	return &LockWhitelist{entries: make(map[string]WhitelistEntry)}
}

// Put adds or replaces the entry for addr. A zero maxValue leaves the address
// uncapped.
func (w *LockWhitelist) Put(addr btcutil.Address, maxValue btcutil.Amount) {
	w.entries[addr.EncodeAddress()] = WhitelistEntry{Address: addr, MaxTransferValue: maxValue}
}

// Remove deletes addr from the whitelist and reports whether it was present.
func (w *LockWhitelist) Remove(addr btcutil.Address) bool {
	key := addr.EncodeAddress()
	if _, ok := w.entries[key]; !ok {
		return false
	}
	delete(w.entries, key)
	return true
}

// Contains reports whether addr is whitelisted.
func (w *LockWhitelist) Contains(addr btcutil.Address) bool {
	_, ok := w.entries[addr.EncodeAddress()]
	return ok
}

// CanLock reports whether addr may deposit the given amount: it must be
// whitelisted and within its cap, if any.
func (w *LockWhitelist) CanLock(addr btcutil.Address, amount btcutil.Amount) bool {
	entry, ok := w.entries[addr.EncodeAddress()]
	if !ok {
		return false
	}
	return entry.MaxTransferValue == 0 || amount <= entry.MaxTransferValue
}

// Len returns the number of whitelisted addresses.
func (w *LockWhitelist) Len() int {
	return len(w.entries)
}

// Sorted returns the entries in ascending encoded-address order.
func (w *LockWhitelist) Sorted() []WhitelistEntry {
	keys := make([]string, 0, len(w.entries))
	for k := range w.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]WhitelistEntry, len(keys))
	for i, k := range keys {
		out[i] = w.entries[k]
	}
	return out
}
