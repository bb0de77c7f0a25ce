package peg

import (
	"github.com/ethereum/go-ethereum/common"
)

// AddressAuthorizer is a fixed set of ledger addresses permitted to vote on
// an administrative call, together with the number of concurring votes
// required to approve it.
type AddressAuthorizer struct {
	authorized map[common.Address]struct{}
	required   int
}

// NewAddressAuthorizer builds an authorizer over the given voters with an
// explicit vote requirement.
func NewAddressAuthorizer(voters []common.Address, required int) *AddressAuthorizer {
	authorized := make(map[common.Address]struct{}, len(voters))
	for _, v := range voters {
		authorized[v] = struct{}{}
	}
	return &AddressAuthorizer{authorized: authorized, required: required}
}

// NewMajorityAuthorizer builds an authorizer requiring a simple majority of
// the given voters.
func NewMajorityAuthorizer(voters []common.Address) *AddressAuthorizer {
	return NewAddressAuthorizer(voters, len(voters)/2+1)
}

// IsAuthorized reports whether addr may vote.
func (a *AddressAuthorizer) IsAuthorized(addr common.Address) bool {
	_, ok := a.authorized[addr]
	return ok
}

// RequiredVotes returns the number of votes needed for approval.
func (a *AddressAuthorizer) RequiredVotes() int {
	return a.required
}

// NumVoters returns the size of the voter set.
func (a *AddressAuthorizer) NumVoters() int {
	return len(a.authorized)
}
