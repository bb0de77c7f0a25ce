package peg

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// CallSpec identifies one proposed administrative call: a function name plus
// its encoded arguments. Two specs with the same function and arguments are
// the same proposal.
type CallSpec struct {
	Function string
	Args     [][]byte
}

// Equal reports whether both specs describe the same call.
func (s CallSpec) Equal(o CallSpec) bool {
	if s.Function != o.Function || len(s.Args) != len(o.Args) {
		return false
	}
	for i := range s.Args {
		if !bytes.Equal(s.Args[i], o.Args[i]) {
			return false
		}
	}
	return true
}

// key returns the canonical byte form of the spec, used both as the tally map
// key and as the sort key for deterministic iteration.
func (s CallSpec) key() string {
	encoded, err := rlp.EncodeToBytes(&storedCallSpec{Function: s.Function, Args: s.Args})
	if err != nil {
		// Only non-encodable inputs can fail here and CallSpec holds
		// none.
		panic(err)
	}
	return string(encoded)
}

type storedCallSpec struct {
	Function string
	Args     [][]byte
}

// CallElection tallies votes from an authorised set of voters over proposed
// administrative calls. Losing tallies are retained until Clear.
type CallElection struct {
	authorizer *AddressAuthorizer
	specs      map[string]CallSpec
	votes      map[string][]common.Address
}

// NewCallElection creates an empty tally bound to the given authorizer.
func NewCallElection(authorizer *AddressAuthorizer) *CallElection {
	return &CallElection{
		authorizer: authorizer,
		specs:      make(map[string]CallSpec),
		votes:      make(map[string][]common.Address),
	}
}

// Vote registers voter's support for the given call. It returns false when
// the voter is not authorised or already voted for that call.
func (e *CallElection) Vote(spec CallSpec, voter common.Address) bool {
	if !e.authorizer.IsAuthorized(voter) {
		return false
	}
	k := spec.key()
	for _, existing := range e.votes[k] {
		if existing == voter {
			return false
		}
	}
	if _, ok := e.specs[k]; !ok {
		e.specs[k] = spec
	}
	voters := append(e.votes[k], voter)
	// Voters are kept in address order so the persisted form is stable.
	sort.Slice(voters, func(i, j int) bool {
		return bytes.Compare(voters[i][:], voters[j][:]) < 0
	})
	e.votes[k] = voters
	return true
}

// Votes returns the voters registered for the given call, in address order.
func (e *CallElection) Votes(spec CallSpec) []common.Address {
	voters := e.votes[spec.key()]
	out := make([]common.Address, len(voters))
	copy(out, voters)
	return out
}

// NumSpecs returns the number of distinct calls with at least one vote.
func (e *CallElection) NumSpecs() int {
	return len(e.specs)
}

// WinnerOrNil returns the first call (in canonical key order) that gathered
// the required number of votes, or nil when no call has won yet.
func (e *CallElection) WinnerOrNil() *CallSpec {
	for _, k := range e.sortedKeys() {
		if len(e.votes[k]) >= e.authorizer.RequiredVotes() {
			spec := e.specs[k]
			return &spec
		}
	}
	return nil
}

// Clear drops every tally, typically after a winning call was executed.
func (e *CallElection) Clear() {
	e.specs = make(map[string]CallSpec)
	e.votes = make(map[string][]common.Address)
}

func (e *CallElection) sortedKeys() []string {
	keys := make([]string, 0, len(e.votes))
	for k := range e.votes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
