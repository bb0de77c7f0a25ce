// Package params holds the per-network constants the bridge needs: the
// external chain's parameters, the storage scope of the bridge contract, and
// the voter set authorised to change the custodian federation.
package params

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/ethereum/go-ethereum/common"
)

// BridgeParams bundles the chain-level constants for one deployment of the
// two-way peg.
type BridgeParams struct {
	// Name identifies the network ("mainnet", "testnet", "regtest").
	Name string
	// BtcParams are the external proof-of-work chain's parameters, needed
	// to reconstruct custodian key material and deposit addresses.
	BtcParams *chaincfg.Params
	// BridgeAddress is the ledger address of the bridge contract. Its
	// bytes form the owner scope under which all bridge state is stored.
	BridgeAddress common.Address
	// FederationChangeVoters are the ledger addresses allowed to vote on
	// federation-change calls. A majority of them approves a change.
	FederationChangeVoters []common.Address
	// MinimumPegoutValue is the smallest release amount the bridge will
	// queue.
	MinimumPegoutValue btcutil.Amount
	// Ledger2BtcMinConfirmations is how many ledger blocks a built release
	// transaction waits before it may collect custodian signatures.
	Ledger2BtcMinConfirmations uint64
}

// Scope returns the owner scope for the bridge's storage slots.
func (p *BridgeParams) Scope() []byte {
	return p.BridgeAddress.Bytes()
}

var bridgeAddress = common.HexToAddress("0x0000000000000000000000000000000001000006")

func mainNet() *BridgeParams {
	return &BridgeParams{
		Name:          "mainnet",
		BtcParams:     &chaincfg.MainNetParams,
		BridgeAddress: bridgeAddress,
		FederationChangeVoters: []common.Address{
			common.HexToAddress("0x5b10ce9cd7f38b4db06c2dcdd27b1b09e7159f81"),
			common.HexToAddress("0x8f50b76c1356bb58875eb0d952a1cfa4349e3a88"),
			common.HexToAddress("0xd21ce2f194dc13d6e32e80a8a4a1e6eac22b7d22"),
		},
		MinimumPegoutValue:         btcutil.Amount(800_000),
		Ledger2BtcMinConfirmations: 4000,
	}
}

func testNet() *BridgeParams {
	return &BridgeParams{
		Name:          "testnet",
		BtcParams:     &chaincfg.TestNet3Params,
		BridgeAddress: bridgeAddress,
		FederationChangeVoters: []common.Address{
			common.HexToAddress("0x04e79d41a68ee1a4a1a367ab4b7efdbdbd842a23"),
			common.HexToAddress("0x21f74bbd3da32e2d03f69e57f4c8a5132a8f72cc"),
			common.HexToAddress("0x62f35468bd04c1b35acb04e1c85e88cfbb27a308"),
		},
		MinimumPegoutValue:         btcutil.Amount(500_000),
		Ledger2BtcMinConfirmations: 10,
	}
}

func regTest() *BridgeParams {
	return &BridgeParams{
		Name:          "regtest",
		BtcParams:     &chaincfg.RegressionNetParams,
		BridgeAddress: bridgeAddress,
		FederationChangeVoters: []common.Address{
			common.HexToAddress("0x1111111111111111111111111111111111111111"),
			common.HexToAddress("0x2222222222222222222222222222222222222222"),
			common.HexToAddress("0x3333333333333333333333333333333333333333"),
		},
		MinimumPegoutValue:         btcutil.Amount(10_000),
		Ledger2BtcMinConfirmations: 1,
	}
}

// ForNetwork resolves the bridge parameters for a named network.
func ForNetwork(name string) (*BridgeParams, error) {
	switch name {
	case "mainnet":
		return mainNet(), nil
	case "testnet":
		return testNet(), nil
	case "regtest":
		return regTest(), nil
	default:
		return nil, fmt.Errorf("params: unknown network %q", name)
	}
}
