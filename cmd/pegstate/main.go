// Command pegstate dumps the bridge's persisted state as JSON. It opens the
// configured ledger store, loads every bridge entity through the storage
// provider, and prints a summary without ever writing back.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"pegbridge/config"
	"pegbridge/observability/logging"
	"pegbridge/params"
	"pegbridge/peg"
	"pegbridge/storage"
)

type federationSummary struct {
	Address        string `json:"address"`
	Members        int    `json:"members"`
	Threshold      int    `json:"threshold"`
	CreationHeight uint64 `json:"creationHeight"`
}

type utxoSummary struct {
	Count      int   `json:"count"`
	TotalValue int64 `json:"totalValue"`
}

type releaseRequestSummary struct {
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

type stateSummary struct {
	Network             string                  `json:"network"`
	BridgeAddress       string                  `json:"bridgeAddress"`
	ActiveFederation    *federationSummary      `json:"activeFederation"`
	RetiringFederation  *federationSummary      `json:"retiringFederation"`
	PendingFederation   *int                    `json:"pendingFederationMembers"`
	ActiveUTXOs         utxoSummary             `json:"activeFederationUtxos"`
	RetiringUTXOs       utxoSummary             `json:"retiringFederationUtxos"`
	ProcessedTxHashes   int                     `json:"processedTxHashes"`
	ReleaseRequests     []releaseRequestSummary `json:"releaseRequests"`
	ReleaseTransactions int                     `json:"releaseTransactions"`
	AwaitingSignatures  []string                `json:"awaitingSignatures"`
	ElectionSpecs       int                     `json:"electionSpecs"`
	WhitelistedAddrs    int                     `json:"whitelistedAddresses"`
}

func main() {
	configPath := flag.String("config", "./pegbridge.toml", "path to the tool configuration")
	network := flag.String("network", "", "override the configured network")
	flag.Parse()

	logger := logging.Setup("pegstate")
	if err := run(logger, *configPath, *network); err != nil {
		logger.Error("inspection failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, networkOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	network := cfg.Network
	if networkOverride != "" {
		network = networkOverride
	}
	prms, err := params.ForNetwork(network)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening %s store at %s: %w", cfg.Backend, cfg.DataDir, err)
	}
	defer store.Close()

	logger.Info("inspecting bridge state", "network", network, "backend", cfg.Backend, "datadir", cfg.DataDir)

	summary, err := collect(prms, store)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Backend {
	case "bolt":
		return storage.NewBoltStore(cfg.DataDir, nil)
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

func collect(prms *params.BridgeParams, store storage.Store) (*stateSummary, error) {
	provider := peg.NewStorageProvider(store, prms.Scope(), prms)
	summary := &stateSummary{
		Network:       prms.Name,
		BridgeAddress: prms.BridgeAddress.Hex(),
	}

	active, err := provider.GetActiveFederation()
	if err != nil {
		return nil, err
	}
	summary.ActiveFederation = summarizeFederation(active)

	retiring, err := provider.GetRetiringFederation()
	if err != nil {
		return nil, err
	}
	summary.RetiringFederation = summarizeFederation(retiring)

	pending, err := provider.GetPendingFederation()
	if err != nil {
		return nil, err
	}
	if pending != nil {
		size := pending.Size()
		summary.PendingFederation = &size
	}

	activeUTXOs, err := provider.GetActiveFederationBtcUTXOs()
	if err != nil {
		return nil, err
	}
	summary.ActiveUTXOs = utxoSummary{Count: activeUTXOs.Len(), TotalValue: int64(activeUTXOs.TotalValue())}

	retiringUTXOs, err := provider.GetRetiringFederationBtcUTXOs()
	if err != nil {
		return nil, err
	}
	summary.RetiringUTXOs = utxoSummary{Count: retiringUTXOs.Len(), TotalValue: int64(retiringUTXOs.TotalValue())}

	processed, err := provider.GetBtcTxHashesAlreadyProcessed()
	if err != nil {
		return nil, err
	}
	summary.ProcessedTxHashes = len(processed)

	queue, err := provider.GetReleaseRequestQueue()
	if err != nil {
		return nil, err
	}
	summary.ReleaseRequests = make([]releaseRequestSummary, 0, queue.Len())
	for _, entry := range queue.Entries() {
		summary.ReleaseRequests = append(summary.ReleaseRequests, releaseRequestSummary{
			Destination: entry.Destination.EncodeAddress(),
			Amount:      int64(entry.Amount),
		})
	}

	releaseSet, err := provider.GetReleaseTransactionSet()
	if err != nil {
		return nil, err
	}
	summary.ReleaseTransactions = releaseSet.Len()

	signatures, err := provider.GetTxsWaitingForSignatures()
	if err != nil {
		return nil, err
	}
	summary.AwaitingSignatures = make([]string, 0, signatures.Len())
	for _, h := range signatures.Hashes() {
		summary.AwaitingSignatures = append(summary.AwaitingSignatures, h.Hex())
	}

	election, err := provider.GetFederationElection(peg.NewMajorityAuthorizer(prms.FederationChangeVoters))
	if err != nil {
		return nil, err
	}
	summary.ElectionSpecs = election.NumSpecs()

	whitelist, err := provider.GetLockWhitelist()
	if err != nil {
		return nil, err
	}
	summary.WhitelistedAddrs = whitelist.Len()

	return summary, nil
}

func summarizeFederation(f *peg.Federation) *federationSummary {
	if f == nil {
		return nil
	}
	return &federationSummary{
		Address:        f.Address().EncodeAddress(),
		Members:        f.NumMembers(),
		Threshold:      f.Threshold(),
		CreationHeight: f.CreationHeight(),
	}
}
