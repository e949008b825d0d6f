// Package chains provides the static registry of supported EVM chains.
// Chain-specific RPC and explorer quirks are data here, not code branches.
package chains

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor is the static configuration for one chain.
type Descriptor struct {
	ChainID          int64  `yaml:"chainId"`
	Name             string `yaml:"name"`
	RPCURL           string `yaml:"rpcUrl"`
	ExplorerAPIURL   string `yaml:"explorerApiUrl"`
	ExplorerAPIKey   string `yaml:"explorerApiKey"`
	BlockExplorerURL string `yaml:"blockExplorerUrl"`
}

// ExplorerAddressURL returns the block explorer page for an address.
func (d Descriptor) ExplorerAddressURL(address string) string {
	return fmt.Sprintf("%s/address/%s", d.BlockExplorerURL, address)
}

// ExplorerTxURL returns the block explorer page for a transaction.
func (d Descriptor) ExplorerTxURL(txHash string) string {
	return fmt.Sprintf("%s/tx/%s", d.BlockExplorerURL, txHash)
}

// Registry holds chain descriptors looked up by numeric chain id.
// Read-only after construction.
type Registry struct {
	chains map[int64]Descriptor
}

// NewRegistry creates a registry with the built-in descriptors.
func NewRegistry() *Registry {
	r := &Registry{chains: make(map[int64]Descriptor, len(builtin))}
	for _, d := range builtin {
		r.chains[d.ChainID] = d
	}
	return r
}

// Get retrieves a chain descriptor by chain id.
func (r *Registry) Get(chainID int64) (Descriptor, bool) {
	d, ok := r.chains[chainID]
	return d, ok
}

// List returns all registered descriptors.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.chains))
	for _, d := range r.chains {
		out = append(out, d)
	}
	return out
}

// register adds or replaces a descriptor. Used during construction only.
func (r *Registry) register(d Descriptor) error {
	if d.ChainID == 0 {
		return fmt.Errorf("chain %q: missing chainId", d.Name)
	}
	if d.RPCURL == "" {
		return fmt.Errorf("chain %d: missing rpcUrl", d.ChainID)
	}
	r.chains[d.ChainID] = d
	return nil
}

// LoadOverlay merges descriptors from a yaml file over the built-ins.
// Entries with a known chain id replace the built-in descriptor.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading chains file: %w", err)
	}

	var file struct {
		Chains []Descriptor `yaml:"chains"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing chains file: %w", err)
	}

	for _, d := range file.Chains {
		if err := r.register(d); err != nil {
			return err
		}
	}
	return nil
}

// SetExplorerAPIKey injects an explorer API key for one chain.
// API keys come from the environment, never from the overlay file.
func (r *Registry) SetExplorerAPIKey(chainID int64, key string) {
	if d, ok := r.chains[chainID]; ok {
		d.ExplorerAPIKey = key
		r.chains[chainID] = d
	}
}

var builtin = []Descriptor{
	{
		ChainID:          1,
		Name:             "Ethereum Mainnet",
		RPCURL:           "https://eth.llamarpc.com",
		ExplorerAPIURL:   "https://api.etherscan.io/api",
		BlockExplorerURL: "https://etherscan.io",
	},
	{
		ChainID:          11155111,
		Name:             "Sepolia",
		RPCURL:           "https://rpc.sepolia.org",
		ExplorerAPIURL:   "https://api-sepolia.etherscan.io/api",
		BlockExplorerURL: "https://sepolia.etherscan.io",
	},
	{
		ChainID:          137,
		Name:             "Polygon",
		RPCURL:           "https://polygon-rpc.com",
		ExplorerAPIURL:   "https://api.polygonscan.com/api",
		BlockExplorerURL: "https://polygonscan.com",
	},
	{
		ChainID:          56,
		Name:             "BNB Smart Chain",
		RPCURL:           "https://bsc-dataseed.binance.org",
		ExplorerAPIURL:   "https://api.bscscan.com/api",
		BlockExplorerURL: "https://bscscan.com",
	},
	{
		ChainID:          8453,
		Name:             "Base",
		RPCURL:           "https://mainnet.base.org",
		ExplorerAPIURL:   "https://api.basescan.org/api",
		BlockExplorerURL: "https://basescan.org",
	},
	{
		ChainID:          42161,
		Name:             "Arbitrum One",
		RPCURL:           "https://arb1.arbitrum.io/rpc",
		ExplorerAPIURL:   "https://api.arbiscan.io/api",
		BlockExplorerURL: "https://arbiscan.io",
	},
}
