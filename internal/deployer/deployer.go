// Package deployer builds, signs, and broadcasts contract deployment
// transactions, deriving the contract address before submission.
package deployer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/solfoundry/solforge/internal/chains"
)

// ErrWalletUnavailable indicates no usable signing key is configured.
var ErrWalletUnavailable = errors.New("deployer wallet unavailable")

// RPCError wraps a chain RPC failure with the failed operation.
type RPCError struct {
	Op  string
	Err error
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc %s: %v", e.Op, e.Err) }
func (e *RPCError) Unwrap() error { return e.Err }

// Client is the subset of ethclient used for a deployment.
type Client interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// DialFunc opens an RPC client for a chain endpoint.
type DialFunc func(ctx context.Context, rawURL string) (Client, error)

func dialEthclient(ctx context.Context, rawURL string) (Client, error) {
	return ethclient.DialContext(ctx, rawURL)
}

// Result holds the outcome of a broadcast deployment. The contract
// address is derived from (deployer, nonce) before submission, so it
// is known without waiting for mining.
type Result struct {
	ContractAddress common.Address
	TxHash          common.Hash
	From            common.Address
	Nonce           uint64
}

// Deployer signs and submits deployment transactions from a single
// configured key.
type Deployer struct {
	key    *ecdsa.PrivateKey
	from   common.Address
	dial   DialFunc
	logger *slog.Logger

	gasLimitFallback uint64
	rpcTimeout       time.Duration

	// Serializes nonce read through broadcast so concurrent deploys
	// from the same signer cannot collide on a nonce.
	mu sync.Mutex
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithDialFunc overrides how RPC connections are opened.
func WithDialFunc(dial DialFunc) Option {
	return func(d *Deployer) { d.dial = dial }
}

// WithGasLimitFallback sets the gas limit used when estimation fails.
// Zero keeps estimation failures fatal.
func WithGasLimitFallback(limit uint64) Option {
	return func(d *Deployer) { d.gasLimitFallback = limit }
}

// New creates a deployer from a hex-encoded private key.
func New(privateKeyHex string, rpcTimeout time.Duration, logger *slog.Logger, opts ...Option) (*Deployer, error) {
	if privateKeyHex == "" {
		return nil, ErrWalletUnavailable
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}

	d := &Deployer{
		key:        key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		dial:       dialEthclient,
		logger:     logger,
		rpcTimeout: rpcTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Address returns the deployer account address.
func (d *Deployer) Address() common.Address {
	return d.from
}

// Deploy broadcasts a contract creation carrying bytecode plus
// ABI-encoded constructor arguments and returns the derived address
// and transaction hash immediately, without waiting for confirmation.
func (d *Deployer) Deploy(ctx context.Context, chain chains.Descriptor, bytecode string, encodedArgs []byte) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.rpcTimeout)
	defer cancel()

	client, err := d.dial(ctx, chain.RPCURL)
	if err != nil {
		return nil, &RPCError{Op: "dial", Err: err}
	}
	defer client.Close()

	data := append(common.FromHex(bytecode), encodedArgs...)

	nonce, err := client.PendingNonceAt(ctx, d.from)
	if err != nil {
		return nil, &RPCError{Op: "getTransactionCount", Err: err}
	}

	// Standard CREATE derivation: keccak(rlp(sender, nonce))[12:]
	contractAddress := crypto.CreateAddress(d.from, nonce)

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &RPCError{Op: "gasPrice", Err: err}
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:     d.from,
		Data:     data,
		GasPrice: gasPrice,
	})
	if err != nil {
		if d.gasLimitFallback == 0 {
			return nil, &RPCError{Op: "estimateGas", Err: err}
		}
		d.logger.Warn("gas estimation failed, using fallback limit",
			"chain_id", chain.ChainID, "limit", d.gasLimitFallback, "error", err)
		gasLimit = d.gasLimitFallback
	}

	tx := types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chain.ChainID)), d.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, &RPCError{Op: "sendRawTransaction", Err: err}
	}

	d.logger.Info("deployment broadcast",
		"chain_id", chain.ChainID,
		"address", contractAddress.Hex(),
		"tx", signed.Hash().Hex(),
		"nonce", nonce)

	return &Result{
		ContractAddress: contractAddress,
		TxHash:          signed.Hash(),
		From:            d.from,
		Nonce:           nonce,
	}, nil
}
