// Package chain provides the engine's read-only view of the wallet
// contract on its target network: nonce state, deployed bytecode and
// execution/failure event logs. The engine never broadcasts through it.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// TxExecutedTopic is the topic of TxExecuted(bytes32 indexed _tx, uint256 _index),
	// emitted by the wallet when a bundle executes successfully.
	TxExecutedTopic = crypto.Keccak256Hash([]byte("TxExecuted(bytes32,uint256)"))

	// TxFailedTopic is the topic of TxFailed(bytes32 indexed _tx, uint256 _index, bytes _reason),
	// emitted when a bundle reverts without reverting the dispatch.
	TxFailedTopic = crypto.Keccak256Hash([]byte("TxFailed(bytes32,uint256,bytes)"))
)

// Oracle is the chain read access consumed by the status reconciler.
type Oracle interface {
	// ReadNonce returns the wallet's current nonce for a nonce space.
	ReadNonce(ctx context.Context, wallet common.Address, space *big.Int) (*big.Int, error)

	// Bytecode returns the code deployed at the wallet address, empty
	// if the wallet contract is not deployed yet.
	Bytecode(ctx context.Context, wallet common.Address) ([]byte, error)

	// LatestBlock returns the current chain head number.
	LatestBlock(ctx context.Context) (uint64, error)

	// FilterWalletLogs returns logs emitted by the wallet with the
	// given event topic, filtered to one subdigest, within a block range.
	FilterWalletLogs(ctx context.Context, wallet common.Address, eventTopic, subdigest common.Hash, fromBlock, toBlock uint64) ([]types.Log, error)
}
