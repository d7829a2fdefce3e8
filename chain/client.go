package chain

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	engerr "github.com/enchanter-io/enchanter/errors"
)

const readNonceABI = `[{"inputs":[{"internalType":"uint256","name":"_space","type":"uint256"}],"name":"readNonce","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// Client implements Oracle over one or more RPC endpoints for a single
// network. Endpoints are dialed lazily and tried in order with failover.
type Client struct {
	chainID *big.Int
	urls    []string
	abi     abi.ABI
	logger  zerolog.Logger

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// NewClient creates a client for a decimal chain ID and its RPC URLs.
func NewClient(chainID string, urls []string, logger zerolog.Logger) (*Client, error) {
	id, ok := new(big.Int).SetString(chainID, 10)
	if !ok {
		return nil, engerr.NewValidationError("chain id %q is not a decimal number", chainID)
	}
	if len(urls) == 0 {
		return nil, engerr.NewValidationError("no RPC URLs configured for chain %s", chainID)
	}

	parsed, err := abi.JSON(strings.NewReader(readNonceABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse wallet ABI")
	}

	return &Client{
		chainID: id,
		urls:    urls,
		abi:     parsed,
		logger: logger.With().
			Str("component", "chain_client").
			Str("chain_id", chainID).
			Logger(),
		clients: make(map[string]*ethclient.Client),
	}, nil
}

// ChainID returns the network this client reads.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close releases all dialed connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, client := range c.clients {
		client.Close()
		delete(c.clients, url)
	}
}

func (c *Client) clientFor(ctx context.Context, url string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[url]; ok {
		return client, nil
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}
	c.clients[url] = client
	return client, nil
}

// executeWithFailover runs fn against each endpoint in order until one
// succeeds. A failing endpoint's cached connection is dropped so the
// next call re-dials it.
func (c *Client) executeWithFailover(ctx context.Context, operation string, fn func(*ethclient.Client) error) error {
	var lastErr error
	for _, url := range c.urls {
		client, err := c.clientFor(ctx, url)
		if err != nil {
			c.logger.Warn().Err(err).Str("operation", operation).Str("url", url).Msg("failed to dial endpoint")
			lastErr = err
			continue
		}

		start := time.Now()
		err = fn(client)
		latency := time.Since(start)

		if err == nil {
			c.logger.Debug().
				Str("operation", operation).
				Str("url", url).
				Dur("latency", latency).
				Msg("operation completed")
			return nil
		}

		c.logger.Warn().
			Str("operation", operation).
			Str("url", url).
			Dur("latency", latency).
			Err(err).
			Msg("operation failed, trying next endpoint")
		lastErr = err

		c.mu.Lock()
		if cached, ok := c.clients[url]; ok {
			cached.Close()
			delete(c.clients, url)
		}
		c.mu.Unlock()
	}
	return engerr.NewOracleError("all endpoints failed for "+operation, lastErr)
}

// ReadNonce calls readNonce(space) on the wallet contract.
func (c *Client) ReadNonce(ctx context.Context, wallet common.Address, space *big.Int) (*big.Int, error) {
	input, err := c.abi.Pack("readNonce", space)
	if err != nil {
		return nil, engerr.NewOracleError("failed to encode readNonce call", err)
	}

	var output []byte
	err = c.executeWithFailover(ctx, "read_nonce", func(client *ethclient.Client) error {
		var callErr error
		output, callErr = client.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: input}, nil)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	results, err := c.abi.Unpack("readNonce", output)
	if err != nil || len(results) != 1 {
		return nil, engerr.NewOracleError("failed to decode readNonce result", err)
	}
	nonce, ok := results[0].(*big.Int)
	if !ok {
		return nil, engerr.NewOracleError("unexpected readNonce result type", nil)
	}
	return nonce, nil
}

// Bytecode returns the code deployed at the wallet address.
func (c *Client) Bytecode(ctx context.Context, wallet common.Address) ([]byte, error) {
	var code []byte
	err := c.executeWithFailover(ctx, "get_code", func(client *ethclient.Client) error {
		var callErr error
		code, callErr = client.CodeAt(ctx, wallet, nil)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// LatestBlock returns the current chain head number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.executeWithFailover(ctx, "block_number", func(client *ethclient.Client) error {
		var callErr error
		number, callErr = client.BlockNumber(ctx)
		return callErr
	})
	if err != nil {
		return 0, err
	}
	return number, nil
}

// FilterWalletLogs returns the wallet's logs for one event topic and one
// subdigest within a block range.
func (c *Client) FilterWalletLogs(ctx context.Context, wallet common.Address, eventTopic, subdigest common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{wallet},
		Topics: [][]common.Hash{
			{eventTopic},
			{subdigest},
		},
	}

	var logs []types.Log
	err := c.executeWithFailover(ctx, "filter_logs", func(client *ethclient.Client) error {
		var callErr error
		logs, callErr = client.FilterLogs(ctx, query)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}
