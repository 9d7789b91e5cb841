// Package onchain reads reference prices from on-chain oracles. The price
// is contextual: it is logged and reported, never used for decisions.
package onchain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// ErrStale is returned when the feed's last update is older than MaxAge.
var ErrStale = errors.New("onchain: stale round")

const aggregatorV3ABI = `[
	{
		"inputs": [],
		"name": "latestRoundData",
		"outputs": [
			{"name": "roundId", "type": "uint80"},
			{"name": "answer", "type": "int256"},
			{"name": "startedAt", "type": "uint256"},
			{"name": "updatedAt", "type": "uint256"},
			{"name": "answeredInRound", "type": "uint80"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// FeedABI parses the AggregatorV3 subset used by ChainlinkFeed.
func FeedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(aggregatorV3ABI))
}

// ChainlinkFeed reads an AggregatorV3 price feed.
type ChainlinkFeed struct {
	caller  ethereum.ContractCaller
	address common.Address
	abi     abi.ABI
	maxAge  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	decimals *uint8
}

// NewChainlinkFeed builds a feed reader for the contract at address.
// maxAge of zero disables the staleness check.
func NewChainlinkFeed(caller ethereum.ContractCaller, address common.Address, maxAge time.Duration) (*ChainlinkFeed, error) {
	parsed, err := FeedABI()
	if err != nil {
		return nil, fmt.Errorf("onchain: parse abi: %w", err)
	}
	return &ChainlinkFeed{
		caller:  caller,
		address: address,
		abi:     parsed,
		maxAge:  maxAge,
		now:     time.Now,
	}, nil
}

// Dial connects to an RPC endpoint and returns a feed reader plus the
// client's Close func.
func Dial(ctx context.Context, rpcURL, feedAddress string, maxAge time.Duration) (*ChainlinkFeed, func(), error) {
	if !common.IsHexAddress(feedAddress) {
		return nil, nil, fmt.Errorf("onchain: invalid feed address %q", feedAddress)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("onchain: dial: %w", err)
	}
	feed, err := NewChainlinkFeed(client, common.HexToAddress(feedAddress), maxAge)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return feed, client.Close, nil
}

// LatestPrice returns answer / 10^decimals for the latest round.
func (f *ChainlinkFeed) LatestPrice(ctx context.Context) (float64, error) {
	dec, err := f.feedDecimals(ctx)
	if err != nil {
		return 0, err
	}
	out, err := f.call(ctx, "latestRoundData")
	if err != nil {
		return 0, err
	}
	// (roundId, answer, startedAt, updatedAt, answeredInRound)
	answer, ok := out[1].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("onchain: unexpected answer type %T", out[1])
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("onchain: unexpected updatedAt type %T", out[3])
	}
	if answer.Sign() <= 0 {
		return 0, fmt.Errorf("onchain: non-positive answer %s", answer)
	}
	if updatedAt.Sign() == 0 {
		return 0, fmt.Errorf("onchain: round not complete")
	}
	if f.maxAge > 0 {
		age := f.now().Sub(time.Unix(updatedAt.Int64(), 0))
		if age > f.maxAge {
			return 0, fmt.Errorf("%w: updated %s ago", ErrStale, age.Round(time.Second))
		}
	}
	return scale(answer, int(dec)), nil
}

func (f *ChainlinkFeed) feedDecimals(ctx context.Context) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decimals != nil {
		return *f.decimals, nil
	}
	out, err := f.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("onchain: unexpected decimals type %T", out[0])
	}
	f.decimals = &dec
	return dec, nil
}

func (f *ChainlinkFeed) call(ctx context.Context, method string) ([]any, error) {
	data, err := f.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("onchain: pack %s: %w", method, err)
	}
	raw, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("onchain: call %s: %w", method, err)
	}
	out, err := f.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("onchain: unpack %s: %w", method, err)
	}
	return out, nil
}

func scale(raw *big.Int, decimals int) float64 {
	v := new(big.Float).SetInt(raw)
	v.Quo(v, new(big.Float).SetFloat64(math.Pow10(decimals)))
	out, _ := v.Float64()
	return out
}

var _ domain.OnchainDataProvider = (*ChainlinkFeed)(nil)
