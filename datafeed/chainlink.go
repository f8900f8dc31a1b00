package datafeed

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CHAINLINK PRICE FEED - On-chain reference prices on Polygon
// ═══════════════════════════════════════════════════════════════════════════════
//
// Reads latestRoundData() from the aggregator contracts. Useful as a venue-
// independent price source; 24h statistics are not available on-chain so only
// the last price is populated.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	polygonRPC = "https://polygon-rpc.com"

	// latestRoundData() selector
	latestRoundDataSelector = "feaf968c"

	// Rounds older than this are considered stale.
	chainlinkStaleAfter = 30 * time.Minute
)

// feedAddresses maps base assets to their USD aggregators on Polygon.
var feedAddresses = map[string]struct {
	Address  string
	Decimals int32
}{
	"BTC": {Address: "0xc907E116054Ad103354f2D350FD2514433D57F6f", Decimals: 8},
	"ETH": {Address: "0xF9680D99D6C9589e2a93a78A04A279e509205945", Decimals: 8},
	"SOL": {Address: "0x10C8264C0935b3B9870013e057f330Ff3e9C56dC", Decimals: 8},
}

// ChainlinkFeed is a PriceSource reading Chainlink aggregators.
type ChainlinkFeed struct {
	client *ethclient.Client
}

// NewChainlinkFeed dials the Polygon RPC endpoint.
func NewChainlinkFeed() (*ChainlinkFeed, error) {
	return NewChainlinkFeedWithRPC(polygonRPC)
}

// NewChainlinkFeedWithRPC dials a custom RPC endpoint.
func NewChainlinkFeedWithRPC(rpcURL string) (*ChainlinkFeed, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	log.Info().Str("rpc", rpcURL).Msg("⛓️ Chainlink feed connected")
	return &ChainlinkFeed{client: client}, nil
}

// Close releases the RPC connection.
func (c *ChainlinkFeed) Close() {
	c.client.Close()
}

// LastPrice reads the latest round for the symbol's base asset.
func (c *ChainlinkFeed) LastPrice(ctx context.Context, symbol string) (types.TickerStats, error) {
	asset := baseAsset(symbol)
	feed, ok := feedAddresses[asset]
	if !ok {
		return types.TickerStats{}, fmt.Errorf("no chainlink feed for %s", asset)
	}

	addr := common.HexToAddress(feed.Address)
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &addr,
		Data: common.Hex2Bytes(latestRoundDataSelector),
	}, nil)
	if err != nil {
		return types.TickerStats{}, fmt.Errorf("latestRoundData for %s: %w", asset, err)
	}

	// (roundId, int256 answer, startedAt, updatedAt, answeredInRound)
	if len(out) < 160 {
		return types.TickerStats{}, fmt.Errorf("short response (%d bytes) for %s", len(out), asset)
	}

	answer := new(big.Int).SetBytes(out[32:64])
	updatedAt := new(big.Int).SetBytes(out[96:128])

	updated := time.Unix(updatedAt.Int64(), 0)
	if time.Since(updated) > chainlinkStaleAfter {
		return types.TickerStats{}, fmt.Errorf("round for %s is stale (updated %s)", asset, updated)
	}

	return types.TickerStats{
		Symbol: symbol,
		Last:   decimal.NewFromBigInt(answer, -feed.Decimals),
	}, nil
}

// baseAsset extracts "BTC" from "BTC/USDT" or "BTCUSDT".
func baseAsset(symbol string) string {
	if i := strings.Index(symbol, "/"); i > 0 {
		return strings.ToUpper(symbol[:i])
	}
	upper := strings.ToUpper(symbol)
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if cut, ok := strings.CutSuffix(upper, quote); ok && cut != "" {
			return cut
		}
	}
	return upper
}
