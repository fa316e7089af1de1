package api

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/copybot/internal/domain"
	"github.com/betbot/copybot/pkg/cache"
	"github.com/betbot/copybot/pkg/ratelimit"
)

// MarketData adapts the raw API client to the snapshot/price view the
// scan engine consumes. Per-endpoint rate limiters keep parallel
// trader fetches under the public API limits; market lookups are
// cached briefly so Yes/No price reads of one market cost one request.
type MarketData struct {
	client   *Client
	limiters *ratelimit.RateLimitManager
	markets  *cache.InMemoryCache[string, *GammaMarket]
}

const marketCacheTTL = 10 * time.Second

// NewMarketData wraps a client with rate limiting.
func NewMarketData(client *Client, limiters *ratelimit.RateLimitManager) *MarketData {
	if limiters == nil {
		limiters = ratelimit.NewRateLimitManager()
	}
	return &MarketData{
		client:   client,
		limiters: limiters,
		markets:  cache.NewInMemoryCache[string, *GammaMarket](marketCacheTTL),
	}
}

// TraderPositions fetches and validates a trader's holdings as one
// snapshot. Malformed entries fail the whole snapshot: acting on a
// partially valid snapshot would produce phantom position deltas.
func (m *MarketData) TraderPositions(ctx context.Context, address string) (domain.TraderSnapshot, error) {
	if err := m.limiters.Wait(ctx, "data:positions:get"); err != nil {
		return domain.TraderSnapshot{}, err
	}

	positions, err := m.client.GetOpenPositions(ctx, address)
	if err != nil {
		return domain.TraderSnapshot{}, err
	}

	snap := domain.NewTraderSnapshot(address, time.Now())
	for _, p := range positions {
		if p.ConditionID == "" || p.Outcome == "" {
			return domain.TraderSnapshot{}, &DataError{
				Err: fmt.Errorf("position for %s missing market or outcome", address),
			}
		}
		if p.Size.Float64() < 0 {
			return domain.TraderSnapshot{}, &DataError{
				Err: fmt.Errorf("negative size %.4f for %s %s/%s", p.Size.Float64(), address, p.ConditionID, p.Outcome),
			}
		}
		if p.Size.Float64() == 0 {
			continue
		}
		key := domain.PositionKey{MarketID: p.ConditionID, Outcome: p.Outcome}
		entry := snap.Positions[key]
		// Same key can appear more than once (rare); sizes accumulate.
		entry.Size += p.Size.Float64()
		entry.AvgEntryPrice = p.AvgPrice.Float64()
		if p.Title != "" {
			entry.Title = p.Title
		}
		snap.Positions[key] = entry
	}
	return snap, nil
}

// MarketPrice returns the current price of one outcome.
func (m *MarketData) MarketPrice(ctx context.Context, marketID, outcome string) (float64, error) {
	market, ok := m.markets.Get(marketID)
	if !ok {
		if err := m.limiters.Wait(ctx, "gamma:markets:get"); err != nil {
			return 0, err
		}
		fetched, err := m.client.GetMarket(ctx, marketID)
		if err != nil {
			return 0, err
		}
		m.markets.Set(marketID, fetched, 0)
		market = fetched
	}
	price, ok := market.OutcomePrice(outcome)
	if !ok {
		return 0, &DataError{Err: fmt.Errorf("market %s has no price for outcome %q", marketID, outcome)}
	}
	if price < 0 || price > 1 {
		return 0, &DataError{Err: fmt.Errorf("market %s outcome %q price %.6f out of range", marketID, outcome, price)}
	}
	return price, nil
}
