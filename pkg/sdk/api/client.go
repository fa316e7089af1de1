package api

import (
	"context"
	"fmt"

	sdkhttp "github.com/betbot/copybot/pkg/sdk/http"
)

// Client handles Polymarket API interactions: data API for trader
// positions, gamma API for market prices. Read-only, no auth needed.
type Client struct {
	data  *sdkhttp.Client
	gamma *sdkhttp.Client
}

const (
	DefaultDataAPIURL  = "https://data-api.polymarket.com"
	DefaultGammaAPIURL = "https://gamma-api.polymarket.com"
)

// NewClient creates a new Polymarket API client.
func NewClient(dataBaseURL, gammaBaseURL string) *Client {
	if dataBaseURL == "" {
		dataBaseURL = DefaultDataAPIURL
	}
	if gammaBaseURL == "" {
		gammaBaseURL = DefaultGammaAPIURL
	}
	return &Client{
		data:  sdkhttp.NewClient(dataBaseURL),
		gamma: sdkhttp.NewClient(gammaBaseURL),
	}
}

// GetOpenPositions returns the current holdings of a user wallet.
func (c *Client) GetOpenPositions(ctx context.Context, userAddress string) ([]OpenPosition, error) {
	if userAddress == "" {
		return nil, fmt.Errorf("user address is required for open positions")
	}

	var positions []OpenPosition
	resp, err := c.data.Get(ctx, "/positions", &sdkhttp.RequestOptions{
		Params: map[string]any{"user": userAddress},
	}, &positions)
	if err := sdkhttp.ParseHTTPError(resp, err); err != nil {
		return nil, classify(err)
	}
	return positions, nil
}

// GetMarket fetches one market from the gamma API by condition id.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*GammaMarket, error) {
	if conditionID == "" {
		return nil, fmt.Errorf("condition id is required")
	}

	var markets []GammaMarket
	resp, err := c.gamma.Get(ctx, "/markets", &sdkhttp.RequestOptions{
		Params: map[string]any{"condition_ids": conditionID},
	}, &markets)
	if err := sdkhttp.ParseHTTPError(resp, err); err != nil {
		return nil, classify(err)
	}
	if len(markets) == 0 {
		return nil, &DataError{Err: fmt.Errorf("market %s not found", conditionID)}
	}
	return &markets[0], nil
}
