package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Numeric handles Polymarket numbers that may arrive as strings or numbers.
type Numeric float64

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || strings.EqualFold(string(data), "null") {
		*n = 0
		return nil
	}

	// Handle quoted numbers.
	if data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Numeric(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Numeric(f)
	return nil
}

func (n Numeric) Float64() float64 {
	return float64(n)
}

// OpenPosition represents an open position (current holdings) for a user,
// as returned by the data API /positions endpoint.
type OpenPosition struct {
	Asset        string  `json:"asset"` // Token ID
	ConditionID  string  `json:"conditionId"`
	Size         Numeric `json:"size"`     // Number of tokens held
	AvgPrice     Numeric `json:"avgPrice"` // Average purchase price
	CurPrice     Numeric `json:"curPrice"` // Current market price
	RealizedPNL  Numeric `json:"realizedPnl"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
	EventSlug    string  `json:"eventSlug"`
	ProxyWallet  string  `json:"proxyWallet"`
}

// GammaMarket represents a market returned by the gamma API.
// Outcomes and OutcomePrices arrive as JSON-encoded string arrays.
type GammaMarket struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	ConditionID   string  `json:"conditionId"`
	Slug          string  `json:"slug"`
	Volume        Numeric `json:"volumeNum"`
	Liquidity     Numeric `json:"liquidityNum"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	Outcomes      string  `json:"outcomes"`
	OutcomePrices string  `json:"outcomePrices"`
}

// OutcomePrice extracts the price of one outcome from the doubly-encoded
// outcomes / outcomePrices fields. Returns false when the outcome is
// missing or the arrays are malformed.
func (m *GammaMarket) OutcomePrice(outcome string) (float64, bool) {
	var outcomes []string
	var prices []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return 0, false
	}
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil {
		return 0, false
	}
	if len(outcomes) != len(prices) {
		return 0, false
	}
	for i, o := range outcomes {
		if strings.EqualFold(o, outcome) {
			f, err := strconv.ParseFloat(prices[i], 64)
			if err != nil {
				return 0, false
			}
			return f, true
		}
	}
	return 0, false
}
