package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/betbot/copybot/internal/domain"
)

// MockMarketData is a mock market data source for testing
type MockMarketData struct {
	mu sync.RWMutex

	// Response data
	Positions map[string]map[domain.PositionKey]float64 // trader -> key -> size
	Prices    map[domain.PositionKey]float64

	// Call tracking
	Calls map[string]int

	// Error injection
	ErrorOnNext map[string]error
}

// NewMockMarketData creates a new mock market data source
func NewMockMarketData() *MockMarketData {
	return &MockMarketData{
		Positions:   make(map[string]map[domain.PositionKey]float64),
		Prices:      make(map[domain.PositionKey]float64),
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
	}
}

func (m *MockMarketData) trackCall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

// SetPositions replaces one trader's holdings
func (m *MockMarketData) SetPositions(trader string, sizes map[domain.PositionKey]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Positions[trader] = sizes
}

// SetPrice sets the price for a (market, outcome)
func (m *MockMarketData) SetPrice(key domain.PositionKey, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prices[key] = price
}

// CallCount returns how many times a method was invoked
func (m *MockMarketData) CallCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[name]
}

func (m *MockMarketData) TraderPositions(ctx context.Context, address string) (domain.TraderSnapshot, error) {
	if err := m.trackCall("TraderPositions"); err != nil {
		return domain.TraderSnapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := domain.NewTraderSnapshot(address, time.Now())
	for key, size := range m.Positions[address] {
		if size == 0 {
			continue
		}
		snap.Positions[key] = domain.SnapshotEntry{Size: size}
	}
	return snap, nil
}

func (m *MockMarketData) MarketPrice(ctx context.Context, marketID, outcome string) (float64, error) {
	if err := m.trackCall("MarketPrice"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.Prices[domain.PositionKey{MarketID: marketID, Outcome: outcome}]
	if !ok {
		return 0, &DataError{Err: fmt.Errorf("no price for %s/%s", marketID, outcome)}
	}
	return price, nil
}
