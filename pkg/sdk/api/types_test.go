package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	sdkhttp "github.com/betbot/copybot/pkg/sdk/http"
)

func TestNumericUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{`"0.42"`, 0.42},
		{`0.42`, 0.42},
		{`""`, 0},
		{`null`, 0},
		{`"500"`, 500},
	}
	for _, c := range cases {
		var n Numeric
		if err := json.Unmarshal([]byte(c.in), &n); err != nil {
			t.Fatalf("unmarshal %s: %v", c.in, err)
		}
		if n.Float64() != c.want {
			t.Fatalf("%s: expected %v, got %v", c.in, c.want, n.Float64())
		}
	}
}

func TestGammaMarketOutcomePrice(t *testing.T) {
	m := GammaMarket{
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.42","0.58"]`,
	}

	price, ok := m.OutcomePrice("Yes")
	if !ok || price != 0.42 {
		t.Fatalf("Yes: expected 0.42, got %v ok=%v", price, ok)
	}
	price, ok = m.OutcomePrice("no")
	if !ok || price != 0.58 {
		t.Fatalf("no (case-insensitive): expected 0.58, got %v ok=%v", price, ok)
	}
	if _, ok := m.OutcomePrice("Maybe"); ok {
		t.Fatal("expected missing outcome to report ok=false")
	}

	malformed := GammaMarket{Outcomes: `["Yes"]`, OutcomePrices: `["0.1","0.9"]`}
	if _, ok := malformed.OutcomePrice("Yes"); ok {
		t.Fatal("expected length mismatch to report ok=false")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&TransientError{Err: fmt.Errorf("x")}, true},
		{&DataError{Err: fmt.Errorf("x")}, false},
		{&sdkhttp.StatusError{Code: 429, Err: fmt.Errorf("rate limited")}, true},
		{&sdkhttp.StatusError{Code: 503, Err: fmt.Errorf("unavailable")}, true},
		{&sdkhttp.StatusError{Code: 404, Err: fmt.Errorf("not found")}, false},
		{context.DeadlineExceeded, true},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Fatalf("IsTransient(%v): expected %v, got %v", c.err, c.want, got)
		}
	}
}
