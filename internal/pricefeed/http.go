package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// HTTPFeed fetches the SOL/USD price from a JSON price endpoint shaped
// like the Coingecko simple-price API:
//
//	{"solana": {"usd": 147.32}}
type HTTPFeed struct {
	client *resty.Client
	url    string
}

// NewHTTPFeed creates a feed against the given endpoint URL.
func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPFeed{client: client, url: url}
}

var _ Feed = (*HTTPFeed)(nil)

type priceResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

// SolPrice fetches the current price, retrying transient failures with
// exponential backoff until the context expires or attempts run out.
func (f *HTTPFeed) SolPrice(ctx context.Context) (decimal.Decimal, error) {
	var price decimal.Decimal

	operation := func() error {
		var body priceResponse
		resp, err := f.client.R().
			SetContext(ctx).
			SetResult(&body).
			Get(f.url)
		if err != nil {
			return fmt.Errorf("fetch sol price: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("fetch sol price: status %d", resp.StatusCode())
		}
		if body.Solana.USD <= 0 {
			return backoff.Permanent(fmt.Errorf("fetch sol price: non-positive price %f", body.Solana.USD))
		}

		price = decimal.NewFromFloat(body.Solana.USD)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return decimal.Zero, err
	}

	return price, nil
}
