package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultFrankfurterURL is the public Frankfurter API.
const DefaultFrankfurterURL = "https://api.frankfurter.app"

const frankfurterRetries = 2

// FrankfurterSource fetches the latest ECB reference rates from Frankfurter.
type FrankfurterSource struct {
	baseURL    string
	httpClient *http.Client
	backoff    func() backoff.BackOff
}

type frankfurterResponse struct {
	Base  string                 `json:"base"`
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

// statusError marks a non-200 reply. 5xx replies are retried.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("exchange API returned status %d", e.code)
}

// NewFrankfurterSource creates a source for baseURL, or the public API when empty.
func NewFrankfurterSource(baseURL string, timeout time.Duration) *FrankfurterSource {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = DefaultFrankfurterURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &FrankfurterSource{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// Rate returns the latest rate from one currency to another.
func (c *FrankfurterSource) Rate(ctx context.Context, fromCurrency, toCurrency string) (Rate, error) {
	from, to, err := pair(fromCurrency, toCurrency)
	if err != nil {
		return Rate{}, err
	}
	if from == to {
		return Identity, nil
	}

	endpoint := fmt.Sprintf("%s/latest?from=%s&to=%s", c.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	payload, err := backoff.Retry(ctx, func() (*frankfurterResponse, error) {
		p, err := c.fetch(ctx, endpoint)
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return p, err
	},
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(frankfurterRetries+1),
	)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %s->%s: %w", ErrRateUnavailable, from, to, err)
	}

	raw, ok := payload.Rates[to]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s missing in response", ErrRateUnavailable, to)
	}
	value, err := decimal.NewFromString(raw.String())
	if err != nil {
		return Rate{}, fmt.Errorf("failed to parse conversion rate: %w", err)
	}
	if !value.IsPositive() {
		return Rate{}, fmt.Errorf("%w: non-positive rate %s", ErrRateUnavailable, value)
	}

	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return Rate{}, fmt.Errorf("failed to parse conversion date: %w", err)
	}

	return Rate{Value: value, Date: date}, nil
}

func (c *FrankfurterSource) fetch(ctx context.Context, endpoint string) (*frankfurterResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create rate request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("failed to request rate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload frankfurterResponse
	if err := decoder.Decode(&payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode rate response: %w", err))
	}
	return &payload, nil
}
