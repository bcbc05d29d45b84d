package stock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/garden-tender/telemetry"
)

const (
	DefaultBaseURL = "https://growagarden.gg"
	DefaultTimeout = 15 * time.Second

	StockPath   = "/api/ws/stocks.getAll"
	WeatherPath = "/api/v1/weather/gag"

	// Upper bound on a response body; the full stock payload is a few KB.
	maxBodyBytes = 1 << 20
)

const (
	endpointStock   = "stock"
	endpointWeather = "weather"
)

// Options configures a Fetcher. Zero values pick the defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Logger  *slog.Logger
	// HTTPClient overrides the retrying client; tests use it to tune waits.
	HTTPClient *retryablehttp.Client
}

// Fetcher reads the stock and weather endpoints. It is safe for concurrent use.
type Fetcher struct {
	base    *url.URL
	timeout time.Duration
	client  *retryablehttp.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewFetcher validates the base URL and builds the retrying HTTP client.
func NewFetcher(opts Options) (*Fetcher, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid stock api base url %q", raw)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := opts.HTTPClient
	if client == nil {
		client = retryablehttp.NewClient()
		client.RetryMax = max(opts.Retries, 0)
		client.RetryWaitMin = 500 * time.Millisecond
		client.RetryWaitMax = 3 * time.Second
		client.HTTPClient.Timeout = timeout
		client.Logger = logger.With(slog.String("component", "stock_http"))
	}
	// Surface the last response instead of retryablehttp's generic give-up error.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Fetcher{base: base, timeout: timeout, client: client, logger: logger, now: time.Now}, nil
}

// Fetch reads stock and weather concurrently. A transport failure on either
// read fails the whole fetch with ErrTransport; a malformed stock body fails
// with ErrInvalidShape. A malformed weather body only degrades to defaults.
func (f *Fetcher) Fetch(ctx context.Context) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.fetch")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var (
		stockBody   []byte
		weatherBody []byte
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := f.get(gctx, endpointStock, StockPath, stockQuery())
		stockBody = b
		return err
	})
	g.Go(func() error {
		b, err := f.get(gctx, endpointWeather, WeatherPath, nil)
		weatherBody = b
		return err
	})
	err := g.Wait()
	if telemetry.FetchDuration != nil {
		telemetry.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	snap, err := parseStock(stockBody)
	if err != nil {
		telemetry.ObserveFetch(endpointStock, KindInvalidShape.String())
		ferr := &FetchError{Kind: KindInvalidShape, Endpoint: endpointStock, Err: err}
		telemetry.RecordError(span, ferr)
		return nil, ferr
	}
	telemetry.ObserveFetch(endpointStock, "ok")
	telemetry.ObserveFetch(endpointWeather, "ok")

	res := &Result{Stock: snap, Weather: parseWeather(weatherBody)}
	f.logger.Debug("stock fetched",
		slog.Int("items", snap.TotalItems()),
		slog.String("weather", res.Weather.Condition))
	telemetry.SetSpanSuccess(span)
	return res, nil
}

func stockQuery() url.Values {
	q := url.Values{}
	q.Set("batch", "1")
	q.Set("input", `{"0":{"json":null,"meta":{"values":["undefined"]}}}`)
	return q
}

// get issues one cache-busted GET and returns the body of a 2xx response.
func (f *Fetcher) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	u := *f.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q == nil {
		q = url.Values{}
	}
	nonce := uuid.NewString()
	q.Set("_cb", strconv.FormatInt(f.now().UnixMilli(), 10)+"-"+nonce[:8])
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, f.transportErr(endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("X-Request-Nonce", nonce)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.transportErr(endpoint, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", slog.Any("err", cerr))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, f.transportErr(endpoint, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, f.transportErr(endpoint, err)
	}
	return body, nil
}

func (f *Fetcher) transportErr(endpoint string, err error) error {
	telemetry.ObserveFetch(endpoint, KindTransport.String())
	if errors.Is(err, context.Canceled) {
		f.logger.Debug("stock read canceled", slog.String("endpoint", endpoint))
	} else {
		f.logger.Warn("stock read failed", slog.String("endpoint", endpoint), slog.Any("err", err))
	}
	return &FetchError{Kind: KindTransport, Endpoint: endpoint, Err: err}
}
