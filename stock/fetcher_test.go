package stock

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/onnwee/garden-tender/testutil"
)

func newTestFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	f, err := NewFetcher(Options{BaseURL: baseURL, Timeout: 2 * time.Second, HTTPClient: client})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func TestNewFetcherRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"not a url", "/relative", "://missing"} {
		if _, err := NewFetcher(Options{BaseURL: raw}); err == nil {
			t.Errorf("NewFetcher(%q) succeeded", raw)
		}
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := testutil.NewMockStockServer(t)
	srv.MockStockResponse(StockPath, testutil.StockPayload{
		GearStock:  []testutil.StockItem{{Name: "Trowel", Value: 2}},
		SeedsStock: []testutil.StockItem{{Name: "Carrot", Value: 14}},
	})
	srv.MockWeatherResponse(WeatherPath, map[string]interface{}{"currentWeather": "Rain", "cropBonuses": "Wet", "icon": "🌧️"})

	res, err := newTestFetcher(t, srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Stock.Gear) != 1 || res.Stock.Gear[0].Name != "Trowel" {
		t.Errorf("gear = %+v", res.Stock.Gear)
	}
	if res.Weather.Condition != "Rain" || res.Weather.Bonus != "Wet" {
		t.Errorf("weather = %+v", res.Weather)
	}
}

func TestFetchSendsCacheBusting(t *testing.T) {
	srv := testutil.NewMockStockServer(t)
	srv.MockStockResponse(StockPath, testutil.StockPayload{})
	srv.MockWeatherResponse(WeatherPath, map[string]interface{}{})

	f := newTestFetcher(t, srv.URL)
	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}

	seen := map[string]bool{}
	for _, r := range srv.Requests() {
		cb := r.URL.Query().Get("_cb")
		if cb == "" || !strings.Contains(cb, "-") {
			t.Errorf("%s: missing or malformed _cb %q", r.URL.Path, cb)
		}
		if seen[cb] {
			t.Errorf("cache-busting token reused: %s", cb)
		}
		seen[cb] = true
		if r.Header.Get("Pragma") != "no-cache" || !strings.Contains(r.Header.Get("Cache-Control"), "no-cache") {
			t.Errorf("%s: missing no-cache headers", r.URL.Path)
		}
		if r.Header.Get("X-Request-Nonce") == "" {
			t.Errorf("%s: missing nonce header", r.URL.Path)
		}
		if r.URL.Path == StockPath && r.URL.Query().Get("batch") != "1" {
			t.Errorf("stock request missing batch=1: %s", r.URL.RawQuery)
		}
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 requests, got %d", len(seen))
	}
}

func TestFetchMissingWeatherFieldsDegrade(t *testing.T) {
	srv := testutil.NewMockStockServer(t)
	srv.MockStockResponse(StockPath, testutil.StockPayload{})
	srv.MockRawResponse(WeatherPath, http.StatusOK, `{"unrelated":true}`)

	res, err := newTestFetcher(t, srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := Weather{Condition: UnknownCondition, Bonus: NoBonus, Icon: DefaultIcon}
	if res.Weather != want {
		t.Errorf("weather = %+v, want %+v", res.Weather, want)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*testutil.MockStockServer)
		wantKind ErrorKind
		sentinel error
	}{
		{
			name: "stock 500",
			setup: func(m *testutil.MockStockServer) {
				m.MockRawResponse(StockPath, http.StatusInternalServerError, `{}`)
				m.MockWeatherResponse(WeatherPath, map[string]interface{}{})
			},
			wantKind: KindTransport,
			sentinel: ErrTransport,
		},
		{
			name: "weather 404",
			setup: func(m *testutil.MockStockServer) {
				m.MockStockResponse(StockPath, testutil.StockPayload{})
			},
			wantKind: KindTransport,
			sentinel: ErrTransport,
		},
		{
			name: "stock wrong shape",
			setup: func(m *testutil.MockStockServer) {
				m.MockRawResponse(StockPath, http.StatusOK, `[{"result":{}}]`)
				m.MockWeatherResponse(WeatherPath, map[string]interface{}{})
			},
			wantKind: KindInvalidShape,
			sentinel: ErrInvalidShape,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewMockStockServer(t)
			tt.setup(srv)

			res, err := newTestFetcher(t, srv.URL).Fetch(context.Background())
			if err == nil {
				t.Fatalf("expected error, got %+v", res)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("err = %v, want %v", err, tt.sentinel)
			}
			if Classify(err) != tt.wantKind {
				t.Errorf("Classify = %v, want %v", Classify(err), tt.wantKind)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := testutil.NewMockStockServer(t)
	srv.Handle(StockPath, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv.MockWeatherResponse(WeatherPath, map[string]interface{}{})

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	f, err := NewFetcher(Options{BaseURL: srv.URL, Timeout: 100 * time.Millisecond, HTTPClient: client})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Fetch(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}
