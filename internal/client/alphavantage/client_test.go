package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caesar-quant/caesar/internal/model"
)

const intradayBody = `{
	"Meta Data": {
		"1. Information": "Intraday (5min) open, high, low, close prices and volume",
		"2. Symbol": "AAPL"
	},
	"Time Series (5min)": {
		"2024-03-01 09:35:00": {
			"1. open": "180.10",
			"2. high": "180.50",
			"3. low": "179.90",
			"4. close": "180.40",
			"5. volume": "120000"
		},
		"2024-03-01 09:30:00": {
			"1. open": "179.80",
			"2. high": "180.20",
			"3. low": "179.60",
			"4. close": "180.10",
			"5. volume": "250000"
		}
	}
}`

func newTestClient(url string) *Client {
	c := NewClient(ClientOptions{
		APIKey:         "test-key",
		BaseURL:        url,
		RequestTimeout: 5 * time.Second,
		RequestsPerMin: 6000,
	})
	return c
}

func TestGetCandlesIntraday(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"function": r.URL.Query().Get("function"),
			"interval": r.URL.Query().Get("interval"),
			"symbol":   r.URL.Query().Get("symbol"),
		}
		w.Write([]byte(intradayBody))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	candles, err := client.GetCandles(context.Background(), "AAPL", model.Level5Minute)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}

	if gotQuery["function"] != "TIME_SERIES_INTRADAY" {
		t.Errorf("function = %q, want TIME_SERIES_INTRADAY", gotQuery["function"])
	}
	if gotQuery["interval"] != "5min" {
		t.Errorf("interval = %q, want 5min", gotQuery["interval"])
	}

	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	// Oldest first.
	if !candles[0].Timestamp.Before(candles[1].Timestamp) {
		t.Errorf("candles not sorted oldest first: %v, %v", candles[0].Timestamp, candles[1].Timestamp)
	}
	if candles[0].Close != 180.10 {
		t.Errorf("first close = %v, want 180.10", candles[0].Close)
	}
	if candles[0].Volume != 250000 {
		t.Errorf("first volume = %v, want 250000", candles[0].Volume)
	}
}

func TestGetCandlesDailyFunction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "TIME_SERIES_DAILY" {
			t.Errorf("function = %q, want TIME_SERIES_DAILY", got)
		}
		if r.URL.Query().Get("interval") != "" {
			t.Error("daily request should not carry an interval")
		}
		w.Write([]byte(`{
			"Time Series (Daily)": {
				"2024-03-01": {
					"1. open": "100", "2. high": "101", "3. low": "99",
					"4. close": "100.5", "5. volume": "1000"
				}
			}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	candles, err := client.GetCandles(context.Background(), "AAPL", model.Level1Day)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	if candles[0].Timestamp.Hour() != 0 {
		t.Errorf("daily timestamp should have no time component, got %v", candles[0].Timestamp)
	}
}

func TestGetCandlesAPIError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error message", `{"Error Message": "Invalid API call."}`},
		{"rate limit note", `{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 5 requests per minute."}`},
		{"empty series", `{"Meta Data": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := newTestClient(srv.URL)
			if _, err := client.GetCandles(context.Background(), "AAPL", model.Level5Minute); err == nil {
				t.Error("GetCandles() expected error, got nil")
			}
		})
	}
}
