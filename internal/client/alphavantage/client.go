package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/model"
	httpClient "github.com/caesar-quant/caesar/internal/platform/http"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// Client is the Alpha Vantage API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Alpha Vantage client.
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerMin  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new Alpha Vantage API client.
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey: opts.APIKey,
		baseURL: baseURL,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:         opts.RequestTimeout,
			RequestsPerMin:  opts.RequestsPerMin,
			MaxRetryTimeout: opts.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "alphavantage_client").Logger(),
	}
}

// GetCandles fetches candles for a symbol at a minute level. Intraday levels
// use TIME_SERIES_INTRADAY, the daily level uses TIME_SERIES_DAILY.
func (c *Client) GetCandles(ctx context.Context, symbol string, level model.MinuteLevel) ([]model.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("outputsize", "full")
	params.Set("datatype", "json")
	params.Set("apikey", c.apiKey)
	if level.Intraday() {
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", level.Interval())
		params.Set("extended_hours", "false")
	} else {
		params.Set("function", "TIME_SERIES_DAILY")
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("level", string(level)).
		Msg("Fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	candles, err := parseTimeSeries(body, level)
	if err != nil {
		c.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to parse Alpha Vantage response")
		return nil, err
	}

	c.logger.Debug().Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// envelope captures the metadata Alpha Vantage may attach to any response.
// The time series itself lives under a function-dependent key, so the raw
// object is walked separately.
type envelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// bar is a single entry in the "Time Series (...)" object. Alpha Vantage
// returns every numeric field as a string.
type bar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func parseTimeSeries(body []byte, level model.MinuteLevel) ([]model.Candle, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if env.ErrorMessage != "" {
		return nil, fmt.Errorf("alpha vantage error: %s", env.ErrorMessage)
	}
	// Rate-limit exhaustion comes back as a 200 with a Note/Information field
	// and no series data.
	if env.Note != "" {
		return nil, fmt.Errorf("alpha vantage throttled: %s", env.Note)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	var series map[string]bar
	for key, val := range raw {
		if !strings.HasPrefix(key, "Time Series") {
			continue
		}
		if err := json.Unmarshal(val, &series); err != nil {
			return nil, fmt.Errorf("parsing time series: %w", err)
		}
		break
	}
	if series == nil {
		if env.Information != "" {
			return nil, fmt.Errorf("alpha vantage: %s", env.Information)
		}
		return nil, fmt.Errorf("no time series data in response")
	}

	layout := "2006-01-02 15:04:05"
	if !level.Intraday() {
		layout = "2006-01-02"
	}

	candles := make([]model.Candle, 0, len(series))
	for ts, b := range series {
		candle, err := b.toCandle(ts, layout)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	// Oldest first for proper indicator calculations.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	if len(candles) == 0 {
		return nil, fmt.Errorf("empty data returned")
	}
	return candles, nil
}

func (b bar) toCandle(ts, layout string) (model.Candle, error) {
	t, err := time.Parse(layout, ts)
	if err != nil {
		return model.Candle{}, fmt.Errorf("parsing timestamp %q: %w", ts, err)
	}

	open, err := strconv.ParseFloat(b.Open, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("parsing open at %s: %w", ts, err)
	}
	high, err := strconv.ParseFloat(b.High, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("parsing high at %s: %w", ts, err)
	}
	low, err := strconv.ParseFloat(b.Low, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("parsing low at %s: %w", ts, err)
	}
	closePrice, err := strconv.ParseFloat(b.Close, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("parsing close at %s: %w", ts, err)
	}
	var volume int64
	if b.Volume != "" {
		volume, err = strconv.ParseInt(b.Volume, 10, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("parsing volume at %s: %w", ts, err)
		}
	}

	return model.Candle{
		Timestamp: t,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}
