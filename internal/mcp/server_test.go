package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/data"
	"github.com/caesar-quant/caesar/internal/factors/backtest"
	"github.com/caesar-quant/caesar/internal/model"
)

type fakeSource struct {
	candles []model.Candle
}

func (f *fakeSource) GetCandles(_ context.Context, _ string, _ model.MinuteLevel) ([]model.Candle, error) {
	return f.candles, nil
}

func oscillatingCandles(n int) []model.Candle {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	for i := range candles {
		price := 100 + 10*math.Sin(float64(i)/5)
		candles[i] = model.Candle{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return candles
}

func newTestMCPServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.App{
		ResultsConfigPath: filepath.Join(dir, "results.yaml"),
	}
	results := &config.Results{}
	results.UpsertStrategy(model.TrainReport{
		Symbol: "AAPL",
		Level:  model.Level1Day,
		Best: model.StrategyParams{
			Factor:        model.FactorRSI,
			Period:        7,
			BuyThreshold:  35,
			SellThreshold: 65,
		},
		IC: 0.1,
	})
	if err := config.SaveResults(cfg.ResultsConfigPath, results); err != nil {
		t.Fatal(err)
	}

	fetcher := data.NewFetcher(&fakeSource{candles: oscillatingCandles(300)}, data.NewStore(dir), nil)
	return NewServer(cfg, []string{"AAPL", "MSFT"}, fetcher, backtest.NewEngine(), nil)
}

// runRequests feeds newline-delimited requests through the server and
// returns one decoded response per request line.
func runRequests(t *testing.T, s *Server, requests ...string) []response {
	t.Helper()

	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	var out bytes.Buffer
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatal(err)
	}

	var responses []response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("decode response %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func resultMap(t *testing.T, resp response) map[string]any {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	return m
}

// toolText extracts the text payload from a tools/call result and fails
// the test if the call was flagged as an error.
func toolText(t *testing.T, resp response) string {
	t.Helper()
	m := resultMap(t, resp)
	if isErr, _ := m["isError"].(bool); isErr {
		t.Fatalf("tool call failed: %v", m["content"])
	}
	content := m["content"].([]any)
	first := content[0].(map[string]any)
	return first["text"].(string)
}

func callRequest(id int, tool string, args string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":%q,"arguments":%s}}`, id, tool, args)
}

func TestInitialize(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	if len(resps) != 1 || resps[0].Error != nil {
		t.Fatalf("responses = %+v", resps)
	}
	m := resultMap(t, resps[0])
	if m["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion = %v", m["protocolVersion"])
	}
	info := m["serverInfo"].(map[string]any)
	if info["name"] != "caesar" {
		t.Errorf("serverInfo.name = %v", info["name"])
	}
}

func TestNotificationGetsNoResponse(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`)

	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
}

func TestMethodNotFound(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)

	if resps[0].Error == nil || resps[0].Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v", resps[0].Error)
	}
}

func TestToolsList(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	m := resultMap(t, resps[0])
	tools := m["tools"].([]any)
	if len(tools) != 5 {
		t.Fatalf("got %d tools, want 5", len(tools))
	}
	names := map[string]bool{}
	for _, raw := range tools {
		tool := raw.(map[string]any)
		names[tool["name"].(string)] = true
		if tool["inputSchema"] == nil {
			t.Errorf("tool %v has no input schema", tool["name"])
		}
	}
	for _, want := range []string{"list_symbols", "fetch_candles", "compute_factors", "run_backtest", "best_strategy"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestListSymbolsTool(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t), callRequest(1, "list_symbols", "{}"))

	var payload struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal([]byte(toolText(t, resps[0])), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Symbols) != 2 || payload.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v", payload.Symbols)
	}
}

func TestFetchCandlesTool(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		callRequest(1, "fetch_candles", `{"symbol":"aapl","level":"1_day","limit":10}`))

	var payload struct {
		Symbol  string `json:"symbol"`
		Total   int    `json:"total"`
		Candles []struct {
			Close float64 `json:"close"`
		} `json:"candles"`
	}
	if err := json.Unmarshal([]byte(toolText(t, resps[0])), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Symbol != "AAPL" {
		t.Errorf("symbol = %s, want AAPL", payload.Symbol)
	}
	if payload.Total != 300 {
		t.Errorf("total = %d, want 300", payload.Total)
	}
	if len(payload.Candles) != 10 {
		t.Errorf("got %d candles, want 10", len(payload.Candles))
	}
}

func TestComputeFactorsTool(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		callRequest(1, "compute_factors", `{"symbol":"AAPL","level":"1_day","factor":"rsi"}`))

	var payload struct {
		Factor string             `json:"factor"`
		Latest map[string]float64 `json:"latest"`
		Signal string             `json:"signal"`
	}
	if err := json.Unmarshal([]byte(toolText(t, resps[0])), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Factor != "rsi" {
		t.Errorf("factor = %s", payload.Factor)
	}
	rsi, ok := payload.Latest["RSI"]
	if !ok || rsi < 0 || rsi > 100 {
		t.Errorf("latest RSI = %v, ok = %v", rsi, ok)
	}
	if payload.Signal == "" {
		t.Error("signal is empty")
	}
}

func TestRunBacktestTool(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		callRequest(1, "run_backtest", `{"symbol":"AAPL","level":"1_day"}`))

	var result model.BacktestResult
	if err := json.Unmarshal([]byte(toolText(t, resps[0])), &result); err != nil {
		t.Fatal(err)
	}
	if result.Symbol != "AAPL" {
		t.Errorf("symbol = %s", result.Symbol)
	}
	if result.TotalTrades == 0 {
		t.Error("expected trades on oscillating series")
	}
}

func TestBestStrategyTool(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		callRequest(1, "best_strategy", `{"symbol":"AAPL","level":"1_day"}`))

	var payload struct {
		Strategy model.StrategyParams `json:"strategy"`
	}
	if err := json.Unmarshal([]byte(toolText(t, resps[0])), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Strategy.Factor != model.FactorRSI || payload.Strategy.Period != 7 {
		t.Errorf("strategy = %+v", payload.Strategy)
	}
}

func TestToolErrorIsReportedInContent(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t),
		callRequest(1, "best_strategy", `{"symbol":"TSLA","level":"1_day"}`))

	if resps[0].Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resps[0].Error)
	}
	m := resultMap(t, resps[0])
	if isErr, _ := m["isError"].(bool); !isErr {
		t.Error("expected isError = true")
	}
}

func TestUnknownTool(t *testing.T) {
	resps := runRequests(t, newTestMCPServer(t), callRequest(1, "delete_everything", "{}"))

	if resps[0].Error == nil || resps[0].Error.Code != codeInvalidParams {
		t.Fatalf("error = %+v", resps[0].Error)
	}
}
