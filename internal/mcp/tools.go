package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/factors/extract"
	"github.com/caesar-quant/caesar/internal/model"
)

type toolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func toolDefinitions() []toolDefinition {
	symbolProp := map[string]any{"type": "string", "description": "Stock ticker symbol, e.g. AAPL"}
	levelProp := map[string]any{
		"type":        "string",
		"description": "Time resolution",
		"enum":        []string{"1_minute", "5_minute", "15_minute", "30_minute", "1_day"},
	}

	return []toolDefinition{
		{
			Name:        "list_symbols",
			Description: "List the stock symbols tracked by the research pipeline.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "fetch_candles",
			Description: "Fetch OHLCV candles for a symbol at the given time resolution. Returns the most recent candles.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": symbolProp,
					"level":  levelProp,
					"limit":  map[string]any{"type": "integer", "description": "Maximum candles to return, default 50"},
				},
				"required": []string{"symbol", "level"},
			},
		},
		{
			Name:        "compute_factors",
			Description: "Compute a technical factor series (macd, rsi, boll or ema) for a symbol and return the latest values and signal direction.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": symbolProp,
					"level":  levelProp,
					"factor": map[string]any{
						"type":        "string",
						"description": "Factor name",
						"enum":        []string{"macd", "rsi", "boll", "ema"},
					},
				},
				"required": []string{"symbol", "level", "factor"},
			},
		},
		{
			Name:        "run_backtest",
			Description: "Run a backtest for a symbol using its best trained strategy and return performance metrics.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": symbolProp,
					"level":  levelProp,
				},
				"required": []string{"symbol", "level"},
			},
		},
		{
			Name:        "best_strategy",
			Description: "Look up the best trained factor strategy for a symbol and time resolution.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": symbolProp,
					"level":  levelProp,
				},
				"required": []string{"symbol", "level"},
			},
		},
	}
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolArgs struct {
	Symbol string `json:"symbol"`
	Level  string `json:"level"`
	Factor string `json:"factor"`
	Limit  int    `json:"limit"`
}

// callTool executes a tool and wraps the outcome in MCP content. Tool
// failures are reported with isError rather than a protocol error so the
// model can read them.
func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
	var params callParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid tool call params"}
	}

	var args toolArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: "invalid tool arguments"}
		}
	}

	s.logger.Info().Str("tool", params.Name).Str("symbol", args.Symbol).Msg("Tool call")

	var text string
	var err error
	switch params.Name {
	case "list_symbols":
		text, err = s.listSymbols()
	case "fetch_candles":
		text, err = s.fetchCandles(ctx, args)
	case "compute_factors":
		text, err = s.computeFactors(ctx, args)
	case "run_backtest":
		text, err = s.runBacktest(ctx, args)
	case "best_strategy":
		text, err = s.bestStrategy(args)
	default:
		return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("unknown tool %q", params.Name)}
	}

	if err != nil {
		return toolResult(err.Error(), true), nil
	}
	return toolResult(text, false), nil
}

func toolResult(text string, isError bool) map[string]any {
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"isError": isError,
	}
}

func (s *Server) listSymbols() (string, error) {
	payload, err := json.Marshal(map[string]any{"symbols": s.symbols})
	if err != nil {
		return "", fmt.Errorf("marshal symbols: %w", err)
	}
	return string(payload), nil
}

func (s *Server) resolveArgs(args toolArgs) (string, model.MinuteLevel, error) {
	symbol := strings.ToUpper(strings.TrimSpace(args.Symbol))
	if symbol == "" {
		return "", "", fmt.Errorf("symbol is required")
	}
	level, err := model.ParseLevel(args.Level)
	if err != nil {
		return "", "", err
	}
	return symbol, level, nil
}

func (s *Server) fetchCandles(ctx context.Context, args toolArgs) (string, error) {
	symbol, level, err := s.resolveArgs(args)
	if err != nil {
		return "", err
	}

	candles, err := s.fetcher.Candles(ctx, symbol, level)
	if err != nil {
		return "", fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}

	limit := args.Limit
	if limit <= 0 || limit > len(candles) {
		limit = 50
		if limit > len(candles) {
			limit = len(candles)
		}
	}
	recent := candles[len(candles)-limit:]

	rows := make([]map[string]any, 0, len(recent))
	for _, c := range recent {
		rows = append(rows, map[string]any{
			"timestamp": c.Timestamp.Format("2006-01-02 15:04:05"),
			"open":      c.Open,
			"high":      c.High,
			"low":       c.Low,
			"close":     c.Close,
			"volume":    c.Volume,
		})
	}

	payload, err := json.Marshal(map[string]any{
		"symbol":  symbol,
		"level":   level,
		"total":   len(candles),
		"candles": rows,
	})
	if err != nil {
		return "", fmt.Errorf("marshal candles: %w", err)
	}
	return string(payload), nil
}

func (s *Server) computeFactors(ctx context.Context, args toolArgs) (string, error) {
	symbol, level, err := s.resolveArgs(args)
	if err != nil {
		return "", err
	}

	candles, err := s.fetcher.Candles(ctx, symbol, level)
	if err != nil {
		return "", fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}

	params := model.StrategyParams{Factor: strings.ToLower(args.Factor)}
	series, err := extract.ComputeSeries(params.Factor, candles, params)
	if err != nil {
		return "", err
	}
	directions, err := extract.Directions(candles, params)
	if err != nil {
		return "", err
	}

	latest := map[string]float64{}
	last := len(candles) - 1
	for i, col := range series.Columns {
		latest[col] = series.Values[i][last]
	}

	payload, err := json.Marshal(map[string]any{
		"symbol": symbol,
		"level":  level,
		"factor": params.Factor,
		"latest": latest,
		"signal": directions[last],
	})
	if err != nil {
		return "", fmt.Errorf("marshal factors: %w", err)
	}
	return string(payload), nil
}

func (s *Server) runBacktest(ctx context.Context, args toolArgs) (string, error) {
	symbol, level, err := s.resolveArgs(args)
	if err != nil {
		return "", err
	}

	params, err := s.lookupStrategy(symbol, level)
	if err != nil {
		return "", err
	}

	candles, err := s.fetcher.Candles(ctx, symbol, level)
	if err != nil {
		return "", fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}

	result, err := s.engine.Run(symbol, level, candles, *params)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal backtest result: %w", err)
	}
	return string(payload), nil
}

func (s *Server) bestStrategy(args toolArgs) (string, error) {
	symbol, level, err := s.resolveArgs(args)
	if err != nil {
		return "", err
	}

	params, err := s.lookupStrategy(symbol, level)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"symbol":   symbol,
		"level":    level,
		"strategy": params,
	})
	if err != nil {
		return "", fmt.Errorf("marshal strategy: %w", err)
	}
	return string(payload), nil
}

// lookupStrategy prefers the database, falling back to the results file.
func (s *Server) lookupStrategy(symbol string, level model.MinuteLevel) (*model.StrategyParams, error) {
	if s.db != nil {
		report, err := s.db.GetBestStrategy(symbol, level)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Database strategy lookup failed")
		} else if report != nil {
			return &report.Best, nil
		}
	}

	results, err := config.LoadResults(s.cfg.ResultsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	report, found := results.BestStrategy(symbol, level)
	if !found {
		return nil, fmt.Errorf("no trained strategy for %s %s", symbol, level)
	}
	return &report.Best, nil
}
