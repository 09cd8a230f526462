package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/caesar-quant/caesar/internal/config"
	"github.com/caesar-quant/caesar/internal/factors/extract"
	"github.com/caesar-quant/caesar/internal/features"
	"github.com/caesar-quant/caesar/internal/model"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an error detail.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func abortError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BacktestRequest is the body of POST /api/v1/backtest. Params is optional;
// when absent the recorded best strategy for the symbol/level is used.
type BacktestRequest struct {
	Symbol string                `json:"symbol" binding:"required"`
	Level  string                `json:"level" binding:"required"`
	Params *model.StrategyParams `json:"params,omitempty"`
}

func (s *Server) listSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.symbols})
}

// levelParam parses and validates the level query parameter.
func levelParam(c *gin.Context) (model.MinuteLevel, bool) {
	raw := c.DefaultQuery("level", string(model.Level1Day))
	level, err := model.ParseLevel(raw)
	if err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_LEVEL", err.Error())
		return "", false
	}
	return level, true
}

func limitParam(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func (s *Server) getCandles(c *gin.Context) {
	level, ok := levelParam(c)
	if !ok {
		return
	}
	symbol := c.Param("symbol")

	candles, err := s.fetcher.Candles(c.Request.Context(), symbol, level)
	if err != nil {
		abortError(c, http.StatusBadGateway, "DATA_FETCH_ERROR", err.Error())
		return
	}

	if limit := limitParam(c, 200); len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"level":   level,
		"candles": candles,
	})
}

func (s *Server) getFeatures(c *gin.Context) {
	level, ok := levelParam(c)
	if !ok {
		return
	}
	symbol := c.Param("symbol")

	candles, err := s.fetcher.Candles(c.Request.Context(), symbol, level)
	if err != nil {
		abortError(c, http.StatusBadGateway, "DATA_FETCH_ERROR", err.Error())
		return
	}

	window, _ := strconv.Atoi(c.DefaultQuery("window", "0"))
	set, err := features.Compute(candles, window)
	if err != nil {
		abortError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_DATA", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"level":    level,
		"window":   set.Window,
		"features": set.Latest(),
	})
}

func (s *Server) getFactors(c *gin.Context) {
	level, ok := levelParam(c)
	if !ok {
		return
	}
	symbol := c.Param("symbol")
	name := c.DefaultQuery("name", model.FactorMACD)

	candles, err := s.fetcher.Candles(c.Request.Context(), symbol, level)
	if err != nil {
		abortError(c, http.StatusBadGateway, "DATA_FETCH_ERROR", err.Error())
		return
	}

	series, err := extract.ComputeSeries(name, candles, model.StrategyParams{Factor: name})
	if err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_FACTOR", err.Error())
		return
	}

	limit := limitParam(c, 100)
	n := len(candles)
	start := 0
	if n > limit {
		start = n - limit
	}

	timestamps := make([]string, 0, n-start)
	for _, candle := range candles[start:] {
		timestamps = append(timestamps, candle.Timestamp.Format("2006-01-02 15:04:05"))
	}
	values := make(map[string][]float64, len(series.Columns))
	for i, col := range series.Columns {
		values[col] = series.Values[i][start:]
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":     symbol,
		"level":      level,
		"factor":     series.Name,
		"timestamps": timestamps,
		"values":     values,
	})
}

func (s *Server) runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	level, err := model.ParseLevel(req.Level)
	if err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_LEVEL", err.Error())
		return
	}

	params := req.Params
	if params == nil {
		report, found := s.lookupBestStrategy(req.Symbol, level)
		if !found {
			abortError(c, http.StatusNotFound, "NOT_FOUND",
				"no trained strategy for symbol/level and no params given")
			return
		}
		params = &report.Best
	}

	candles, err := s.fetcher.Candles(c.Request.Context(), req.Symbol, level)
	if err != nil {
		abortError(c, http.StatusBadGateway, "DATA_FETCH_ERROR", err.Error())
		return
	}

	result, err := s.engine.Run(req.Symbol, level, candles, *params)
	if err != nil {
		abortError(c, http.StatusUnprocessableEntity, "BACKTEST_ERROR", err.Error())
		return
	}

	if s.db != nil {
		if err := s.db.SaveBacktest(*result); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist backtest result")
		}
	}
	s.notifier.BacktestCompleted(result)

	c.JSON(http.StatusOK, result)
}

func (s *Server) bestStrategy(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol is required")
		return
	}
	level, ok := levelParam(c)
	if !ok {
		return
	}

	report, found := s.lookupBestStrategy(symbol, level)
	if !found {
		abortError(c, http.StatusNotFound, "NOT_FOUND", "no trained strategy for symbol/level")
		return
	}
	c.JSON(http.StatusOK, report)
}

// lookupBestStrategy prefers the database, falling back to results.yaml.
func (s *Server) lookupBestStrategy(symbol string, level model.MinuteLevel) (model.TrainReport, bool) {
	if s.db != nil {
		report, err := s.db.GetBestStrategy(symbol, level)
		if err != nil {
			s.logger.Error().Err(err).Msg("Best strategy lookup failed")
		} else if report != nil {
			return *report, true
		}
	}

	results, err := config.LoadResults(s.cfg.ResultsConfigPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load results config")
		return model.TrainReport{}, false
	}
	return results.BestStrategy(symbol, level)
}
