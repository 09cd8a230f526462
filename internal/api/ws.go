package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// quoteFrame is one message on the quote stream.
type quoteFrame struct {
	Symbol    string  `json:"symbol"`
	Level     string  `json:"level"`
	Timestamp string  `json:"timestamp"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// streamQuotes upgrades to a websocket and pushes the latest candle for the
// requested symbol/level on a fixed interval until the client disconnects.
func (s *Server) streamQuotes(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol is required")
		return
	}
	level, ok := levelParam(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so pong/close handling works.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		candles, err := s.fetcher.Candles(ctx, symbol, level)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed, closing stream")
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "fetch failed"),
				time.Now().Add(time.Second))
			return
		}

		if len(candles) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			continue
		}

		last := candles[len(candles)-1]
		frame := quoteFrame{
			Symbol:    symbol,
			Level:     string(level),
			Timestamp: last.Timestamp.Format("2006-01-02 15:04:05"),
			Close:     last.Close,
			Volume:    last.Volume,
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
