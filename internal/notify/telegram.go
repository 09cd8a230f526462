package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caesar-quant/caesar/internal/model"
)

// Notifier delivers pipeline events to a Telegram chat. A nil *Notifier is
// a valid no-op, so callers never branch on whether Telegram is configured.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// New creates a notifier. Returns (nil, nil) when token or chatID are
// unset, leaving notifications disabled.
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}

	return &Notifier{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "notifier").Logger(),
	}, nil
}

// BacktestCompleted sends a backtest summary.
func (n *Notifier) BacktestCompleted(result *model.BacktestResult) {
	if n == nil || result == nil {
		return
	}

	text := fmt.Sprintf(
		"📊 *Backtest complete*\n\n"+
			"Symbol: %s (%s)\n"+
			"Factor: %s\n"+
			"Trades: %d\n"+
			"Win rate: %.2f%%\n"+
			"Total return: %.2f%%\n"+
			"Max drawdown: %.2f%%\n"+
			"Sharpe: %.2f",
		result.Symbol, result.Level, result.Params.Factor,
		result.TotalTrades, result.WinPercentage,
		result.TotalReturnPercent, result.MaxDrawdown, result.SharpeRatio,
	)
	n.send(text)
}

// TrainingCompleted sends a training summary.
func (n *Notifier) TrainingCompleted(report model.TrainReport) {
	if n == nil {
		return
	}

	text := fmt.Sprintf(
		"🧠 *Training complete*\n\n"+
			"Symbol: %s (%s)\n"+
			"Best factor: %s\n"+
			"IC: %.4f\n"+
			"Hit rate: %.2f%%\n"+
			"Candidates evaluated: %d",
		report.Symbol, report.Level, report.Best.Factor,
		report.IC, report.HitRate*100, report.Candidates,
	)
	n.send(text)
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("Failed to send Telegram message")
	}
}
