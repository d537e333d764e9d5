package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Engine is the state-machine surface the delivery layer drives.
type Engine interface {
	HandleStart(ctx context.Context, userID int64) error
	HandleText(ctx context.Context, userID int64, text string) error
	HandleReady(ctx context.Context, userID int64) error
	HandleUnderstood(ctx context.Context, userID int64) error
	HandleAdvance(ctx context.Context, userID int64) error
	HandleOverview(ctx context.Context, userID int64) error
	HandleLessonSelect(ctx context.Context, userID int64, videoRecordID string, isReview bool) error
}

type Handler struct {
	bot      *tgbotapi.BotAPI
	logger   *zap.Logger
	engine   Engine
	dispatch *dispatcher
}

func NewHandler(bot *tgbotapi.BotAPI, logger *zap.Logger, engine Engine) *Handler {
	return &Handler{
		bot:      bot,
		logger:   logger,
		engine:   engine,
		dispatch: newDispatcher(),
	}
}

func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			h.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate routes one update onto the owning user's queue. It never
// blocks the poll loop; the enqueued job carries any waiting.
func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		h.logger.Debug("update without message and callback")
		return
	}

	userID := update.Message.From.ID
	text := update.Message.Text

	h.logger.Debug("update received",
		zap.Int64("user_id", userID),
		zap.String("text", text),
	)

	if update.Message.IsCommand() {
		switch update.Message.Command() {
		case "start":
			h.run(ctx, userID, "start", h.engine.HandleStart)
		default:
			h.send(tgbotapi.NewMessage(update.Message.Chat.ID, msgUnknownCommand))
		}
		return
	}

	switch text {
	case phraseUnderstood:
		h.run(ctx, userID, "understood", h.engine.HandleUnderstood)
	case phraseOverview:
		h.run(ctx, userID, "overview", h.engine.HandleOverview)
	default:
		h.run(ctx, userID, "text", func(ctx context.Context, userID int64) error {
			return h.engine.HandleText(ctx, userID, text)
		})
	}
}

// run enqueues an engine call on the user's queue with uniform error logging.
func (h *Handler) run(ctx context.Context, userID int64, event string, fn func(context.Context, int64) error) {
	h.dispatch.enqueue(userID, func() {
		if err := fn(ctx, userID); err != nil {
			h.logger.Error("event handling failed",
				zap.Int64("user_id", userID),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	})
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message",
			zap.Error(err),
		)
	}
}
