package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleCallback answers the query immediately with a toast and enqueues the
// matching engine event. Answering first removes the user's "clock" even when
// the lesson script that follows runs for a while.
func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	cd := decodeCallback(cb.Data)

	switch cd.Action {
	case actionReady:
		h.answerCallback(cb.ID, ackReady)
		h.run(ctx, userID, "ready", h.engine.HandleReady)

	case actionNext:
		h.answerCallback(cb.ID, ackNext)
		h.run(ctx, userID, "advance", h.engine.HandleAdvance)

	case actionLesson:
		if len(cd.Params) != 2 {
			h.logger.Warn("invalid lesson callback data", zap.String("data", cb.Data))
			h.answerCallback(cb.ID, "")
			return
		}
		videoRecordID := cd.Params[0]
		isReview := cd.Params[1] == "1"

		ack := ackLesson
		if isReview {
			ack += ackReviewSuffix
		}
		h.answerCallback(cb.ID, ack)

		h.run(ctx, userID, "lesson_select", func(ctx context.Context, userID int64) error {
			return h.engine.HandleLessonSelect(ctx, userID, videoRecordID, isReview)
		})

	default:
		h.logger.Warn("unknown callback action", zap.String("data", cb.Data))
		h.answerCallback(cb.ID, "")
	}
}

func (h *Handler) answerCallback(callbackID, text string) {
	answer := tgbotapi.NewCallback(callbackID, text)
	if _, err := h.bot.Request(answer); err != nil {
		h.logger.Error("failed to answer callback query", zap.Error(err))
	}
}
