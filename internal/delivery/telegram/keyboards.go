package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mlehnert/videokurs-bot/internal/course"
)

// buildReadyKeyboard builds the single-button keyboard shown after placement.
func buildReadyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnReady, buildReadyCallback()),
		),
	)
}

// buildControlsKeyboard builds the persistent reply keyboard offered during a
// lesson conversation.
func buildControlsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(phraseUnderstood),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(phraseOverview),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// statusButtonIcon mirrors the icons of the overview text.
func statusButtonIcon(status course.VideoStatus) string {
	switch status {
	case course.StatusCompleted:
		return "✅"
	case course.StatusCurrent:
		return "📍"
	default:
		return "⏳"
	}
}

// buildOverviewKeyboard builds one button per reachable lesson. Upcoming
// lessons appear in the overview text but are not selectable.
func buildOverviewKeyboard(ov *course.Overview) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, group := range ov.Levels {
		for _, v := range group.Videos {
			if !v.Reachable {
				continue
			}

			caption := fmt.Sprintf("%s Video %d: %s",
				statusButtonIcon(v.Status), v.Video.VideoNumber, truncateTitle(v.Video.Title))
			data := buildLessonCallback(v.Video.RecordID, v.IsReview)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(caption, data),
			))
		}
	}

	if len(rows) == 0 {
		return nil
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
