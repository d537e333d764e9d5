package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mlehnert/videokurs-bot/internal/course"
)

// Presenter renders engine output to Telegram. The bot talks to users in
// private chats, so the chat id equals the user id.
type Presenter struct {
	bot *tgbotapi.BotAPI
}

func NewPresenter(bot *tgbotapi.BotAPI) *Presenter {
	return &Presenter{bot: bot}
}

func (p *Presenter) SendText(_ context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (p *Presenter) SendReady(_ context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = buildReadyKeyboard()
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("send ready prompt: %w", err)
	}
	return nil
}

func (p *Presenter) SendControls(_ context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = buildControlsKeyboard()
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("send controls: %w", err)
	}
	return nil
}

func (p *Presenter) SendOverview(_ context.Context, userID int64, text string, ov *course.Overview) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb := buildOverviewKeyboard(ov); kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("send overview: %w", err)
	}
	return nil
}
