// Package telegram connects the conversation to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot-service/internal/domain"
)

// Scheme prefixes identities and chat addresses of Telegram users.
const Scheme = "tg"

// Bot is the subset of *tgbotapi.BotAPI used for outbound traffic.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Messenger is the app.Messenger for "tg:" chats.
type Messenger struct {
	bot Bot
}

func NewMessenger(bot Bot) *Messenger {
	return &Messenger{bot: bot}
}

func (m *Messenger) Send(_ context.Context, chat string, reply domain.Reply) error {
	chatID, err := chatID(chat)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Choices) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, len(reply.Choices))
		for i, c := range reply.Choices {
			rows[i] = tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Acknowledge answers the callback query; Telegram shows text as a toast.
func (m *Messenger) Acknowledge(_ context.Context, ev domain.Event, text string) error {
	if ev.AckID == "" {
		return nil
	}
	if _, err := m.bot.Request(tgbotapi.NewCallback(ev.AckID, text)); err != nil {
		return fmt.Errorf("telegram callback: %w", err)
	}
	return nil
}

// DismissChoices strips the inline keyboard from the message that was tapped.
func (m *Messenger) DismissChoices(_ context.Context, ev domain.Event) error {
	if ev.MessageRef == "" {
		return nil
	}
	chatID, err := chatID(ev.Chat)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(ev.MessageRef)
	if err != nil {
		return fmt.Errorf("telegram message ref %q: %w", ev.MessageRef, err)
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := m.bot.Request(edit); err != nil {
		return fmt.Errorf("telegram edit markup: %w", err)
	}
	return nil
}

func chatID(chat string) (int64, error) {
	scheme, id, ok := domain.SplitAddress(chat)
	if !ok || scheme != Scheme {
		return 0, fmt.Errorf("not a telegram chat: %q", chat)
	}
	return strconv.ParseInt(id, 10, 64)
}

// ChatAddress returns the chat address of a Telegram chat id.
func ChatAddress(id int64) string {
	return domain.Address(Scheme, strconv.FormatInt(id, 10))
}
