package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbot-service/internal/domain"
)

// EventFromUpdate converts an update into a conversation event. Updates the
// conversation has no use for (edits, channel posts, stickers) yield false.
func EventFromUpdate(update tgbotapi.Update) (domain.Event, bool) {
	delivery := domain.Address(Scheme, "update:"+strconv.Itoa(update.UpdateID))

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil {
			return domain.Event{}, false
		}
		ev := domain.Event{
			Kind:       domain.EventChoice,
			Identity:   identity(cq.From.ID),
			Chat:       ChatAddress(cq.From.ID),
			Data:       cq.Data,
			AckID:      cq.ID,
			DeliveryID: delivery,
		}
		if cq.Message != nil {
			ev.Chat = ChatAddress(cq.Message.Chat.ID)
			ev.MessageRef = strconv.Itoa(cq.Message.MessageID)
		}
		return ev, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return domain.Event{}, false
		}
		ev := domain.Event{
			Identity:   identity(msg.From.ID),
			Chat:       ChatAddress(msg.Chat.ID),
			DeliveryID: delivery,
		}
		switch {
		case msg.IsCommand():
			ev.Kind, ev.Command = domain.EventCommand, msg.Command()
		case msg.Text != "":
			ev.Kind, ev.Text = domain.EventText, msg.Text
		default:
			return domain.Event{}, false
		}
		return ev, true
	}
	return domain.Event{}, false
}

func identity(userID int64) domain.Identity {
	return domain.Identity(domain.Address(Scheme, strconv.FormatInt(userID, 10)))
}
