// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the domain Client interface using the
// gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// ResolveUser looks up the private chat for a user. Telegram rejects the
// lookup when the user never started the bot or blocked it; the caller
// treats that as an ordinary delivery failure.
func (tba *TelebotAdapter) ResolveUser(userID int64) (*telebot.Chat, error) {
	return tba.bot.ChatByID(userID)
}

// SendMessage sends a text message to the specified recipient.
func (tba *TelebotAdapter) SendMessage(to telebot.Recipient, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(to, text, options)
	return err
}
