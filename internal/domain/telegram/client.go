package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for resolving users and sending messages via a
// Telegram bot. This helps in decoupling the application logic from the
// specific bot library.
type Client interface {
	// ResolveUser looks up the private chat for a user ID. It fails when the
	// user is unknown to the bot or has never started a conversation with it.
	ResolveUser(userID int64) (*telebot.Chat, error)
	SendMessage(to telebot.Recipient, text string, options *telebot.SendOptions) error
}
