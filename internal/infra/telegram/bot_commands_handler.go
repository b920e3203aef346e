// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const helpText = `I keep track of birthdays in this chat and send you a direct message when someone you follow has one.

Commands (use them in the group chat):
/birthday_set <day> <month> <year> — record your birthday
/birthday_info — show your recorded birthday (reply to someone to see theirs)
/birthday_remove — remove your birthday and everyone's subscriptions to it
/subscribe — reply to someone (or pass their user ID) to follow their birthday
/unsubscribe — stop following a birthday
/subscriptions — list the birthdays you follow
/unsubscribe_all — drop all your subscriptions in this chat

To receive notifications you must start a private chat with me first.`

// RegisterBotCommands wires the /start and /help boilerplate.
func RegisterBotCommands(b *telebot.Bot, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		startHelpLogger.WithFields(logrus.Fields{
			"command":   "/start",
			"sender_id": c.Sender().ID,
		}).Info("Processing /start command")

		return c.Send("Hi! I'm a birthday notification bot. Add me to a group chat and use /help to see what I can do. Starting this private chat also lets me send you birthday notifications.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		startHelpLogger.WithFields(logrus.Fields{
			"command":   "/help",
			"sender_id": c.Sender().ID,
		}).Info("Processing /help command")

		return c.Send(helpText)
	})
}
