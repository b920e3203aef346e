package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"birthday_notification_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBirthdayHandlers registers the birthday and subscription command
// surface. These handlers only read and write birthday/subscription records;
// the delivery ledger belongs to the notifier alone.
func RegisterBirthdayHandlers(ctx context.Context, b *telebot.Bot, birthdayService *app.BirthdayService, baseLogger *logrus.Entry) {
	handlerLogger := baseLogger.WithField("handler_group", "birthday")

	b.Handle("/birthday_set", func(c telebot.Context) error {
		logCtx := commandLogger(handlerLogger, c, "/birthday_set")
		logCtx.Info("Command received")

		if !requireGroupChat(c) {
			return nil
		}

		date, err := parseDateArgs(c.Args())
		if err != nil {
			logCtx.WithError(err).Warn("Invalid date arguments")
			return c.Send("That doesn't look like a valid date. Usage: /birthday_set <day> <month> <year>, e.g. /birthday_set 11 3 1990")
		}

		_, created, err := birthdayService.SetBirthday(ctx, c.Chat().ID, c.Sender().ID, date)
		if err != nil {
			logCtx.WithError(err).Error("Failed to set birthday")
			return c.Send("Something went wrong while saving your birthday. Please try again later.")
		}

		if created {
			logCtx.WithField("date", date.Format("2006-01-02")).Info("Birthday recorded")
			return c.Send(fmt.Sprintf("Your birthday is recorded as %s. 🎉", date.Format("2 January 2006")))
		}
		logCtx.WithField("date", date.Format("2006-01-02")).Info("Birthday updated")
		return c.Send(fmt.Sprintf("Your birthday is updated to %s.", date.Format("2 January 2006")))
	})

	b.Handle("/birthday_info", func(c telebot.Context) error {
		logCtx := commandLogger(handlerLogger, c, "/birthday_info")
		logCtx.Info("Command received")

		if !requireGroupChat(c) {
			return nil
		}

		targetID, err := targetUserID(c)
		if err != nil {
			targetID = c.Sender().ID
		}

		bd, err := birthdayService.GetBirthday(ctx, c.Chat().ID, targetID)
		if err != nil {
			if err == app.ErrNoBirthdayRecorded {
				return c.Send("No birthday recorded for that user in this chat.")
			}
			logCtx.WithError(err).Error("Failed to get birthday")
			return c.Send("Something went wrong while looking up the birthday. Please try again later.")
		}
		followers, err := birthdayService.CountSubscribers(ctx, c.Chat().ID, targetID)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to count subscribers")
			followers = 0
		}
		return c.Send(fmt.Sprintf("Recorded birthday: %s, followed by %d member(s).", bd.Date.Format("2 January 2006"), followers))
	})

	b.Handle("/birthday_remove", func(c telebot.Context) error {
		logCtx := commandLogger(handlerLogger, c, "/birthday_remove")
		logCtx.Info("Command received")

		if !requireGroupChat(c) {
			return nil
		}

		err := birthdayService.RemoveBirthday(ctx, c.Chat().ID, c.Sender().ID)
		if err != nil {
			if err == app.ErrNoBirthdayRecorded {
				return c.Send("You have no birthday recorded in this chat.")
			}
			logCtx.WithError(err).Error("Failed to remove birthday")
			return c.Send("Something went wrong while removing your birthday. Please try again later.")
		}
		logCtx.Info("Birthday removed")
		return c.Send("Your birthday and all subscriptions to it are removed.")
	})

	b.Handle("/subscribe", func(c telebot.Context) error {
		logCtx := commandLogger(handlerLogger, c, "/subscribe")
		logCtx.Info("Command received")

		if !requireGroupChat(c) {
			return nil
		}

		subjectID, err := targetUserID(c)
		if err != nil {
			return c.Send("Reply to the person whose birthday you want to follow, or pass their user ID: /subscribe <user-id>")
		}

		_, err = birthdayService.Subscribe(ctx, c.Chat().ID, c.Sender().ID, subjectID)
		if err != nil {
			switch err {
			case app.ErrOwnBirthday:
				return c.Send("You'll probably remember your own birthday without my help.")
			case app.ErrNoBirthdayRecorded:
				return c.Send("That user has no birthday recorded in this chat yet.")
			case app.ErrAlreadySubscribed:
				return c.Send("You already follow that birthday.")
			default:
				logCtx.WithError(err).Error("Failed to subscribe")
				return c.Send("Something went wrong while subscribing. Please try again later.")
			}
		}
		logCtx.WithField("subject_id", subjectID).Info("Subscription created")
		return c.Send("Done! I'll send you a direct message on their birthday. Make sure you have started a private chat with me.")
	})

	b.Handle("/unsubscribe", func(c telebot.Context) error {
		logCtx := commandLogger(handlerLogger, c, "/unsubscribe")
		logCtx.Info("Command received")

		if !requireGroupChat(c) {
			return nil
		}

		subjectID, err := targetUserID(c)
		if err != nil {
			return c.Send("Reply to the person whose birthday you want to stop following, or pass their user ID: /unsubscribe <user-id>")
		}

		err = birthdayService.Unsubscribe(ctx, c.Chat().ID, c.Sender().ID, subjectID)
		if err != nil {
			switch err {
			case app.ErrNoBirthdayRecorded:
				return c.Send("That user has no birthday recorded in this chat.")
			case app.ErrNotSubscribed:
				return c.Send("You don't follow that birthday.")
			default:
				logCtx.WithError(err).Error("Failed to unsubscribe")
				return c.Send("Something went wrong while unsubscribing. Please try again later.")
			}
		}
		logCtx.WithField("subject_id", subjectID).Info("Subscription removed")
		return c.Send("Subscription removed.")
	})

	b.Handle("/subscriptions", func(c telebot.Context) error {
		logCtx := commandLogger(handlerLogger, c, "/subscriptions")
		logCtx.Info("Command received")

		if !requireGroupChat(c) {
			return nil
		}

		followed, err := birthdayService.ListFollowedBirthdays(ctx, c.Chat().ID, c.Sender().ID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list subscriptions")
			return c.Send("Something went wrong while listing your subscriptions. Please try again later.")
		}
		if len(followed) == 0 {
			return c.Send("You don't follow any birthdays in this chat.")
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "You follow %d birthday(s) in this chat:\n", len(followed))
		for _, b := range followed {
			fmt.Fprintf(&sb, "• user %d — %s\n", b.UserID, b.Date.Format("2 January"))
		}
		return c.Send(sb.String())
	})

	b.Handle("/unsubscribe_all", func(c telebot.Context) error {
		logCtx := commandLogger(handlerLogger, c, "/unsubscribe_all")
		logCtx.Info("Command received")

		if !requireGroupChat(c) {
			return nil
		}

		cleared, err := birthdayService.ClearSubscriptions(ctx, c.Chat().ID, c.Sender().ID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to clear subscriptions")
			return c.Send("Something went wrong while clearing your subscriptions. Please try again later.")
		}
		logCtx.WithField("cleared", cleared).Info("Subscriptions cleared")
		return c.Send(fmt.Sprintf("Removed %d subscription(s).", cleared))
	})
}

func commandLogger(base *logrus.Entry, c telebot.Context, command string) *logrus.Entry {
	return base.WithFields(logrus.Fields{
		"command":   command,
		"sender_id": c.Sender().ID,
		"chat_id":   c.Chat().ID,
	})
}

// requireGroupChat replies with a hint and returns false when a group-only
// command is used in a private chat.
func requireGroupChat(c telebot.Context) bool {
	if c.Chat().Type == telebot.ChatPrivate {
		_ = c.Send("This command only works in group chats.")
		return false
	}
	return true
}

// targetUserID extracts the user a command targets: the replied-to message's
// sender, or the first argument parsed as a numeric user ID.
func targetUserID(c telebot.Context) (int64, error) {
	if reply := c.Message().ReplyTo; reply != nil && reply.Sender != nil {
		return reply.Sender.ID, nil
	}
	args := c.Args()
	if len(args) != 1 {
		return 0, fmt.Errorf("no target user given")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID %q: %w", args[0], err)
	}
	return id, nil
}

// parseDateArgs parses <day> <month> <year> integer arguments into a
// normalized midnight timestamp, rejecting impossible dates like 31 2 1990.
func parseDateArgs(args []string) (time.Time, error) {
	if len(args) != 3 {
		return time.Time{}, fmt.Errorf("expected 3 arguments, got %d", len(args))
	}

	parts := make([]int, 3)
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return time.Time{}, fmt.Errorf("argument %q is not a number: %w", arg, err)
		}
		parts[i] = v
	}
	day, month, year := parts[0], parts[1], parts[2]

	if year < 1900 || year > time.Now().Year() {
		return time.Time{}, fmt.Errorf("year %d out of range", year)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, fmt.Errorf("no such date: day=%d month=%d year=%d", day, month, year)
	}
	return date, nil
}
