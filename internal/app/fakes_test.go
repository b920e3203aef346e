package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
	"birthday_notification_bot/internal/domain/subscription"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}

// memoryStore backs all three repositories with in-memory slices, mimicking
// the shared database the real repositories run against.
type memoryStore struct {
	birthdays     []*birthday.Birthday
	subscriptions []*subscription.Subscription
	records       []*delivery.Record
	nextID        int64

	listAllErr     error // forced failure for ListAll
	undeliveredErr error // forced failure for ListUndelivered
	insertErr      error // forced failure for ledger Insert

	// When set, ListUndelivered skips the ledger anti-join, simulating the
	// over-inclusion read skew the dispatcher must tolerate.
	skipAntiJoin bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- birthday.Repository ---

func (m *memoryStore) Create(ctx context.Context, b *birthday.Birthday) error {
	for _, existing := range m.birthdays {
		if existing.ChatID == b.ChatID && existing.UserID == b.UserID {
			return idb.ErrDuplicateBirthday
		}
	}
	b.ID = m.id()
	b.CreatedAt = time.Now()
	m.birthdays = append(m.birthdays, b)
	return nil
}

func (m *memoryStore) Update(ctx context.Context, b *birthday.Birthday) error {
	for _, existing := range m.birthdays {
		if existing.ChatID == b.ChatID && existing.UserID == b.UserID {
			existing.Date = b.Date
			existing.ModifiedAt.Time = time.Now()
			existing.ModifiedAt.Valid = true
			b.ID = existing.ID
			b.ModifiedAt = existing.ModifiedAt
			return nil
		}
	}
	return idb.ErrBirthdayNotFound
}

func (m *memoryStore) Delete(ctx context.Context, chatID, userID int64) error {
	for i, existing := range m.birthdays {
		if existing.ChatID == chatID && existing.UserID == userID {
			m.birthdays = append(m.birthdays[:i], m.birthdays[i+1:]...)
			// Cascade, as the schema does.
			kept := m.subscriptions[:0]
			for _, s := range m.subscriptions {
				if s.BirthdayID != existing.ID {
					kept = append(kept, s)
				}
			}
			m.subscriptions = kept
			return nil
		}
	}
	return idb.ErrBirthdayNotFound
}

func (m *memoryStore) GetByChatAndUser(ctx context.Context, chatID, userID int64) (*birthday.Birthday, error) {
	for _, existing := range m.birthdays {
		if existing.ChatID == chatID && existing.UserID == userID {
			return existing, nil
		}
	}
	return nil, idb.ErrBirthdayNotFound
}

func (m *memoryStore) GetByID(ctx context.Context, id int64) (*birthday.Birthday, error) {
	for _, existing := range m.birthdays {
		if existing.ID == id {
			return existing, nil
		}
	}
	return nil, idb.ErrBirthdayNotFound
}

func (m *memoryStore) ListAll(ctx context.Context) ([]*birthday.Birthday, error) {
	if m.listAllErr != nil {
		return nil, m.listAllErr
	}
	return append([]*birthday.Birthday(nil), m.birthdays...), nil
}

// --- subscription.Repository ---

func (m *memoryStore) CreateSubscription(ctx context.Context, s *subscription.Subscription) error {
	for _, existing := range m.subscriptions {
		if existing.ChatID == s.ChatID && existing.SubscriberID == s.SubscriberID && existing.BirthdayID == s.BirthdayID {
			return idb.ErrDuplicateSubscription
		}
	}
	s.ID = m.id()
	s.CreatedAt = time.Now()
	m.subscriptions = append(m.subscriptions, s)
	return nil
}

func (m *memoryStore) DeleteSubscription(ctx context.Context, chatID, subscriberID, birthdayID int64) error {
	for i, existing := range m.subscriptions {
		if existing.ChatID == chatID && existing.SubscriberID == subscriberID && existing.BirthdayID == birthdayID {
			m.subscriptions = append(m.subscriptions[:i], m.subscriptions[i+1:]...)
			return nil
		}
	}
	return idb.ErrSubscriptionNotFound
}

func (m *memoryStore) GetByChatSubscriberAndBirthday(ctx context.Context, chatID, subscriberID, birthdayID int64) (*subscription.Subscription, error) {
	for _, existing := range m.subscriptions {
		if existing.ChatID == chatID && existing.SubscriberID == subscriberID && existing.BirthdayID == birthdayID {
			return existing, nil
		}
	}
	return nil, idb.ErrSubscriptionNotFound
}

func (m *memoryStore) ListBySubscriber(ctx context.Context, chatID, subscriberID int64) ([]*subscription.Subscription, error) {
	subs := make([]*subscription.Subscription, 0)
	for _, existing := range m.subscriptions {
		if existing.ChatID == chatID && existing.SubscriberID == subscriberID {
			subs = append(subs, existing)
		}
	}
	return subs, nil
}

func (m *memoryStore) ListByBirthday(ctx context.Context, birthdayID int64) ([]*subscription.Subscription, error) {
	subs := make([]*subscription.Subscription, 0)
	for _, existing := range m.subscriptions {
		if existing.BirthdayID == birthdayID {
			subs = append(subs, existing)
		}
	}
	return subs, nil
}

func (m *memoryStore) ListUndelivered(ctx context.Context, birthdayID int64, year int) ([]*subscription.Subscription, error) {
	if m.undeliveredErr != nil {
		return nil, m.undeliveredErr
	}
	subs := make([]*subscription.Subscription, 0)
	for _, s := range m.subscriptions {
		if s.BirthdayID != birthdayID {
			continue
		}
		if !m.skipAntiJoin && m.hasRecord(s.ID, year) {
			continue
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// --- delivery.Ledger ---

func (m *memoryStore) Insert(ctx context.Context, r *delivery.Record) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.hasRecord(r.SubscriptionID, r.Year) {
		return idb.ErrDuplicateDelivery
	}
	r.ID = m.id()
	r.CreatedAt = time.Now()
	m.records = append(m.records, r)
	return nil
}

func (m *memoryStore) hasRecord(subscriptionID int64, year int) bool {
	for _, r := range m.records {
		if r.SubscriptionID == subscriptionID && r.Year == year {
			return true
		}
	}
	return false
}

// subscriptionRepoView adapts memoryStore to subscription.Repository, whose
// Create/Delete method names collide with birthday.Repository's.
type subscriptionRepoView struct{ *memoryStore }

func (v subscriptionRepoView) Create(ctx context.Context, s *subscription.Subscription) error {
	return v.CreateSubscription(ctx, s)
}

func (v subscriptionRepoView) Delete(ctx context.Context, chatID, subscriberID, birthdayID int64) error {
	return v.DeleteSubscription(ctx, chatID, subscriberID, birthdayID)
}

type sentMessage struct {
	recipientID int64
	text        string
}

// fakeTelegramClient records sends and fails on demand per user ID.
type fakeTelegramClient struct {
	sent       []sentMessage
	resolveErr map[int64]error
	sendErr    map[int64]error
}

func newFakeTelegramClient() *fakeTelegramClient {
	return &fakeTelegramClient{
		resolveErr: make(map[int64]error),
		sendErr:    make(map[int64]error),
	}
}

func (f *fakeTelegramClient) ResolveUser(userID int64) (*telebot.Chat, error) {
	if err := f.resolveErr[userID]; err != nil {
		return nil, err
	}
	return &telebot.Chat{ID: userID, FirstName: fmt.Sprintf("user%d", userID)}, nil
}

func (f *fakeTelegramClient) SendMessage(to telebot.Recipient, text string, _ *telebot.SendOptions) error {
	id, err := strconv.ParseInt(to.Recipient(), 10, 64)
	if err != nil {
		return fmt.Errorf("unexpected recipient %q: %w", to.Recipient(), err)
	}
	if err := f.sendErr[id]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{recipientID: id, text: text})
	return nil
}

func (f *fakeTelegramClient) sentTo(userID int64) int {
	n := 0
	for _, msg := range f.sent {
		if msg.recipientID == userID {
			n++
		}
	}
	return n
}
