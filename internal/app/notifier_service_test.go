package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotifierFixture(t *testing.T) (*NotifierService, *memoryStore, *fakeTelegramClient) {
	t.Helper()
	store := newMemoryStore()
	client := newFakeTelegramClient()
	svc := NewNotifierService(store, subscriptionRepoView{store}, store, client, discardLogger())
	require.NotNil(t, svc)
	return svc, store, client
}

func seedBirthday(t *testing.T, store *memoryStore, chatID, userID int64, date time.Time) *birthday.Birthday {
	t.Helper()
	b := &birthday.Birthday{ChatID: chatID, UserID: userID, Date: date}
	require.NoError(t, store.Create(context.Background(), b))
	return b
}

func seedSubscription(t *testing.T, store *memoryStore, chatID, subscriberID, birthdayID int64) *subscription.Subscription {
	t.Helper()
	s := &subscription.Subscription{ChatID: chatID, SubscriberID: subscriberID, BirthdayID: birthdayID}
	require.NoError(t, store.CreateSubscription(context.Background(), s))
	return s
}

func TestRunCycle_DeliversAndRecords(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	sub := seedSubscription(t, store, 100, 2, b.ID)

	today := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunCycle(context.Background(), today))

	assert.Equal(t, 1, client.sentTo(2))
	require.Len(t, store.records, 1)
	assert.Equal(t, sub.ID, store.records[0].SubscriptionID)
	assert.Equal(t, 2024, store.records[0].Year)
}

func TestRunCycle_IdempotentReTick(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	seedSubscription(t, store, 100, 2, b.ID)

	today := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunCycle(context.Background(), today))
	require.NoError(t, svc.RunCycle(context.Background(), today))

	assert.Equal(t, 1, client.sentTo(2), "second tick on the same day must not dispatch again")
	assert.Len(t, store.records, 1)
}

func TestRunCycle_NextYearDeliversAgain(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	sub := seedSubscription(t, store, 100, 2, b.ID)

	require.NoError(t, svc.RunCycle(context.Background(), time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, svc.RunCycle(context.Background(), time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, 2, client.sentTo(2))
	require.Len(t, store.records, 2)
	assert.Equal(t, sub.ID, store.records[1].SubscriptionID)
	assert.Equal(t, 2025, store.records[1].Year)
}

func TestRunCycle_SendFailureWritesNoRecord(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	seedSubscription(t, store, 100, 2, b.ID)
	client.sendErr[2] = fmt.Errorf("transport failure")

	today := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunCycle(context.Background(), today), "a per-subscription failure must not abort the cycle")
	assert.Empty(t, store.records, "no record may exist without a confirmed send")

	// Gateway recovers: the next tick delivers exactly once.
	delete(client.sendErr, 2)
	require.NoError(t, svc.RunCycle(context.Background(), today))
	assert.Equal(t, 1, client.sentTo(2))
	assert.Len(t, store.records, 1)
}

func TestRunCycle_ResolveFailureWritesNoRecord(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	seedSubscription(t, store, 100, 2, b.ID)
	client.resolveErr[2] = fmt.Errorf("user has not started the bot")

	today := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunCycle(context.Background(), today))
	assert.Equal(t, 0, client.sentTo(2))
	assert.Empty(t, store.records)
}

func TestRunCycle_PartialFailureIsolation(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	a := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	b := seedBirthday(t, store, 100, 3, time.Date(1985, time.March, 11, 0, 0, 0, 0, time.UTC))
	seedSubscription(t, store, 100, 2, a.ID) // A's subscriber fails
	subB := seedSubscription(t, store, 100, 4, b.ID)
	client.sendErr[2] = fmt.Errorf("transport failure")

	today := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunCycle(context.Background(), today))

	require.Len(t, store.records, 1, "B's delivery must not be blocked by A's failure")
	assert.Equal(t, subB.ID, store.records[0].SubscriptionID)

	// A's subscriber is retried on the next tick.
	delete(client.sendErr, 2)
	require.NoError(t, svc.RunCycle(context.Background(), today))
	assert.Equal(t, 1, client.sentTo(2))
	assert.Len(t, store.records, 2)
}

func TestRunCycle_DuplicateInsertIsBenign(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	seedSubscription(t, store, 100, 2, b.ID)

	today := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.RunCycle(context.Background(), today))
	require.Len(t, store.records, 1)

	// Simulate resolver over-inclusion: the subscription comes back as
	// undelivered even though a record exists. The over-included subscription
	// is dispatched again, but the ledger's uniqueness check absorbs the
	// duplicate insert without failing the cycle.
	store.skipAntiJoin = true
	require.NoError(t, svc.RunCycle(context.Background(), today))
	assert.Equal(t, 2, client.sentTo(2), "over-inclusion costs at most a duplicate send")
	assert.Len(t, store.records, 1, "only one record may persist per (subscription, year)")
}

func TestRunCycle_StoreErrorAbortsCycle(t *testing.T) {
	svc, store, _ := newNotifierFixture(t)
	store.listAllErr = fmt.Errorf("connection refused")

	err := svc.RunCycle(context.Background(), time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to list birthdays")
}

func TestRunCycle_ResolverErrorAbortsCycle(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.March, 11, 0, 0, 0, 0, time.UTC))
	seedSubscription(t, store, 100, 2, b.ID)
	store.undeliveredErr = fmt.Errorf("connection refused")

	err := svc.RunCycle(context.Background(), time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Equal(t, 0, len(client.sent))
}

func TestRunCycle_NoBirthdaysToday(t *testing.T) {
	svc, store, client := newNotifierFixture(t)
	b := seedBirthday(t, store, 100, 1, time.Date(1990, time.June, 1, 0, 0, 0, 0, time.UTC))
	seedSubscription(t, store, 100, 2, b.ID)

	require.NoError(t, svc.RunCycle(context.Background(), time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, client.sent)
	assert.Empty(t, store.records)
}
