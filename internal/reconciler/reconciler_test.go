package reconciler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studenthub-sync/internal/cache"
	"studenthub-sync/internal/mocks"
	"studenthub-sync/internal/models"
	"studenthub-sync/internal/projector"
	"studenthub-sync/internal/typing"
)

func newTestReconciler(t *testing.T) (*Reconciler, *cache.Store, *mocks.SnapshotFetcherMock) {
	t.Helper()
	store := cache.NewStore()
	fetcher := new(mocks.SnapshotFetcherMock)
	r := New(store, typing.NewTracker(3*time.Second), fetcher, nil, "u1")
	return r, store, fetcher
}

func seed(store *cache.Store, conv models.Conversation, msgs []models.Message) {
	store.Apply(cache.Mutation{
		Name: "seed",
		Fn: func(tx *cache.Tx) {
			tx.SetConversation(conv)
			if msgs != nil {
				tx.SetMessages(conv.ID, msgs)
			}
		},
	})
}

func event(t *testing.T, eventType string, data any) models.PushEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return models.PushEvent{Type: eventType, Data: raw}
}

func TestNewMessageInsertsAndBumpsUnread(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	seed(store, models.Conversation{ID: "c1"}, nil)

	msg := models.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", Content: "hey", CreatedAt: time.Now()}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "c1", Message: msg}))

	msgs := store.Messages("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)

	conv, _ := store.Conversation("c1")
	assert.Equal(t, 1, conv.UnreadCount)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "m1", conv.LastMessage.ID)
}

func TestNewMessageActiveConversationStaysRead(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	seed(store, models.Conversation{ID: "c1"}, nil)
	r.SetActiveConversation("c1")

	msg := models.Message{ID: "m1", SenderID: "u2", CreatedAt: time.Now()}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "c1", Message: msg}))

	conv, _ := store.Conversation("c1")
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestNewMessageActiveConversationSendsReadReceipt(t *testing.T) {
	store := cache.NewStore()
	receipts := new(mocks.ReceiptSenderMock)
	r := New(store, typing.NewTracker(3*time.Second), new(mocks.SnapshotFetcherMock), receipts, "u1")
	seed(store, models.Conversation{ID: "c1"}, nil)
	r.SetActiveConversation("c1")

	receipts.On("SendReadReceipt", "c1", "m1").Return(nil).Once()

	msg := models.Message{ID: "m1", SenderID: "u2", CreatedAt: time.Now()}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "c1", Message: msg}))

	receipts.AssertExpectations(t)
}

func TestNewMessageEchoReplacesPendingInPlace(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	now := time.Now()
	seed(store, models.Conversation{ID: "c1"}, []models.Message{
		{ID: "m1", SenderID: "u2", Content: "earlier", CreatedAt: now.Add(-time.Minute)},
		{ID: "tmp-abc", SenderID: "u1", Content: "hello", Pending: true, CreatedAt: now},
	})

	echo := models.Message{ID: "srv-9", SenderID: "u1", Content: "hello", CreatedAt: now}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "c1", Message: echo}))

	msgs := store.Messages("c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "srv-9", msgs[1].ID)
	assert.False(t, msgs[1].Pending)

	conv, _ := store.Conversation("c1")
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestNewMessageDuplicateDeliveryIgnored(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	now := time.Now()
	seed(store, models.Conversation{ID: "c1"}, []models.Message{
		{ID: "m1", SenderID: "u2", CreatedAt: now},
	})

	dup := models.Message{ID: "m1", SenderID: "u2", CreatedAt: now}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "c1", Message: dup}))

	assert.Len(t, store.Messages("c1"), 1)
	conv, _ := store.Conversation("c1")
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestNewMessageRedeliverySendsSingleReadReceipt(t *testing.T) {
	store := cache.NewStore()
	receipts := new(mocks.ReceiptSenderMock)
	r := New(store, typing.NewTracker(3*time.Second), new(mocks.SnapshotFetcherMock), receipts, "u1")
	seed(store, models.Conversation{ID: "c1"}, nil)
	r.SetActiveConversation("c1")

	receipts.On("SendReadReceipt", "c1", "m1").Return(nil).Once()

	msg := models.Message{ID: "m1", SenderID: "u2", CreatedAt: time.Now()}
	ev := event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "c1", Message: msg})
	r.HandleEvent(ev)
	r.HandleEvent(ev)

	assert.Len(t, store.Messages("c1"), 1)
	receipts.AssertExpectations(t)
}

func TestNewMessageOutOfOrderArrivalKeepsTimestampOrder(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	now := time.Now()
	seed(store, models.Conversation{ID: "c1"}, []models.Message{
		{ID: "m2", SenderID: "u2", CreatedAt: now},
	})

	late := models.Message{ID: "m1", SenderID: "u2", CreatedAt: now.Add(-time.Minute)}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "c1", Message: late}))

	msgs := store.Messages("c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestNewMessageUnknownConversationDropped(t *testing.T) {
	r, store, _ := newTestReconciler(t)

	msg := models.Message{ID: "m1", SenderID: "u2", CreatedAt: time.Now()}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "ghost", Message: msg}))

	assert.Empty(t, store.Messages("ghost"))
	_, ok := store.Conversation("ghost")
	assert.False(t, ok)
}

func TestIncomingMessageReordersProjectedList(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	now := time.Now()
	seed(store, models.Conversation{ID: "a", UpdatedAt: now.Add(-time.Hour)}, nil)
	seed(store, models.Conversation{ID: "b", UnreadCount: 2, IsPinned: true, UpdatedAt: now.Add(-time.Minute)}, nil)
	r.SetActiveConversation("b")

	msg := models.Message{ID: "m1", SenderID: "u2", CreatedAt: now}
	r.HandleEvent(event(t, models.EventNewMessage, models.NewMessageData{ConversationID: "a", Message: msg}))

	out := projector.Project(store.Conversations())
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, 1, out[1].UnreadCount)
}

func TestMessageReadIsIdempotent(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	now := time.Now()
	seed(store, models.Conversation{ID: "c1"}, []models.Message{
		{ID: "m1", SenderID: "u1", CreatedAt: now},
	})

	data := models.MessageReadData{ConversationID: "c1", MessageID: "m1", ReadAt: now}
	r.HandleEvent(event(t, models.EventMessageRead, data))
	afterFirst := store.Messages("c1")
	require.True(t, afterFirst[0].IsRead)
	firstReadAt := *afterFirst[0].ReadAt

	r.HandleEvent(event(t, models.EventMessageRead, data))
	afterSecond := store.Messages("c1")
	assert.True(t, afterSecond[0].IsRead)
	assert.Equal(t, firstReadAt, *afterSecond[0].ReadAt)
}

func TestMessageReadUnknownMessageDropped(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	seed(store, models.Conversation{ID: "c1"}, nil)

	data := models.MessageReadData{ConversationID: "c1", MessageID: "ghost", ReadAt: time.Now()}
	r.HandleEvent(event(t, models.EventMessageRead, data))

	assert.Empty(t, store.Messages("c1"))
}

func TestTypingEventFeedsTracker(t *testing.T) {
	store := cache.NewStore()
	tracker := typing.NewTracker(3 * time.Second)
	r := New(store, tracker, new(mocks.SnapshotFetcherMock), nil, "u1")

	r.HandleEvent(event(t, models.EventTyping, models.TypingData{
		ConversationID: "c1", UserID: "u2", UserName: "Ana", IsTyping: true,
	}))
	users := tracker.TypingUsers("c1")
	require.Len(t, users, 1)
	assert.Equal(t, "Ana", users[0].Name)

	r.HandleEvent(event(t, models.EventTyping, models.TypingData{
		ConversationID: "c1", UserID: "u2", IsTyping: false,
	}))
	assert.Empty(t, tracker.TypingUsers("c1"))
}

func TestTypingEventFromSelfIgnored(t *testing.T) {
	store := cache.NewStore()
	tracker := typing.NewTracker(3 * time.Second)
	r := New(store, tracker, new(mocks.SnapshotFetcherMock), nil, "u1")

	r.HandleEvent(event(t, models.EventTyping, models.TypingData{
		ConversationID: "c1", UserID: "u1", UserName: "Self", IsTyping: true,
	}))
	assert.Empty(t, tracker.TypingUsers("c1"))
}

func TestRefreshPreservesLocalVersionAndPending(t *testing.T) {
	r, store, fetcher := newTestReconciler(t)
	seed(store, models.Conversation{ID: "c1", Name: "old name"}, nil)
	store.Apply(cache.Mutation{
		Name:  "local",
		Local: true,
		Keys:  []cache.Key{cache.ConversationKey("c1")},
		Fn:    func(tx *cache.Tx) {},
	})

	fetcher.On("FetchConversations", mock.Anything).Return([]models.Conversation{
		{ID: "c1", Name: "new name"},
		{ID: "c2", Name: "fresh"},
	}, nil).Once()

	require.NoError(t, r.RefreshConversations(context.Background()))

	c1, _ := store.Conversation("c1")
	assert.Equal(t, "new name", c1.Name)
	assert.True(t, c1.Pending)
	assert.GreaterOrEqual(t, c1.Version, int64(1))

	_, ok := store.Conversation("c2")
	assert.True(t, ok)
	fetcher.AssertExpectations(t)
}

func TestLoadMessagesKeepsPendingSends(t *testing.T) {
	r, store, fetcher := newTestReconciler(t)
	now := time.Now()
	seed(store, models.Conversation{ID: "c1"}, []models.Message{
		{ID: "m1", SenderID: "u2", CreatedAt: now.Add(-time.Minute)},
		{ID: "tmp-x", SenderID: "u1", Content: "in flight", Pending: true, CreatedAt: now},
		{ID: "stale-local", SenderID: "u2", CreatedAt: now.Add(-time.Hour)},
	})

	fetcher.On("FetchMessages", mock.Anything, "c1").Return([]models.Message{
		{ID: "m0", SenderID: "u2", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "m1", SenderID: "u2", CreatedAt: now.Add(-time.Minute)},
	}, nil).Once()

	require.NoError(t, r.LoadMessages(context.Background(), "c1"))

	msgs := store.Messages("c1")
	require.Len(t, msgs, 3)
	assert.Equal(t, "m0", msgs[0].ID)
	assert.Equal(t, "m1", msgs[1].ID)
	assert.Equal(t, "tmp-x", msgs[2].ID)
	assert.True(t, msgs[2].Pending)
	fetcher.AssertExpectations(t)
}

func TestLoadMessagesFetchFailureLeavesCacheUntouched(t *testing.T) {
	r, store, fetcher := newTestReconciler(t)
	seed(store, models.Conversation{ID: "c1"}, []models.Message{{ID: "m1"}})

	fetcher.On("FetchMessages", mock.Anything, "c1").
		Return(([]models.Message)(nil), assert.AnError).Once()

	require.Error(t, r.LoadMessages(context.Background(), "c1"))
	assert.Len(t, store.Messages("c1"), 1)
}

func TestNewConversationEventTriggersRefresh(t *testing.T) {
	r, store, fetcher := newTestReconciler(t)

	done := make(chan struct{})
	fetcher.On("FetchConversations", mock.Anything).
		Run(func(args mock.Arguments) { close(done) }).
		Return([]models.Conversation{{ID: "c7"}}, nil).Once()

	r.HandleEvent(event(t, models.EventNewConversation, models.NewConversationData{ConversationID: "c7"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh was not triggered")
	}

	require.Eventually(t, func() bool {
		_, ok := store.Conversation("c7")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	fetcher.AssertExpectations(t)
}

func TestMalformedEventDataDropped(t *testing.T) {
	r, store, _ := newTestReconciler(t)
	seed(store, models.Conversation{ID: "c1"}, nil)

	r.HandleEvent(models.PushEvent{Type: models.EventNewMessage, Data: json.RawMessage(`{"message":`)})

	assert.Empty(t, store.Messages("c1"))
}
