package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"moringadaily/internal/models"
	"moringadaily/internal/notify"
	"moringadaily/internal/notify/mocks"
	"moringadaily/internal/testutil"
	"moringadaily/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []ws.NewMessageEvent
}

func (r *recordingBroadcaster) BroadcastNewMessage(evt ws.NewMessageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingBroadcaster) snapshot() []ws.NewMessageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ws.NewMessageEvent(nil), r.events...)
}

func TestCanonicalPair(t *testing.T) {
	tests := []struct{ a, b, lo, hi uint }{
		{1, 2, 1, 2},
		{2, 1, 1, 2},
		{7, 3, 3, 7},
	}
	for _, tt := range tests {
		lo, hi := canonicalPair(tt.a, tt.b)
		assert.Equal(t, tt.lo, lo)
		assert.Equal(t, tt.hi, hi)
	}
}

func TestGetOrCreateConversation_Symmetric(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")

	first, created, err := svc.GetOrCreateConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Less(t, first.User1ID, first.User2ID)

	second, created, err := svc.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateConversation_Rejects(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")

	_, _, err := svc.GetOrCreateConversation(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.GetOrCreateConversation(ctx, alice.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrCreateConversation_Concurrent(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[uint]int{}
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, c, err := svc.GetOrCreateConversation(context.Background(), a, b)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[conv.ID]++
			if c {
				created++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
	var count int64
	require.NoError(t, gdb.Model(&models.Conversation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAppendMessage_OrderAndBroadcast(t *testing.T) {
	gdb := testutil.NewDB(t)
	hub := &recordingBroadcaster{}
	svc := NewChatService(gdb, hub, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")
	conv, _, err := svc.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		from, to := alice.ID, bob.ID
		if i%2 == 1 {
			from, to = to, from
		}
		_, err := svc.AppendMessage(ctx, conv.ID, from, to, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	msgs, err := svc.ListMessages(ctx, alice.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Body)
		if i > 0 {
			assert.Greater(t, m.ID, msgs[i-1].ID)
		}
	}

	events := hub.snapshot()
	require.Len(t, events, 10)
	assert.Equal(t, conv.ID, events[0].ConversationID)
	assert.Equal(t, "bob", events[0].RecipientName)
	assert.Equal(t, "m0", events[0].LastMessage)
	assert.Equal(t, "alice", events[1].RecipientName)
}

func TestAppendMessage_Concurrent(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")
	conv, _, err := svc.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AppendMessage(ctx, conv.ID, alice.ID, bob.ID, fmt.Sprintf("c%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	msgs, err := svc.ListMessages(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 25)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].ID, msgs[i-1].ID)
	}
}

func TestAppendMessage_Rejects(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")
	carol := testutil.CreateUser(t, gdb, "carol")
	conv, _, err := svc.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		convID   uint
		from, to uint
		body     string
		want     error
	}{
		{"empty body", conv.ID, alice.ID, bob.ID, "   ", ErrEmptyMessage},
		{"outsider sender", conv.ID, carol.ID, bob.ID, "hi", ErrParticipantMismatch},
		{"outsider recipient", conv.ID, alice.ID, carol.ID, "hi", ErrParticipantMismatch},
		{"self", conv.ID, alice.ID, alice.ID, "hi", ErrParticipantMismatch},
		{"missing conversation", 999, alice.ID, bob.ID, "hi", ErrConversationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AppendMessage(ctx, tt.convID, tt.from, tt.to, tt.body)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var count int64
	require.NoError(t, gdb.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAppendMessage_NotifiesRecipient(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockDispatcher(ctrl)
	svc := NewChatService(gdb, nil, notifier)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")
	conv, _, err := svc.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	notifier.EXPECT().Dispatch(gomock.Any(), notify.Notice{
		UserID: bob.ID, ActorID: alice.ID, Kind: models.NotifyMessage, TargetID: conv.ID, Body: "hello",
	}).Return(fmt.Errorf("queue down"))

	// dispatch failures never fail the send
	_, err = svc.AppendMessage(ctx, conv.ID, alice.ID, bob.ID, "hello")
	assert.NoError(t, err)
}

func TestListMessages_MissingAndForeign(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")
	carol := testutil.CreateUser(t, gdb, "carol")

	msgs, err := svc.ListMessages(ctx, alice.ID, 12345)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	conv, _, err := svc.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.ListMessages(ctx, carol.ID, conv.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMessagesBetween_NeverCreates(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")

	msgs, err := svc.MessagesBetween(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	var count int64
	require.NoError(t, gdb.Model(&models.Conversation{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, svc.SendDirect(ctx, bob.ID, alice.ID, "yo"))
	msgs, err = svc.MessagesBetween(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].SenderName)
}

func TestConversations_ForUser(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewChatService(gdb, nil, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")
	carol := testutil.CreateUser(t, gdb, "carol")

	ids, err := svc.ListConversationsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	c1, _, err := svc.GetOrCreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	c2, _, err := svc.GetOrCreateConversation(ctx, carol.ID, alice.ID)
	require.NoError(t, err)
	_, _, err = svc.GetOrCreateConversation(ctx, bob.ID, carol.ID)
	require.NoError(t, err)

	ids, err = svc.ListConversationsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{c1.ID, c2.ID}, ids)

	convs, err := svc.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	peers := []string{convs[0].PeerName, convs[1].PeerName}
	assert.ElementsMatch(t, []string{"bob", "carol"}, peers)
}
