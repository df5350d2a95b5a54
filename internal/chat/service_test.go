package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribeapp/tribe-server/internal/chat"
	"github.com/tribeapp/tribe-server/internal/events"
	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
	"github.com/tribeapp/tribe-server/internal/store/sqlite"
)

// recordingBroadcaster captures fan-out calls for assertions.
type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []*model.Message
	deleted  []string
	receipts []string
}

func (b *recordingBroadcaster) BroadcastNewMessage(msg *model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *recordingBroadcaster) BroadcastMessageDeleted(tribeID, messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, messageID)
}

func (b *recordingBroadcaster) BroadcastReadReceipt(tribeID, memberID string, messageIDs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts = append(b.receipts, memberID)
}

func newTestService(t *testing.T) (*chat.Service, store.Store, *recordingBroadcaster) {
	t.Helper()
	db, err := sqlite.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(db))

	st := sqlite.NewWithDB(db)
	bc := &recordingBroadcaster{}
	svc := chat.NewService(st, events.NewBus(16), bc, nil, zerolog.Nop(), 0)
	return svc, st, bc
}

func seedTribe(t *testing.T, st store.Store, members ...string) string {
	t.Helper()
	ctx := context.Background()
	tr, err := st.Tribes().Create(ctx, &model.Tribe{
		Name:       "evening-runners",
		Status:     model.TribeActive,
		MinMembers: 2,
		MaxMembers: 8,
	})
	require.NoError(t, err)
	for i, m := range members {
		role := model.RoleMember
		if i == 0 {
			role = model.RoleCreator
		}
		_, err := st.Memberships().Create(ctx, &model.Membership{
			TribeID:  tr.TribeID,
			MemberID: m,
			Role:     role,
			Status:   model.MembershipActive,
		})
		require.NoError(t, err)
	}
	return tr.TribeID
}

func TestSend_RequiresActiveMembership(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice")

	_, err := svc.Send(ctx, tribeID, "stranger", "hi", model.MessageText, nil)
	assert.ErrorIs(t, err, model.ErrForbidden)

	// An unknown tribe is indistinguishable from a missing membership.
	_, err = svc.Send(ctx, "no-such-tribe", "alice", "hi", model.MessageText, nil)
	assert.ErrorIs(t, err, model.ErrForbidden)

	// An inactive membership is refused too.
	require.NoError(t, st.Memberships().UpdateStatus(ctx, tribeID, "alice", model.MembershipInactive))
	_, err = svc.Send(ctx, tribeID, "alice", "hi", model.MessageText, nil)
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestSend_ValidatesInput(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice")

	_, err := svc.Send(ctx, tribeID, "alice", "", model.MessageText, nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Send(ctx, tribeID, "alice", "hi", "BOGUS", nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Send(ctx, tribeID, "alice", string(long), model.MessageText, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSend_AssignsSequenceAndBroadcasts(t *testing.T) {
	svc, st, bc := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice", "bob")

	m1, err := svc.Send(ctx, tribeID, "alice", "first", model.MessageText, nil)
	require.NoError(t, err)
	m2, err := svc.Send(ctx, tribeID, "bob", "second", model.MessageText, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), m1.Seq)
	assert.Equal(t, int64(2), m2.Seq)
	assert.Len(t, bc.messages, 2)

	// Sending advances the tribe's activity marker.
	tr, err := st.Tribes().Get(ctx, tribeID)
	require.NoError(t, err)
	assert.False(t, tr.LastActivityAt.Before(m1.SentAt))
}

func TestList_NewestFirstAndCursors(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice")

	var ids []string
	for _, text := range []string{"one", "two", "three", "four"} {
		m, err := svc.Send(ctx, tribeID, "alice", text, model.MessageText, nil)
		require.NoError(t, err)
		ids = append(ids, m.MessageID)
	}

	msgs, err := svc.List(ctx, model.ListMessagesRequest{TribeID: tribeID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "four", msgs[0].Content)
	assert.Equal(t, "one", msgs[3].Content)

	// afterId walks forward from an anchor, still returned newest first.
	msgs, err = svc.List(ctx, model.ListMessagesRequest{TribeID: tribeID, Limit: 10, AfterID: ids[1]})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "four", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)

	// beforeId pages backward excluding the anchor.
	msgs, err = svc.List(ctx, model.ListMessagesRequest{TribeID: tribeID, Limit: 10, BeforeID: ids[2]})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)

	// Both cursors at once is a caller error.
	_, err = svc.List(ctx, model.ListMessagesRequest{TribeID: tribeID, BeforeID: ids[0], AfterID: ids[1]})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestList_AfterIDWalkReproducesHistory(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice")

	const total = 10
	var ids []string // oldest first
	for i := 0; i < total; i++ {
		m, err := svc.Send(ctx, tribeID, "alice", fmt.Sprintf("note %d", i), model.MessageText, nil)
		require.NoError(t, err)
		ids = append(ids, m.MessageID)
	}

	// Each page is newest first; its first element anchors the next page.
	// Concatenating all pages from the oldest message reproduces history.
	walked := []string{ids[0]}
	cursor := ids[0]
	for {
		page, err := svc.List(ctx, model.ListMessagesRequest{TribeID: tribeID, AfterID: cursor, Limit: 3})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for i := len(page) - 1; i >= 0; i-- {
			walked = append(walked, page[i].MessageID)
		}
		cursor = page[0].MessageID
	}
	assert.Equal(t, ids, walked)
}

func TestReadState(t *testing.T) {
	svc, st, bc := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice", "bob")

	m1, err := svc.Send(ctx, tribeID, "alice", "hello bob", model.MessageText, nil)
	require.NoError(t, err)
	_, err = svc.Send(ctx, tribeID, "alice", "still there?", model.MessageText, nil)
	require.NoError(t, err)

	// Own messages never count as unread.
	n, err := svc.UnreadCount(ctx, tribeID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = svc.UnreadCount(ctx, tribeID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, svc.MarkRead(ctx, tribeID, "bob", []string{m1.MessageID}))
	n, err = svc.UnreadCount(ctx, tribeID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, bc.receipts, 1)

	// Re-marking is silent and emits no second receipt.
	require.NoError(t, svc.MarkRead(ctx, tribeID, "bob", []string{m1.MessageID}))
	assert.Len(t, bc.receipts, 1)

	require.NoError(t, svc.MarkAllRead(ctx, tribeID, "bob"))
	n, err = svc.UnreadCount(ctx, tribeID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDelete_OnlySenderAndSilentMiss(t *testing.T) {
	svc, st, bc := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice", "bob")

	msg, err := svc.Send(ctx, tribeID, "alice", "oops", model.MessageText, nil)
	require.NoError(t, err)

	// A non-sender gets false, and the message survives.
	deleted, err := svc.Delete(ctx, msg.MessageID, "bob")
	require.NoError(t, err)
	assert.False(t, deleted)
	_, err = svc.Get(ctx, msg.MessageID)
	require.NoError(t, err)

	// A missing message reports false rather than an error.
	deleted, err = svc.Delete(ctx, "no-such-message", "alice")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, bc.deleted)

	deleted, err = svc.Delete(ctx, msg.MessageID, "alice")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{msg.MessageID}, bc.deleted)

	_, err = svc.Get(ctx, msg.MessageID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice")

	_, err := svc.Send(ctx, tribeID, "alice", "Pizza night on Friday?", model.MessageText, nil)
	require.NoError(t, err)
	_, err = svc.Send(ctx, tribeID, "alice", "game night instead", model.MessageText, nil)
	require.NoError(t, err)

	msgs, err := svc.Search(ctx, tribeID, "pizza", model.ListMessagesRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Pizza")

	_, err = svc.Search(ctx, tribeID, "", model.ListMessagesRequest{})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSendSystem_NoMembershipRequired(t *testing.T) {
	svc, st, bc := newTestService(t)
	ctx := context.Background()
	tribeID := seedTribe(t, st, "alice")

	msg, err := svc.SendSystem(ctx, tribeID, "Icebreaker: two truths and a lie", model.MessageAIPrompt, nil)
	require.NoError(t, err)
	assert.Nil(t, msg.MemberID)
	assert.Equal(t, model.MessageAIPrompt, msg.Type)
	assert.Len(t, bc.messages, 1)

	// System messages count as unread for everyone.
	n, err := svc.UnreadCount(ctx, tribeID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
