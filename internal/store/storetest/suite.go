package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Tribes
	tr, err := s.Tribes().Create(ctx, &model.Tribe{Name: "evening-runners", MaxMembers: 8, MinMembers: 4})
	if err != nil {
		t.Fatalf("CreateTribe: %v", err)
	}
	if tr.TribeID == "" || tr.Status != model.TribeForming {
		t.Fatalf("CreateTribe: unexpected %+v", tr)
	}
	if got, err := s.Tribes().Get(ctx, tr.TribeID); err != nil || got.Name != "evening-runners" {
		t.Fatalf("GetTribe: got=%v err=%v", got, err)
	}
	if _, err := s.Tribes().Get(ctx, uuid.New().String()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetTribe missing: want ErrNotFound, got %v", err)
	}

	// CAS transition
	if err := s.Tribes().UpdateStatus(ctx, tr.TribeID, model.TribeForming, model.TribeActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := s.Tribes().UpdateStatus(ctx, tr.TribeID, model.TribeForming, model.TribeActive); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("UpdateStatus stale: want ErrConflict, got %v", err)
	}

	// Memberships
	alice := "m-" + uuid.New().String()
	bob := "m-" + uuid.New().String()
	if _, err := s.Memberships().Create(ctx, &model.Membership{TribeID: tr.TribeID, MemberID: alice, Role: model.RoleCreator, Status: model.MembershipActive}); err != nil {
		t.Fatalf("CreateMembership: %v", err)
	}
	if _, err := s.Memberships().Create(ctx, &model.Membership{TribeID: tr.TribeID, MemberID: alice, Status: model.MembershipActive}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate membership: want ErrConflict, got %v", err)
	}
	if _, err := s.Memberships().Create(ctx, &model.Membership{TribeID: tr.TribeID, MemberID: bob, Status: model.MembershipActive}); err != nil {
		t.Fatalf("CreateMembership bob: %v", err)
	}
	if n, err := s.Memberships().CountActive(ctx, tr.TribeID); err != nil || n != 2 {
		t.Fatalf("CountActive: n=%d err=%v", n, err)
	}

	// Messages: sequence strictly increases, tribe activity advances
	var first, second *model.Message
	if first, err = s.Messages().Create(ctx, &model.Message{TribeID: tr.TribeID, MemberID: &alice, Content: "hello", Type: model.MessageText}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if second, err = s.Messages().Create(ctx, &model.Message{TribeID: tr.TribeID, MemberID: &bob, Content: "hi alice", Type: model.MessageText}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("seq not increasing: %d then %d", first.Seq, second.Seq)
	}
	if _, err := s.Messages().Create(ctx, &model.Message{TribeID: uuid.New().String(), Content: "x", Type: model.MessageText}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("CreateMessage unknown tribe: want ErrNotFound, got %v", err)
	}

	// List: newest first
	msgs, err := s.Messages().List(ctx, model.ListMessagesRequest{TribeID: tr.TribeID, Limit: 10})
	if err != nil || len(msgs) != 2 {
		t.Fatalf("List: n=%d err=%v", len(msgs), err)
	}
	if msgs[0].MessageID != second.MessageID {
		t.Fatalf("List order: want newest first")
	}

	// AfterID cursor comes back ascending and excludes the anchor
	after, err := s.Messages().List(ctx, model.ListMessagesRequest{TribeID: tr.TribeID, AfterID: first.MessageID, Limit: 10})
	if err != nil || len(after) != 1 || after[0].MessageID != second.MessageID {
		t.Fatalf("List afterID: got=%v err=%v", after, err)
	}

	// Unread: bob has one unread (alice's), own message excluded
	if n, err := s.Messages().UnreadCount(ctx, tr.TribeID, bob); err != nil || n != 1 {
		t.Fatalf("UnreadCount bob: n=%d err=%v", n, err)
	}
	// MarkRead is idempotent and skips own messages
	if n, err := s.Messages().MarkRead(ctx, tr.TribeID, bob, []string{first.MessageID, second.MessageID}); err != nil || n != 1 {
		t.Fatalf("MarkRead: n=%d err=%v", n, err)
	}
	if n, err := s.Messages().MarkRead(ctx, tr.TribeID, bob, []string{first.MessageID}); err != nil || n != 0 {
		t.Fatalf("MarkRead again: n=%d err=%v", n, err)
	}
	if n, err := s.Messages().UnreadCount(ctx, tr.TribeID, bob); err != nil || n != 0 {
		t.Fatalf("UnreadCount after mark: n=%d err=%v", n, err)
	}

	// Search is case-insensitive substring
	hits, err := s.Messages().Search(ctx, "HELLO", model.ListMessagesRequest{TribeID: tr.TribeID, Limit: 10})
	if err != nil || len(hits) != 1 || hits[0].MessageID != first.MessageID {
		t.Fatalf("Search: got=%v err=%v", hits, err)
	}

	// Delete: non-sender gets false without mutation; sender removes
	if ok, err := s.Messages().DeleteOwned(ctx, first.MessageID, bob); err != nil || ok {
		t.Fatalf("DeleteOwned non-sender: ok=%v err=%v", ok, err)
	}
	if _, err := s.Messages().Get(ctx, first.MessageID); err != nil {
		t.Fatalf("message mutated by failed delete: %v", err)
	}
	if ok, err := s.Messages().DeleteOwned(ctx, first.MessageID, alice); err != nil || !ok {
		t.Fatalf("DeleteOwned sender: ok=%v err=%v", ok, err)
	}
	if _, err := s.Messages().Get(ctx, first.MessageID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get after delete: want ErrNotFound, got %v", err)
	}

	// Activities
	if _, err := s.Activities().Append(ctx, &model.Activity{TribeID: tr.TribeID, MemberID: &alice, Type: model.ActivityMessageSent, Description: "sent a message"}); err != nil {
		t.Fatalf("AppendActivity: %v", err)
	}
	if acts, err := s.Activities().ListRecent(ctx, tr.TribeID, 10); err != nil || len(acts) != 1 {
		t.Fatalf("ListRecent: n=%d err=%v", len(acts), err)
	}

	// Engagements
	rec, err := s.Engagements().Create(ctx, &model.EngagementRecord{TribeID: tr.TribeID, Type: model.EngagementMeetupSuggestion})
	if err != nil {
		t.Fatalf("CreateEngagement: %v", err)
	}
	if up, err := s.Engagements().HasScheduledMeetup(ctx, tr.TribeID); err != nil || !up {
		t.Fatalf("HasScheduledMeetup: up=%v err=%v", up, err)
	}
	if at, err := s.Engagements().LastMeetupAt(ctx, tr.TribeID); err != nil || at != nil {
		t.Fatalf("LastMeetupAt undelivered: at=%v err=%v", at, err)
	}
	if err := s.Engagements().RecordResponse(ctx, rec.EngagementID); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	recs, err := s.Engagements().ListRecent(ctx, tr.TribeID, 10)
	if err != nil || len(recs) != 1 || recs[0].ResponseCount != 1 {
		t.Fatalf("ListRecent engagements: got=%v err=%v", recs, err)
	}
	deliveredAt := time.Now().UTC().Add(-time.Minute)
	if err := s.Engagements().MarkDelivered(ctx, rec.EngagementID, deliveredAt); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if up, err := s.Engagements().HasScheduledMeetup(ctx, tr.TribeID); err != nil || up {
		t.Fatalf("HasScheduledMeetup after delivery: up=%v err=%v", up, err)
	}
	if at, err := s.Engagements().LastMeetupAt(ctx, tr.TribeID); err != nil || at == nil {
		t.Fatalf("LastMeetupAt delivered: at=%v err=%v", at, err)
	}
	if err := s.Engagements().MarkDelivered(ctx, uuid.New().String(), deliveredAt); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("MarkDelivered missing: want ErrNotFound, got %v", err)
	}

	// CountSince sees the remaining message
	if n, err := s.Messages().CountSince(ctx, tr.TribeID, time.Now().Add(-time.Hour)); err != nil || n != 1 {
		t.Fatalf("CountSince: n=%d err=%v", n, err)
	}

	// Tribe delete cascades
	if err := s.Tribes().Delete(ctx, tr.TribeID); err != nil {
		t.Fatalf("DeleteTribe: %v", err)
	}
	if _, err := s.Tribes().Get(ctx, tr.TribeID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetTribe after delete: want ErrNotFound, got %v", err)
	}
}

// RunConcurrentSend exercises the shared-write path: concurrent senders must
// each get a distinct message with a unique sequence, no duplicates, no
// losses.
func RunConcurrentSend(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	tr, err := s.Tribes().Create(ctx, &model.Tribe{Name: "burst-writers", MaxMembers: 8, MinMembers: 2})
	if err != nil {
		t.Fatalf("CreateTribe: %v", err)
	}
	alice := "m-" + uuid.New().String()
	if _, err := s.Memberships().Create(ctx, &model.Membership{TribeID: tr.TribeID, MemberID: alice, Status: model.MembershipActive}); err != nil {
		t.Fatalf("CreateMembership: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Messages().Create(ctx, &model.Message{
				TribeID: tr.TribeID, MemberID: &alice,
				Content: fmt.Sprintf("burst %d", i), Type: model.MessageText,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent CreateMessage: %v", err)
		}
	}

	msgs, err := s.Messages().List(ctx, model.ListMessagesRequest{TribeID: tr.TribeID, Limit: 2 * n})
	if err != nil || len(msgs) != n {
		t.Fatalf("List after burst: n=%d err=%v", len(msgs), err)
	}
	seen := make(map[int64]bool, n)
	for i, m := range msgs {
		if seen[m.Seq] {
			t.Fatalf("duplicate seq %d", m.Seq)
		}
		seen[m.Seq] = true
		if i > 0 && msgs[i-1].Seq <= m.Seq {
			t.Fatalf("list not strictly descending: %d then %d", msgs[i-1].Seq, m.Seq)
		}
	}
}

// RunPaginationWalk verifies that concatenating afterID-walked pages from the
// oldest message reproduces the full ordered list.
func RunPaginationWalk(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	tr, err := s.Tribes().Create(ctx, &model.Tribe{Name: "page-walkers", MaxMembers: 8, MinMembers: 2})
	if err != nil {
		t.Fatalf("CreateTribe: %v", err)
	}
	alice := "m-" + uuid.New().String()
	if _, err := s.Memberships().Create(ctx, &model.Membership{TribeID: tr.TribeID, MemberID: alice, Status: model.MembershipActive}); err != nil {
		t.Fatalf("CreateMembership: %v", err)
	}

	const total = 11
	ids := make([]string, 0, total) // oldest first
	for i := 0; i < total; i++ {
		m, err := s.Messages().Create(ctx, &model.Message{
			TribeID: tr.TribeID, MemberID: &alice,
			Content: fmt.Sprintf("note %d", i), Type: model.MessageText,
		})
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		ids = append(ids, m.MessageID)
	}

	// Walk forward in pages of 3 from the oldest message. Store-level
	// afterID pages come back ascending and exclude the anchor; the last
	// element anchors the next page.
	walked := []string{ids[0]}
	cursor := ids[0]
	for {
		page, err := s.Messages().List(ctx, model.ListMessagesRequest{TribeID: tr.TribeID, AfterID: cursor, Limit: 3})
		if err != nil {
			t.Fatalf("List afterID walk: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			walked = append(walked, m.MessageID)
		}
		cursor = page[len(page)-1].MessageID
	}

	if len(walked) != total {
		t.Fatalf("walk length: got %d want %d", len(walked), total)
	}
	for i, id := range ids {
		if walked[i] != id {
			t.Fatalf("walk order at %d: got %s want %s", i, walked[i], id)
		}
	}
}
