package tribe_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribeapp/tribe-server/internal/events"
	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
	"github.com/tribeapp/tribe-server/internal/store/sqlite"
	"github.com/tribeapp/tribe-server/internal/tribe"
)

func newService(t *testing.T) (*tribe.Service, store.Store, *events.Bus) {
	t.Helper()
	db, err := sqlite.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(db))

	st := sqlite.NewWithDB(db)
	bus := events.NewBus(16)
	return tribe.NewService(st, bus, zerolog.Nop()), st, bus
}

func TestCreate_StartsFormingWithCreator(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "Weekend Hikers", "alice", false, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, model.TribeForming, tr.Status)
	assert.Equal(t, 4, tr.MinMembers)
	assert.Equal(t, 8, tr.MaxMembers)

	m, err := st.Memberships().Get(ctx, tr.TribeID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCreator, m.Role)
	assert.Equal(t, model.MembershipActive, m.Status)
}

func TestCreate_Validates(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "alice", false, 0, 0)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, "Hikers", "", false, 0, 0)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, "Hikers", "alice", false, 6, 4)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestJoin_EnforcesUniquenessAndCapacity(t *testing.T) {
	svc, _, bus := newService(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "Tiny", "alice", false, 2, 2)
	require.NoError(t, err)

	_, err = svc.Join(ctx, tr.TribeID, "bob")
	require.NoError(t, err)

	// Joins surface on the bus for the lifecycle sweeper.
	evt := <-bus.Subscribe()
	assert.Equal(t, events.KindMembershipChange, evt.Kind)
	assert.Equal(t, "bob", evt.MemberID)

	// Re-joining is a conflict, not a second membership.
	_, err = svc.Join(ctx, tr.TribeID, "bob")
	assert.ErrorIs(t, err, model.ErrConflict)

	// The capacity bound holds.
	_, err = svc.Join(ctx, tr.TribeID, "carol")
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestJoin_RefusesDissolvedAndMissing(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "Ghosts", "alice", false, 2, 8)
	require.NoError(t, err)
	require.NoError(t, st.Tribes().UpdateStatus(ctx, tr.TribeID, model.TribeForming, model.TribeDissolved))

	_, err = svc.Join(ctx, tr.TribeID, "bob")
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = svc.Join(ctx, "no-such-tribe", "bob")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLeave(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "Runners", "alice", false, 2, 8)
	require.NoError(t, err)
	_, err = svc.Join(ctx, tr.TribeID, "bob")
	require.NoError(t, err)

	require.NoError(t, svc.Leave(ctx, tr.TribeID, "bob"))
	m, err := st.Memberships().Get(ctx, tr.TribeID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.MembershipLeft, m.Status)

	n, err := st.Memberships().CountActive(ctx, tr.TribeID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, svc.Leave(ctx, tr.TribeID, "nobody"), model.ErrNotFound)
}

func TestMembersAndActivity(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, "Readers", "alice", true, 2, 8)
	require.NoError(t, err)
	_, err = svc.Join(ctx, tr.TribeID, "bob")
	require.NoError(t, err)

	members, err := svc.Members(ctx, tr.TribeID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	acts, err := svc.RecentActivity(ctx, tr.TribeID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	// Newest first: bob's join precedes the creation entry.
	assert.Equal(t, model.ActivityMemberJoined, acts[0].Type)

	_, err = svc.Members(ctx, "no-such-tribe")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
