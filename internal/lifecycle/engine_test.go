package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
	"github.com/tribeapp/tribe-server/internal/store/sqlite"
)

func newEngineWithStore(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	db, err := sqlite.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(db))
	st := sqlite.NewWithDB(db)
	return NewEngine(st, zerolog.Nop()), st
}

func seedMembers(t *testing.T, st store.Store, tribeID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := st.Memberships().Create(context.Background(), &model.Membership{
			TribeID:  tribeID,
			MemberID: string(rune('a' + i)),
			Role:     model.RoleMember,
			Status:   model.MembershipActive,
		})
		require.NoError(t, err)
	}
}

func TestEvaluateTribe_QuietActiveGoesAtRisk(t *testing.T) {
	eng, st := newEngineWithStore(t)
	ctx := context.Background()

	tr, err := st.Tribes().Create(ctx, &model.Tribe{
		Name: "dormant", Status: model.TribeActive, MinMembers: 2, MaxMembers: 8,
	})
	require.NoError(t, err)
	seedMembers(t, st, tr.TribeID, 3)

	// Pretend 15 days have passed since the last activity.
	eng.now = func() time.Time { return time.Now().Add(15 * day) }

	transition, err := eng.EvaluateTribe(ctx, tr.TribeID)
	require.NoError(t, err)
	require.NotNil(t, transition)
	assert.Equal(t, model.TribeActive, transition.From)
	assert.Equal(t, model.TribeAtRisk, transition.To)

	got, err := st.Tribes().Get(ctx, tr.TribeID)
	require.NoError(t, err)
	assert.Equal(t, model.TribeAtRisk, got.Status)

	// The transition leaves an audit trail.
	acts, err := st.Activities().ListRecent(ctx, tr.TribeID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	assert.Equal(t, model.ActivityStatusChanged, acts[0].Type)
}

func TestEvaluateTribe_NoTransitionReturnsNil(t *testing.T) {
	eng, st := newEngineWithStore(t)
	ctx := context.Background()

	tr, err := st.Tribes().Create(ctx, &model.Tribe{
		Name: "healthy", Status: model.TribeActive, MinMembers: 2, MaxMembers: 8,
	})
	require.NoError(t, err)
	seedMembers(t, st, tr.TribeID, 3)

	transition, err := eng.EvaluateTribe(ctx, tr.TribeID)
	require.NoError(t, err)
	assert.Nil(t, transition)
}

func TestEvaluateTribe_DissolvedIsSkipped(t *testing.T) {
	eng, st := newEngineWithStore(t)
	ctx := context.Background()

	tr, err := st.Tribes().Create(ctx, &model.Tribe{
		Name: "gone", Status: model.TribeDissolved, MinMembers: 2, MaxMembers: 8,
	})
	require.NoError(t, err)

	eng.now = func() time.Time { return time.Now().Add(365 * day) }
	transition, err := eng.EvaluateTribe(ctx, tr.TribeID)
	require.NoError(t, err)
	assert.Nil(t, transition)
}
