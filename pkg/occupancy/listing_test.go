package occupancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyspace/pkg/models"
	"studyspace/pkg/scope"
)

func TestListBranchResourceOccupancy(t *testing.T) {
	f := newFixture(t) // now is 2025-06-15 12:00 UTC
	a := f.seat(t, "A")
	b := f.seat(t, "B")
	c := f.seat(t, "C")
	d := f.seat(t, "D")
	f.subscription(t, "2025-06-01", "2025-06-16", withSeat(a.ID))
	f.subscription(t, "2025-06-01", "2025-06-14", withSeat(b.ID))
	f.subscription(t, "2025-06-10", "2025-07-10", withSeat(d.ID), withStatus(models.StatusPending))
	f.resource(t, models.KindSeat, f.annex, "A", true)

	got, err := f.svc.ListBranchResourceOccupancy(context.Background(), f.owner, f.branch.ID, models.KindSeat)
	require.NoError(t, err)
	require.Len(t, got, 4)

	occupied := map[string]bool{}
	for _, r := range got {
		occupied[r.ID] = r.IsOccupied
		assert.True(t, r.IsActive)
	}
	assert.Equal(t, map[string]bool{a.ID: true, b.ID: false, c.ID: false, d.ID: false}, occupied)
	assert.Equal(t, []string{"A", "B", "C", "D"}, []string{got[0].Number, got[1].Number, got[2].Number, got[3].Number})
}

func TestListBranchResourceOccupancyFollowsClock(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	f.subscription(t, "2025-06-01", "2025-06-16", withSeat(seat.ID))

	got, err := f.svc.ListBranchResourceOccupancy(context.Background(), f.owner, f.branch.ID, models.KindSeat)
	require.NoError(t, err)
	assert.True(t, got[0].IsOccupied)

	f.now = day("2025-06-17")
	got, err = f.svc.ListBranchResourceOccupancy(context.Background(), f.owner, f.branch.ID, models.KindSeat)
	require.NoError(t, err)
	assert.False(t, got[0].IsOccupied)
}

func TestListBranchResourceOccupancyLockers(t *testing.T) {
	f := newFixture(t)
	locker := f.locker(t, "L1")
	f.seat(t, "S1")
	f.subscription(t, "2025-06-01", "2025-06-30", withLocker(locker.ID))

	got, err := f.svc.ListBranchResourceOccupancy(context.Background(), f.owner, f.branch.ID, models.KindLocker)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "L1", got[0].Number)
	assert.True(t, got[0].IsOccupied)
}

func TestListBranchResourceOccupancyErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListBranchResourceOccupancy(context.Background(), f.owner, "missing", models.KindSeat)
	assert.ErrorIs(t, err, ErrNotFound)

	outsider := scope.Principal{UserID: "x", LibraryID: "elsewhere", Role: scope.RoleOwner}
	_, err = f.svc.ListBranchResourceOccupancy(context.Background(), outsider, f.branch.ID, models.KindSeat)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := f.svc.ListBranchResourceOccupancy(context.Background(), f.owner, f.branch.ID, models.KindSeat)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
