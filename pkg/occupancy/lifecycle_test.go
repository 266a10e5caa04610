package occupancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyspace/pkg/audit"
	"studyspace/pkg/models"
	"studyspace/pkg/scope"
)

func TestCreateSubscription(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	locker := f.locker(t, "L1")

	sub, err := f.svc.CreateSubscription(context.Background(), f.owner, SubscriptionInput{
		BranchID:  f.branch.ID,
		StudentID: f.student.ID,
		PlanID:    f.plan.ID,
		SeatID:    strPtr(seat.ID),
		LockerID:  strPtr(locker.ID),
		StartDate: day("2025-07-01"),
		Status:    models.StatusActive,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, f.library.ID, sub.LibraryID)
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.True(t, sub.EndDate.Equal(day("2025-07-31")), "end date follows plan duration")
	assert.Equal(t, []string{audit.EventSubscriptionCreated}, f.notifier.types())

	stored := f.reload(t, sub.ID)
	assert.Equal(t, seat.ID, *stored.SeatID)
}

func TestCreateSubscriptionConflictsWithPending(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	pending := f.subscription(t, "2025-07-01", "2025-07-31", withSeat(seat.ID), withStatus(models.StatusPending))

	_, err := f.svc.CreateSubscription(context.Background(), f.owner, SubscriptionInput{
		BranchID:  f.branch.ID,
		StudentID: f.student.ID,
		PlanID:    f.plan.ID,
		SeatID:    strPtr(seat.ID),
		StartDate: day("2025-07-20"),
		EndDate:   day("2025-08-05"),
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, pending.ID, conflict.ConflictID)

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateSubscriptionStudentSelfService(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	input := SubscriptionInput{
		BranchID:  f.branch.ID,
		StudentID: f.student.ID,
		PlanID:    f.plan.ID,
		SeatID:    strPtr(seat.ID),
		StartDate: day("2025-07-01"),
	}

	self := scope.Principal{UserID: f.student.Username, LibraryID: f.library.ID, Role: scope.RoleStudent}
	sub, err := f.svc.CreateSubscription(context.Background(), self, input)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sub.Status)

	input.SeatID = nil
	input.Status = models.StatusActive
	_, err = f.svc.CreateSubscription(context.Background(), self, input)
	assert.ErrorIs(t, err, ErrUnauthorized)

	input.Status = ""
	someoneElse := scope.Principal{UserID: "ravi", LibraryID: f.library.ID, Role: scope.RoleStudent}
	_, err = f.svc.CreateSubscription(context.Background(), someoneElse, input)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateSubscriptionValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSubscription(context.Background(), f.owner, SubscriptionInput{Status: models.StatusExpired})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	for _, field := range []string{"branchId", "studentId", "planId", "startDate", "status"} {
		assert.Contains(t, vErr.FieldErrors, field)
	}

	_, err = f.svc.CreateSubscription(context.Background(), f.owner, SubscriptionInput{
		BranchID: f.branch.ID, StudentID: f.student.ID, PlanID: f.plan.ID,
		StartDate: day("2025-07-10"), EndDate: day("2025-07-01"),
	})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = f.svc.CreateSubscription(context.Background(), f.owner, SubscriptionInput{
		BranchID: "missing", StudentID: f.student.ID, PlanID: f.plan.ID, StartDate: day("2025-07-01"),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivate(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	pending := f.subscription(t, "2025-07-01", "2025-07-31", withSeat(seat.ID), withStatus(models.StatusPending))

	got, err := f.svc.Activate(context.Background(), f.owner, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	_, err = f.svc.Activate(context.Background(), f.owner, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestActivateRejectsWhenSeatTaken(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	pending := f.subscription(t, "2025-07-01", "2025-07-31", withSeat(seat.ID), withStatus(models.StatusPending))
	// the default reassignment policy ignores pending holders
	other := f.subscription(t, "2025-06-01", "2025-06-30")
	_, err := reassign(f, other.ID, ResourceUpdate{SeatID: Set(seat.ID), EndDate: Set(day("2025-07-05"))})
	require.NoError(t, err)

	_, err = f.svc.Activate(context.Background(), f.owner, pending.ID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, other.ID, conflict.ConflictID)
	assert.Equal(t, models.StatusPending, f.reload(t, pending.ID).Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	sub := f.subscription(t, "2025-06-01", "2025-06-30", withSeat(seat.ID))

	got, err := f.svc.Cancel(context.Background(), f.owner, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	avail, err := f.svc.CheckAvailability(context.Background(), AvailabilityParams{
		Principal: f.owner, Kind: models.KindSeat, ResourceID: seat.ID,
		Start: day("2025-06-10"), End: day("2025-06-20"),
	})
	require.NoError(t, err)
	assert.True(t, avail.Available)

	_, err = f.svc.Cancel(context.Background(), f.owner, sub.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	student := scope.Principal{UserID: "asha", LibraryID: f.library.ID, Role: scope.RoleStudent}
	_, err = f.svc.Cancel(context.Background(), student, sub.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestExtend(t *testing.T) {
	f := newFixture(t)
	seat := f.seat(t, "1")
	sub := f.subscription(t, "2025-06-01", "2025-06-30", withSeat(seat.ID))
	f.subscription(t, "2025-07-15", "2025-07-31", withSeat(seat.ID), withStatus(models.StatusPending))

	got, err := f.svc.Extend(context.Background(), ExtendParams{Principal: f.owner, SubscriptionID: sub.ID, EndDate: day("2025-07-10")})
	require.NoError(t, err)
	assert.True(t, got.EndDate.Equal(day("2025-07-10")))

	// extensions respect pending holders
	_, err = f.svc.Extend(context.Background(), ExtendParams{Principal: f.owner, SubscriptionID: sub.ID, EndDate: day("2025-07-20")})
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = f.svc.Extend(context.Background(), ExtendParams{Principal: f.owner, SubscriptionID: sub.ID, EndDate: day("2025-06-20")})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "endDate")

	assert.Equal(t, []string{audit.EventSubscriptionExtended}, f.notifier.types())
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	overdue := f.subscription(t, "2025-05-01", "2025-06-10")
	running := f.subscription(t, "2025-06-01", "2025-06-30")
	pending := f.subscription(t, "2025-05-01", "2025-06-01", withStatus(models.StatusPending))

	n, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.StatusExpired, f.reload(t, overdue.ID).Status)
	assert.Equal(t, models.StatusActive, f.reload(t, running.ID).Status)
	assert.Equal(t, models.StatusPending, f.reload(t, pending.ID).Status)
	assert.Equal(t, []string{audit.EventSubscriptionsExpired}, f.notifier.types())

	n, err = f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetSubscription(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(t, "2025-06-01", "2025-06-30")

	got, err := f.svc.GetSubscription(context.Background(), f.owner, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	self := scope.Principal{UserID: "asha", LibraryID: f.library.ID, Role: scope.RoleStudent}
	_, err = f.svc.GetSubscription(context.Background(), self, sub.ID)
	assert.NoError(t, err)

	other := scope.Principal{UserID: "ravi", LibraryID: f.library.ID, Role: scope.RoleStudent}
	_, err = f.svc.GetSubscription(context.Background(), other, sub.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.GetSubscription(context.Background(), f.owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
