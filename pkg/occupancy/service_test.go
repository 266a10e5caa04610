package occupancy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"studyspace/pkg/audit"
	"studyspace/pkg/database"
	"studyspace/pkg/models"
	"studyspace/pkg/scope"
	"studyspace/pkg/store"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func strPtr(s string) *string { return &s }

type recordingNotifier struct {
	mu     sync.Mutex
	events []audit.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev audit.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	notifier *recordingNotifier
	now      time.Time

	library models.Library
	branch  models.Branch
	annex   models.Branch
	plan    models.Plan
	student models.Student

	owner scope.Principal
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	f.library = models.Library{Name: "Central Reading Hall"}
	require.NoError(t, db.Create(&f.library).Error)
	f.branch = models.Branch{LibraryID: f.library.ID, Name: "Main"}
	require.NoError(t, db.Create(&f.branch).Error)
	f.annex = models.Branch{LibraryID: f.library.ID, Name: "Annex"}
	require.NoError(t, db.Create(&f.annex).Error)
	f.plan = models.Plan{LibraryID: f.library.ID, Name: "Monthly", DurationDays: 30, PriceCents: 150000}
	require.NoError(t, db.Create(&f.plan).Error)
	f.student = models.Student{LibraryID: f.library.ID, BranchID: f.branch.ID, Username: "asha", Name: "Asha"}
	require.NoError(t, db.Create(&f.student).Error)

	f.owner = scope.Principal{UserID: "owner", LibraryID: f.library.ID, Role: scope.RoleOwner}

	o := Options{
		Notifier: f.notifier,
		Now:      func() time.Time { return f.now },
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.svc = NewService(db, o)
	return f
}

func (f *fixture) resource(t *testing.T, kind models.ResourceKind, branch models.Branch, number string, active bool) models.Resource {
	t.Helper()
	res := models.Resource{
		LibraryID: branch.LibraryID,
		BranchID:  branch.ID,
		Number:    number,
		IsActive:  active,
	}
	require.NoError(t, store.NewResourceRepository().Create(context.Background(), f.db, kind, &res))
	return res
}

func (f *fixture) seat(t *testing.T, number string) models.Resource {
	return f.resource(t, models.KindSeat, f.branch, number, true)
}

func (f *fixture) locker(t *testing.T, number string) models.Resource {
	return f.resource(t, models.KindLocker, f.branch, number, true)
}

type subOpt func(*models.Subscription)

func withSeat(id string) subOpt   { return func(s *models.Subscription) { s.SeatID = strPtr(id) } }
func withLocker(id string) subOpt { return func(s *models.Subscription) { s.LockerID = strPtr(id) } }
func withStatus(st models.SubscriptionStatus) subOpt {
	return func(s *models.Subscription) { s.Status = st }
}

func (f *fixture) subscription(t *testing.T, start, end string, opts ...subOpt) models.Subscription {
	t.Helper()
	sub := models.Subscription{
		LibraryID: f.library.ID,
		BranchID:  f.branch.ID,
		StudentID: f.student.ID,
		PlanID:    f.plan.ID,
		StartDate: day(start),
		EndDate:   day(end),
		Status:    models.StatusActive,
	}
	for _, o := range opts {
		o(&sub)
	}
	require.NoError(t, store.NewSubscriptionRepository().Create(context.Background(), f.db, &sub))
	return sub
}

func (f *fixture) reload(t *testing.T, id string) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, f.db.Where("id = ?", id).Take(&sub).Error)
	return sub
}
