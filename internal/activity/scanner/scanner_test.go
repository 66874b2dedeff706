package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"crono-backend/internal/activity/domain"
	"crono-backend/internal/activity/repository"
	"crono-backend/internal/notification"
	"crono-backend/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func ptr[T any](v T) *T { return &v }

// recordingNotifier captures every message; failFor and panicFor select
// activities whose send misbehaves
type recordingNotifier struct {
	mu       sync.Mutex
	sent     []notification.Message
	err      error
	failFor  map[string]error
	panicFor string

	afterSend func()
}

func (n *recordingNotifier) Send(_ context.Context, msg notification.Message) (notification.DeliveryResult, error) {
	if msg.ActivityID == n.panicFor {
		panic("notifier exploded")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failFor[msg.ActivityID]; err != nil {
		return notification.DeliveryResult{Channel: notification.ChannelEmail}, err
	}
	if n.err != nil {
		return notification.DeliveryResult{Channel: notification.ChannelEmail}, n.err
	}
	n.sent = append(n.sent, msg)
	if n.afterSend != nil {
		n.afterSend()
	}
	return notification.DeliveryResult{Channel: notification.ChannelEmail, ID: "m"}, nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// faultyStore injects store failures on top of the in-memory store
type faultyStore struct {
	*repository.MemoryStore
	findDueErr   error
	updateErr    map[string]error
	deleteErr    map[string]error
	blockOwner   bool
	parentLookup error
}

func (f *faultyStore) FindDue(ctx context.Context, shape domain.Shape, now time.Time, grace time.Duration) ([]*domain.Activity, error) {
	if f.findDueErr != nil {
		return nil, f.findDueErr
	}
	return f.MemoryStore.FindDue(ctx, shape, now, grace)
}

func (f *faultyStore) FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error) {
	if f.parentLookup != nil && ref.Shape == domain.ShapeStandalone {
		return nil, f.parentLookup
	}
	return f.MemoryStore.FindByID(ctx, ref)
}

func (f *faultyStore) Update(ctx context.Context, ref domain.ActivityRef, p domain.ActivityPatch) error {
	if err := f.updateErr[ref.ID]; err != nil {
		return err
	}
	return f.MemoryStore.Update(ctx, ref, p)
}

func (f *faultyStore) Delete(ctx context.Context, ref domain.ActivityRef) error {
	if err := f.deleteErr[ref.ID]; err != nil {
		return err
	}
	return f.MemoryStore.Delete(ctx, ref)
}

func (f *faultyStore) FindOwner(ctx context.Context, id string) (*domain.Owner, error) {
	if f.blockOwner {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.MemoryStore.FindOwner(ctx, id)
}

type fixture struct {
	store    *faultyStore
	notifier *recordingNotifier
	clock    *clock.Manual
	loc      *time.Location
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	mem := repository.NewMemoryStore()
	mem.PutOwner(domain.Owner{ID: "u1", Name: "Ana", Email: "ana@example.com"})
	return &fixture{
		store:    &faultyStore{MemoryStore: mem},
		notifier: &recordingNotifier{},
		clock:    clock.NewManual(now),
		loc:      loc,
	}
}

func (f *fixture) scanner(t *testing.T, mutate ...func(*Config)) *Scanner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Location = f.loc
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg, f.store, f.store, f.store, f.notifier, f.clock, zaptest.NewLogger(t))
}

func (f *fixture) create(t *testing.T, a *domain.Activity) {
	t.Helper()
	if a.OwnerID == "" {
		a.OwnerID = "u1"
	}
	if a.Shape == "" {
		a.Shape = domain.ShapeStandalone
	}
	require.NoError(t, f.store.Create(context.Background(), a))
}

func (f *fixture) get(t *testing.T, id string, shape domain.Shape) *domain.Activity {
	t.Helper()
	a, err := f.store.MemoryStore.FindByID(context.Background(), domain.ActivityRef{ID: id, OwnerID: "u1", Shape: shape})
	require.NoError(t, err)
	return a
}

var baseNow = time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC) // Monday 10:00 in Sao Paulo

func TestRunCycle_DedupAcrossShapes(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)

	f.create(t, &domain.Activity{ID: "card", Title: "Casa"})
	f.create(t, &domain.Activity{ID: "a1", Title: "Pagar conta", DueDate: &due})
	f.create(t, &domain.Activity{ID: "a1", Shape: domain.ShapeEmbedded, Title: "Pagar conta", DueDate: &due})
	f.create(t, &domain.Activity{ID: "e1", Shape: domain.ShapeEmbedded, ParentID: ptr("card"), DueDate: &due})
	f.create(t, &domain.Activity{ID: "e2", Shape: domain.ShapeEmbedded, ParentID: ptr("gone"), DueDate: &due})

	report, err := f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Count(OutcomeNotified))
	require.Equal(t, 2, f.notifier.count())
	ids := []string{f.notifier.sent[0].ActivityID, f.notifier.sent[1].ActivityID}
	assert.ElementsMatch(t, []string{"a1", "e2"}, ids)

	assert.Equal(t, 0, f.get(t, "a1", domain.ShapeEmbedded).OverdueEmailCount, "embedded copy untouched")
	assert.Equal(t, 0, f.get(t, "e1", domain.ShapeEmbedded).OverdueEmailCount, "shadowed copy untouched")
}

func TestRunCycle_ParentLookupFailureSkipsEmbedded(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)
	f.create(t, &domain.Activity{ID: "e1", Shape: domain.ShapeEmbedded, ParentID: ptr("card"), DueDate: &due})
	f.create(t, &domain.Activity{ID: "e2", Shape: domain.ShapeEmbedded, DueDate: &due})
	f.store.parentLookup = errors.New("connection reset")

	report, err := f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "e2", f.notifier.sent[0].ActivityID)
}

func TestRunCycle_ReminderIsTerminal(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-5 * time.Minute)
	f.create(t, &domain.Activity{ID: "card", Title: "Saúde", Color: "#ff0000"})
	f.create(t, &domain.Activity{
		ID: "r1", Title: "Tomar remédio", ParentID: ptr("card"),
		Reminder: true, Recurring: true, DueDate: &due,
	})

	report, err := f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeArchived))
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, notification.KindReminder, f.notifier.sent[0].Kind)
	assert.Equal(t, "Lembrete: Tomar remédio", f.notifier.sent[0].Subject)

	assert.Nil(t, f.get(t, "r1", domain.ShapeStandalone))

	snaps, err := f.store.ListSnapshots(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	s := snaps[0]
	assert.Equal(t, "r1", s.OriginalID)
	assert.False(t, s.Recoverable)
	assert.True(t, s.Recurring)
	assert.True(t, baseNow.Equal(s.CompletedAt))
	require.NotNil(t, s.CardTitle)
	assert.Equal(t, "Saúde", *s.CardTitle)
	require.NotNil(t, s.CardColor)
	assert.Equal(t, "#ff0000", *s.CardColor)

	// nothing left to fire on the next cycle
	f.clock.Advance(time.Minute)
	report, err = f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
}

func TestRunCycle_RecurringAbandonedAfterThreeMisses(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-10 * 24 * time.Hour)
	f.create(t, &domain.Activity{ID: "rec", Title: "Academia", Recurring: true, DueDate: &due})
	s := f.scanner(t)

	for cycle := 1; cycle <= 2; cycle++ {
		report, err := s.RunCycle(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, report.Count(OutcomeRolledOver), "cycle %d", cycle)

		a := f.get(t, "rec", domain.ShapeStandalone)
		require.NotNil(t, a)
		assert.Equal(t, cycle, a.MissedOccurrences)
		assert.Zero(t, a.OverdueEmailCount)
		assert.Nil(t, a.LastOverdueEmailAt)
		assert.True(t, due.AddDate(0, 0, cycle).Equal(*a.DueDate))
		f.clock.Advance(time.Minute)
	}

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeAbandoned))
	assert.Nil(t, f.get(t, "rec", domain.ShapeStandalone))
	assert.Equal(t, 3, f.notifier.count())

	snaps, err := f.store.ListSnapshots(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRunCycle_WeekdayRollover(t *testing.T) {
	f := newFixture(t, baseNow)
	due := time.Date(2026, 3, 2, 9, 0, 0, 0, f.loc) // Monday 09:00
	f.create(t, &domain.Activity{
		ID: "rec", Recurring: true, DueDate: &due,
		Weekdays: []domain.WeekdayCode{"wed", "fri"},
	})

	report, err := f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeRolledOver))

	a := f.get(t, "rec", domain.ShapeStandalone)
	want := time.Date(2026, 3, 4, 9, 0, 0, 0, f.loc)
	assert.True(t, want.Equal(*a.DueDate), "got %s", a.DueDate.In(f.loc))
}

func TestRunCycle_OneOffNotifyAndCooldown(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)
	f.create(t, &domain.Activity{ID: "a", Title: "Relatório", DueDate: &due})
	s := f.scanner(t)

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeNotified))
	a := f.get(t, "a", domain.ShapeStandalone)
	assert.Equal(t, 1, a.OverdueEmailCount)
	require.NotNil(t, a.LastOverdueEmailAt)
	assert.True(t, baseNow.Equal(*a.LastOverdueEmailAt))

	f.clock.Advance(time.Hour)
	report, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeIneligible))

	f.clock.Advance(23 * time.Hour)
	report, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeNotified))
	assert.Equal(t, 2, f.get(t, "a", domain.ShapeStandalone).OverdueEmailCount)

	f.clock.Advance(48 * time.Hour)
	report, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeIneligible), "max sends reached")
	assert.NotNil(t, f.get(t, "a", domain.ShapeStandalone), "one-off activities are never deleted")
	assert.Equal(t, 2, f.notifier.count())
}

func TestRunCycle_CooldownLeavesActivityUnmutated(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-2 * 24 * time.Hour)
	last := baseNow.Add(-10 * time.Minute)
	f.create(t, &domain.Activity{ID: "a", DueDate: &due, OverdueEmailCount: 1, LastOverdueEmailAt: &last})

	report, err := f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(OutcomeIneligible))
	assert.Zero(t, f.notifier.count())

	a := f.get(t, "a", domain.ShapeStandalone)
	assert.Equal(t, 1, a.OverdueEmailCount)
	assert.True(t, last.Equal(*a.LastOverdueEmailAt))
}

func TestRunCycle_NoRecipient(t *testing.T) {
	f := newFixture(t, baseNow)
	f.store.PutOwner(domain.Owner{ID: "mute", Name: "Sem email"})
	due := baseNow.Add(-time.Hour)
	f.create(t, &domain.Activity{ID: "a", OwnerID: "mute", DueDate: &due})
	f.create(t, &domain.Activity{ID: "b", OwnerID: "ghost", DueDate: &due})

	report, err := f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(OutcomeNoRecipient))
	assert.Zero(t, f.notifier.count())
}

func TestRunCycle_DispatchFailurePolicies(t *testing.T) {
	due := baseNow.Add(-time.Hour)
	boom := errors.New("smtp unavailable")

	t.Run("commit", func(t *testing.T) {
		f := newFixture(t, baseNow)
		f.notifier.err = boom
		f.create(t, &domain.Activity{ID: "a", DueDate: &due})
		f.create(t, &domain.Activity{ID: "r", Reminder: true, DueDate: &due})

		report, err := f.scanner(t).RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Count(OutcomeNotified))
		assert.Equal(t, 1, report.Count(OutcomeFailed))
		assert.Equal(t, 2, report.DispatchErrors)
		assert.Equal(t, 1, f.get(t, "a", domain.ShapeStandalone).OverdueEmailCount)
		assert.NotNil(t, f.get(t, "r", domain.ShapeStandalone), "reminder kept for retry")
	})

	t.Run("retry", func(t *testing.T) {
		f := newFixture(t, baseNow)
		f.notifier.err = boom
		f.create(t, &domain.Activity{ID: "a", DueDate: &due})

		s := f.scanner(t, func(c *Config) { c.Dispatch = DispatchRetry })
		report, err := s.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Count(OutcomeFailed))
		assert.Zero(t, f.get(t, "a", domain.ShapeStandalone).OverdueEmailCount)

		f.notifier.err = nil
		report, err = s.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Count(OutcomeNotified))
	})
}

func TestRunCycle_FailuresAreIsolated(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)
	for _, id := range []string{"ok1", "bad-update", "boom", "ok2"} {
		f.create(t, &domain.Activity{ID: id, DueDate: &due})
	}
	f.create(t, &domain.Activity{ID: "bad-delete", Reminder: true, DueDate: &due})

	f.store.updateErr = map[string]error{"bad-update": errors.New("write conflict")}
	f.store.deleteErr = map[string]error{"bad-delete": errors.New("write conflict")}
	f.notifier.panicFor = "boom"

	report, err := f.scanner(t).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Candidates)
	assert.Equal(t, 2, report.Count(OutcomeNotified))
	assert.Equal(t, 3, report.Count(OutcomeFailed))

	assert.Zero(t, f.get(t, "bad-update", domain.ShapeStandalone).OverdueEmailCount)
	assert.Equal(t, 1, f.get(t, "ok1", domain.ShapeStandalone).OverdueEmailCount)
	assert.Equal(t, 1, f.get(t, "ok2", domain.ShapeStandalone).OverdueEmailCount)

	snaps, err := f.store.ListSnapshots(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, snaps, "snapshot rolled back when delete fails")
}

func TestRunCycle_OperationTimeoutIsItemFailure(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)
	f.create(t, &domain.Activity{ID: "a", DueDate: &due})
	f.store.blockOwner = true

	s := f.scanner(t, func(c *Config) { c.OperationTimeout = 20 * time.Millisecond })
	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, OutcomeFailed, report.Items[0].Outcome)
	assert.ErrorIs(t, report.Items[0].Err, context.DeadlineExceeded)
}

func TestRunCycle_SelectionFailureAbortsCycle(t *testing.T) {
	f := newFixture(t, baseNow)
	f.store.findDueErr = errors.New("db down")

	_, err := f.scanner(t).RunCycle(context.Background())
	assert.ErrorIs(t, err, f.store.findDueErr)
}

func TestScanner_InFlightCollision(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)
	a := &domain.Activity{ID: "a", OwnerID: "u1", Shape: domain.ShapeStandalone, DueDate: &due}
	s := f.scanner(t)

	require.True(t, s.acquire("a"))
	res := s.processOne(context.Background(), a, baseNow)
	assert.Equal(t, OutcomeInFlight, res.Outcome)
	s.release("a")

	res = s.processOne(context.Background(), a, baseNow)
	assert.NotEqual(t, OutcomeInFlight, res.Outcome)
}

func TestRunCycle_CallerCancelAfterSendStillCommits(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)
	f.create(t, &domain.Activity{ID: "once", Title: "Relatório", DueDate: &due})
	f.create(t, &domain.Activity{ID: "rem", Title: "Ligar", Reminder: true, DueDate: &due})
	s := f.scanner(t, func(c *Config) { c.Workers = 1 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.notifier.afterSend = cancel

	report, err := s.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.notifier.count(), "second item starts after the cancel and is skipped")
	require.Len(t, report.Items, 2)

	sentID := f.notifier.sent[0].ActivityID
	for _, item := range report.Items {
		if item.Ref.ID == sentID {
			assert.NotEqual(t, OutcomeFailed, item.Outcome)
			assert.NoError(t, item.Err)
		} else {
			assert.Equal(t, OutcomeFailed, item.Outcome)
			assert.ErrorIs(t, item.Err, context.Canceled)
		}
	}

	f.notifier.afterSend = nil
	f.clock.Advance(time.Minute)
	_, err = s.RunCycle(context.Background())
	require.NoError(t, err)

	// the item that was sent under the cancelled cycle is not sent again
	sends := map[string]int{}
	for _, m := range f.notifier.sent {
		sends[m.ActivityID]++
	}
	assert.Equal(t, 1, sends[sentID])

	once := f.get(t, "once", domain.ShapeStandalone)
	require.NotNil(t, once)
	assert.Equal(t, 1, once.OverdueEmailCount)
	assert.Nil(t, f.get(t, "rem", domain.ShapeStandalone), "reminder archived exactly once")
	snaps, err := f.store.ListSnapshots(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestProcessOne_CancelledCycleSkipsItem(t *testing.T) {
	f := newFixture(t, baseNow)
	due := baseNow.Add(-time.Hour)
	a := &domain.Activity{ID: "a", OwnerID: "u1", Shape: domain.ShapeStandalone, DueDate: &due}
	f.create(t, a)
	s := f.scanner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.processOne(ctx, a, baseNow)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, f.notifier.count())
	assert.Zero(t, f.get(t, "a", domain.ShapeStandalone).OverdueEmailCount)
}
