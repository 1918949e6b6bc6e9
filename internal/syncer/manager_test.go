package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

type fakeRemote struct {
	mu        sync.Mutex
	storeErr  error
	fetchErr  error
	fetched   domain.TrackingRecord
	stored    []domain.TrackingRecord
	fetches   int
	storeHook func()
}

func (f *fakeRemote) Fetch(context.Context) (domain.TrackingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.fetched, f.fetchErr
}

func (f *fakeRemote) Store(_ context.Context, record domain.TrackingRecord) error {
	f.mu.Lock()
	f.stored = append(f.stored, record)
	err := f.storeErr
	hook := f.storeHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeRemote) storeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

type fakeHealth struct {
	health domain.Health
	err    error
}

func (f fakeHealth) Health(context.Context) (domain.Health, error) {
	return f.health, f.err
}

type fakeAdopter struct {
	replaced []domain.TrackingRecord
}

func (f *fakeAdopter) Replace(record domain.TrackingRecord) error {
	f.replaced = append(f.replaced, record)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestPushSuccessSetsAvailable(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	manager := NewManager(remote, nil, nil, time.Second, nil)
	if err := manager.Push(context.Background(), domain.NewTrackingRecord()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if manager.Availability() != domain.AvailabilityAvailable {
		t.Fatalf("expected available, got %s", manager.Availability())
	}
}

func TestPush503LatchesAndSuppressesFurtherPushes(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{storeErr: &ports.StatusError{Code: 503}}
	manager := NewManager(remote, nil, nil, time.Second, nil)

	if err := manager.Push(context.Background(), domain.NewTrackingRecord()); err == nil {
		t.Fatalf("expected push error")
	}
	if manager.Availability() != domain.AvailabilityUnavailable {
		t.Fatalf("expected unavailable, got %s", manager.Availability())
	}

	for i := 0; i < 3; i++ {
		if err := manager.Push(context.Background(), domain.NewTrackingRecord()); !errors.Is(err, ErrPushSkipped) {
			t.Fatalf("expected skipped push, got %v", err)
		}
	}
	if remote.storeCount() != 1 {
		t.Fatalf("expected exactly one network attempt, got %d", remote.storeCount())
	}
}

func TestPushNetworkFailureLatchesUnavailable(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{storeErr: errors.New("dial tcp: connection refused")}
	manager := NewManager(remote, nil, nil, time.Second, nil)
	_ = manager.Push(context.Background(), domain.NewTrackingRecord())
	if manager.Availability() != domain.AvailabilityUnavailable {
		t.Fatalf("expected unavailable, got %s", manager.Availability())
	}
}

func TestPushOtherStatusLeavesLatchAlone(t *testing.T) {
	t.Parallel()

	latch := NewAvailability(nil)
	latch.Set(domain.AvailabilityAvailable)
	remote := &fakeRemote{storeErr: &ports.StatusError{Code: 500}}
	manager := NewManager(remote, nil, latch, time.Second, nil)

	_ = manager.Push(context.Background(), domain.NewTrackingRecord())
	if manager.Availability() != domain.AvailabilityAvailable {
		t.Fatalf("expected latch untouched, got %s", manager.Availability())
	}
}

func TestPushCancelledByCallerLeavesLatchAlone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	remote := &fakeRemote{storeErr: context.Canceled}
	manager := NewManager(remote, nil, nil, time.Second, nil)

	_ = manager.Push(ctx, domain.NewTrackingRecord())
	if manager.Availability() != domain.AvailabilityUnknown {
		t.Fatalf("expected unknown, got %s", manager.Availability())
	}
}

func TestPullOnceNeverAdoptsTrivialRemote(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{fetched: domain.TrackingRecord{GoalStory: "  "}}
	manager := NewManager(remote, nil, nil, time.Second, nil)
	local := &fakeAdopter{}

	adopted, err := manager.PullOnce(context.Background(), local)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if adopted || len(local.replaced) != 0 {
		t.Fatalf("trivial remote must not be adopted")
	}
	if manager.Availability() != domain.AvailabilityAvailable {
		t.Fatalf("expected available after successful pull")
	}
}

func TestPullOnceAdoptsGoalsOnlyRemote(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{fetched: domain.TrackingRecord{Goals: &domain.Goals{CalorieGoal: 1700, ProteinGoal: 80, ActivityGoal: 30}}}
	manager := NewManager(remote, nil, nil, time.Second, nil)
	local := &fakeAdopter{}

	adopted, err := manager.PullOnce(context.Background(), local)
	if err != nil || !adopted {
		t.Fatalf("expected adoption, got adopted=%v err=%v", adopted, err)
	}
	if len(local.replaced) != 1 || local.replaced[0].Goals.CalorieGoal != 1700 {
		t.Fatalf("unexpected adopted record: %+v", local.replaced)
	}
	if remote.storeCount() != 0 {
		t.Fatalf("adoption must not push")
	}
}

func TestPullOnceFailureKeepsLocalAndLatches(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{fetchErr: &ports.StatusError{Code: 503}}
	manager := NewManager(remote, nil, nil, time.Second, nil)
	local := &fakeAdopter{}

	if _, err := manager.PullOnce(context.Background(), local); err == nil {
		t.Fatalf("expected pull error")
	}
	if len(local.replaced) != 0 || manager.Availability() != domain.AvailabilityUnavailable {
		t.Fatalf("expected untouched local and unavailable latch")
	}
	if _, err := manager.PullOnce(context.Background(), local); !errors.Is(err, ErrPullSkipped) {
		t.Fatalf("expected skipped pull, got %v", err)
	}
	if remote.fetches != 1 {
		t.Fatalf("expected one fetch, got %d", remote.fetches)
	}
}

func TestProbeHealthSeedsLatch(t *testing.T) {
	t.Parallel()

	manager := NewManager(&fakeRemote{}, fakeHealth{health: domain.Health{OK: true, RecordStore: boolPtr(false)}}, nil, time.Second, nil)
	if err := manager.ProbeHealth(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
	if manager.Availability() != domain.AvailabilityUnavailable {
		t.Fatalf("expected unavailable, got %s", manager.Availability())
	}

	manager = NewManager(&fakeRemote{}, fakeHealth{health: domain.Health{OK: true, RecordStore: boolPtr(true)}}, nil, time.Second, nil)
	_ = manager.ProbeHealth(context.Background())
	if manager.Availability() != domain.AvailabilityAvailable {
		t.Fatalf("expected available, got %s", manager.Availability())
	}
}

func TestProbeHealthWithoutFlagLeavesLatch(t *testing.T) {
	t.Parallel()

	manager := NewManager(&fakeRemote{}, fakeHealth{health: domain.Health{OK: true}}, nil, time.Second, nil)
	_ = manager.ProbeHealth(context.Background())
	if manager.Availability() != domain.AvailabilityUnknown {
		t.Fatalf("expected unknown, got %s", manager.Availability())
	}

	manager = NewManager(&fakeRemote{}, fakeHealth{err: errors.New("no route to host")}, nil, time.Second, nil)
	_ = manager.ProbeHealth(context.Background())
	if manager.Availability() != domain.AvailabilityUnavailable {
		t.Fatalf("expected unavailable after network error, got %s", manager.Availability())
	}
}

func TestScheduleCoalescesToLatestSnapshot(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{}
	manager := NewManager(remote, nil, nil, time.Second, nil)

	for _, story := range []string{"one", "two", "three"} {
		record := domain.NewTrackingRecord()
		record.GoalStory = story
		manager.Schedule(record)
	}
	if err := manager.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if remote.storeCount() != 1 || remote.stored[0].GoalStory != "three" {
		t.Fatalf("expected single push of latest snapshot, got %+v", remote.stored)
	}
	if err := manager.Flush(context.Background()); err != nil || remote.storeCount() != 1 {
		t.Fatalf("expected empty flush to be a no-op")
	}
}

func TestRunDrainsScheduledPushes(t *testing.T) {
	t.Parallel()

	pushed := make(chan struct{}, 4)
	remote := &fakeRemote{storeHook: func() { pushed <- struct{}{} }}
	manager := NewManager(remote, nil, nil, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	manager.Schedule(domain.NewTrackingRecord())
	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for background push")
	}
}

func TestAvailabilityNotifiesOnlyOnChange(t *testing.T) {
	t.Parallel()

	var seen []domain.Availability
	latch := NewAvailability(func(state domain.Availability) { seen = append(seen, state) })
	latch.Set(domain.AvailabilityAvailable)
	latch.Set(domain.AvailabilityAvailable)
	latch.Set(domain.AvailabilityUnavailable)
	if len(seen) != 2 || seen[1] != domain.AvailabilityUnavailable {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}

func TestHealthRecoveryReenablesPushes(t *testing.T) {
	t.Parallel()

	remote := &fakeRemote{storeErr: &ports.StatusError{Code: 503}}
	health := fakeHealth{health: domain.Health{OK: true, RecordStore: boolPtr(true)}}
	manager := NewManager(remote, health, nil, time.Second, nil)

	_ = manager.Push(context.Background(), domain.NewTrackingRecord())
	if err := manager.Push(context.Background(), domain.NewTrackingRecord()); !errors.Is(err, ErrPushSkipped) {
		t.Fatalf("expected skipped push while latched, got %v", err)
	}

	remote.mu.Lock()
	remote.storeErr = nil
	remote.mu.Unlock()

	if err := manager.ProbeHealth(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
	if manager.Availability() != domain.AvailabilityAvailable {
		t.Fatalf("expected the health check to reset the latch, got %s", manager.Availability())
	}
	if err := manager.Push(context.Background(), domain.NewTrackingRecord()); err != nil {
		t.Fatalf("expected push after recovery, got %v", err)
	}
	if remote.storeCount() != 2 {
		t.Fatalf("expected the failed push and the recovered push only, got %d", remote.storeCount())
	}
}
