package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

var (
	ErrPushSkipped = errors.New("push skipped: remote store unavailable")
	ErrPullSkipped = errors.New("pull skipped: remote store unavailable")
)

// Adopter receives a remote record that won the adoption gate.
type Adopter interface {
	Replace(record domain.TrackingRecord) error
}

// Manager mirrors the local record to the remote store. Pushes are
// fire-and-forget and coalesce: only the newest pending snapshot is sent.
type Manager struct {
	remote  ports.RemoteStore
	health  ports.HealthProbe
	latch   *Availability
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending *domain.TrackingRecord
	wake    chan struct{}
}

func NewManager(remote ports.RemoteStore, health ports.HealthProbe, latch *Availability, timeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if latch == nil {
		latch = NewAvailability(nil)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Manager{
		remote:  remote,
		health:  health,
		latch:   latch,
		logger:  logger,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
	}
}

func (m *Manager) Availability() domain.Availability {
	return m.latch.State()
}

// Push sends record now. It issues no request while the latch is
// unavailable.
func (m *Manager) Push(ctx context.Context, record domain.TrackingRecord) error {
	if m.latch.Unavailable() {
		return ErrPushSkipped
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.remote.Store(callCtx, record)
	m.observe(ctx, err)
	if err != nil {
		m.logger.Warn("record push failed", zap.Error(err), zap.String("availability", string(m.latch.State())))
		return err
	}
	return nil
}

// Schedule queues record for the background pusher, replacing any snapshot
// still waiting.
func (m *Manager) Schedule(record domain.TrackingRecord) {
	m.mu.Lock()
	snapshot := record
	m.pending = &snapshot
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Run drains scheduled snapshots until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			if record, ok := m.take(); ok {
				if err := m.Push(ctx, record); err != nil && !errors.Is(err, ErrPushSkipped) {
					m.logger.Debug("scheduled push dropped", zap.Error(err))
				}
			}
		}
	}
}

// Flush pushes the pending snapshot, if any, synchronously.
func (m *Manager) Flush(ctx context.Context) error {
	record, ok := m.take()
	if !ok {
		return nil
	}
	return m.Push(ctx, record)
}

// PullOnce fetches the remote record and hands it to local when it carries
// any data. It reports whether the record was adopted.
func (m *Manager) PullOnce(ctx context.Context, local Adopter) (bool, error) {
	if m.latch.Unavailable() {
		return false, ErrPullSkipped
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	record, err := m.remote.Fetch(callCtx)
	m.observe(ctx, err)
	if err != nil {
		m.logger.Warn("record pull failed, keeping local data", zap.Error(err))
		return false, err
	}

	record.Normalize()
	if !record.HasData() {
		m.logger.Debug("remote record empty, keeping local data")
		return false, nil
	}
	if err := local.Replace(record); err != nil {
		m.logger.Error("adopting remote record failed", zap.Error(err))
		return false, err
	}
	m.logger.Info("adopted remote record", zap.Int("diet_dates", len(record.Diet)), zap.Int("activity_dates", len(record.Activity)))
	return true, nil
}

// ProbeHealth seeds the latch from the server's capability report.
func (m *Manager) ProbeHealth(ctx context.Context) error {
	if m.health == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	health, err := m.health.Health(callCtx)
	if err != nil {
		m.observe(ctx, err)
		m.logger.Warn("health check failed", zap.Error(err))
		return err
	}
	if health.RecordStore == nil {
		return nil
	}
	if *health.RecordStore {
		m.latch.Set(domain.AvailabilityAvailable)
	} else {
		m.latch.Set(domain.AvailabilityUnavailable)
	}
	return nil
}

func (m *Manager) take() (domain.TrackingRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return domain.TrackingRecord{}, false
	}
	record := *m.pending
	m.pending = nil
	return record, true
}

// observe moves the latch for a remote outcome. Non-503 statuses and
// cancellation by the caller leave it alone.
func (m *Manager) observe(parent context.Context, err error) {
	if err == nil {
		m.latch.Set(domain.AvailabilityAvailable)
		return
	}
	if errors.Is(err, ports.ErrRemoteUnavailable) {
		m.latch.Set(domain.AvailabilityUnavailable)
		return
	}
	var status *ports.StatusError
	if errors.As(err, &status) {
		return
	}
	if parent.Err() != nil {
		return
	}
	m.latch.Set(domain.AvailabilityUnavailable)
}
