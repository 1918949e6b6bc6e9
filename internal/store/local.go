package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

// Scheduler receives a snapshot after every local mutation.
type Scheduler interface {
	Schedule(record domain.TrackingRecord)
}

type Options struct {
	RecordKey    string
	GoalsChatKey string
	TalkChatKey  string
	WeightKg     float64
	Now          func() time.Time
	// OnChange runs after every successful write, including adoption.
	OnChange func()
}

// LocalStore is the authoritative copy of the tracking record. Every
// mutation is a read-modify-write of the whole record under one mutex.
type LocalStore struct {
	kv     ports.KeyValueStore
	sync   Scheduler
	ids    *IDGenerator
	logger *zap.Logger
	opts   Options

	mu sync.Mutex
}

func New(kv ports.KeyValueStore, scheduler Scheduler, opts Options, logger *zap.Logger) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RecordKey == "" {
		opts.RecordKey = "calixolympics_data"
	}
	if opts.GoalsChatKey == "" {
		opts.GoalsChatKey = "calixolympics_goals_chat"
	}
	if opts.TalkChatKey == "" {
		opts.TalkChatKey = "calixolympics_talk_chat"
	}
	if opts.WeightKg <= 0 {
		opts.WeightKg = domain.DefaultWeightKg
	}
	return &LocalStore{
		kv:     kv,
		sync:   scheduler,
		ids:    NewIDGenerator(opts.Now),
		logger: logger,
		opts:   opts,
	}
}

// Today is the local calendar date mutations are filed under.
func (s *LocalStore) Today() string {
	return s.opts.Now().Format(domain.DateLayout)
}

// Load never fails: missing or unreadable storage yields an empty record.
func (s *LocalStore) Load() domain.TrackingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save overwrites the stored record and schedules a push.
func (s *LocalStore) Save(record domain.TrackingRecord) error {
	return s.mutate(true, func(current *domain.TrackingRecord) error {
		*current = record.Clone()
		return nil
	})
}

// Replace adopts a remote record without pushing it back.
func (s *LocalStore) Replace(record domain.TrackingRecord) error {
	return s.mutate(false, func(current *domain.TrackingRecord) error {
		*current = record.Clone()
		return nil
	})
}

func (s *LocalStore) AddDietEntry(input domain.DietInput) (domain.DietEntry, error) {
	if err := input.Validate(); err != nil {
		return domain.DietEntry{}, err
	}
	var entry domain.DietEntry
	err := s.mutate(true, func(record *domain.TrackingRecord) error {
		entry = domain.NewDietEntry(s.ids.Next(), input)
		date := s.Today()
		record.Diet[date] = append(record.Diet[date], entry)
		return nil
	})
	return entry, err
}

func (s *LocalStore) AddActivityEntry(input domain.ActivityInput) (domain.ActivityEntry, error) {
	if err := input.Validate(); err != nil {
		return domain.ActivityEntry{}, err
	}
	var entry domain.ActivityEntry
	err := s.mutate(true, func(record *domain.TrackingRecord) error {
		entry = domain.NewActivityEntry(s.ids.Next(), input, s.opts.WeightKg)
		date := s.Today()
		record.Activity[date] = append(record.Activity[date], entry)
		return nil
	})
	return entry, err
}

// DeleteDietEntry reports whether an entry was removed.
func (s *LocalStore) DeleteDietEntry(date, id string) (bool, error) {
	return s.remove(func(record *domain.TrackingRecord) bool {
		return record.RemoveDiet(date, id)
	})
}

// DeleteActivityEntry reports whether an entry was removed.
func (s *LocalStore) DeleteActivityEntry(date, id string) (bool, error) {
	return s.remove(func(record *domain.TrackingRecord) bool {
		return record.RemoveActivity(date, id)
	})
}

// DeleteEntry removes id from either sequence of date.
func (s *LocalStore) DeleteEntry(date, id string) (bool, error) {
	return s.remove(func(record *domain.TrackingRecord) bool {
		removedDiet := record.RemoveDiet(date, id)
		removedActivity := record.RemoveActivity(date, id)
		return removedDiet || removedActivity
	})
}

// SetGoals replaces goals and narrative together.
func (s *LocalStore) SetGoals(goals domain.Goals, story string) error {
	return s.mutate(true, func(record *domain.TrackingRecord) error {
		g := goals
		record.Goals = &g
		record.GoalStory = story
		return nil
	})
}

// ChatLog returns the persisted transcript for surface, empty on any error.
func (s *LocalStore) ChatLog(surface domain.ChatSurface) []domain.ChatMessage {
	raw, ok, err := s.kv.Get(s.chatKey(surface))
	if err != nil {
		s.logger.Warn("chat log read failed", zap.String("surface", string(surface)), zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var messages []domain.ChatMessage
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		s.logger.Warn("chat log corrupt, starting fresh", zap.String("surface", string(surface)), zap.Error(err))
		return nil
	}
	return messages
}

func (s *LocalStore) SaveChatLog(surface domain.ChatSurface, messages []domain.ChatMessage) error {
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode chat log: %w", err)
	}
	if err := s.kv.Put(s.chatKey(surface), string(data)); err != nil {
		return fmt.Errorf("store chat log: %w", err)
	}
	return nil
}

func (s *LocalStore) chatKey(surface domain.ChatSurface) string {
	if surface == domain.ChatSurfaceTalk {
		return s.opts.TalkChatKey
	}
	return s.opts.GoalsChatKey
}

func (s *LocalStore) remove(fn func(record *domain.TrackingRecord) bool) (bool, error) {
	var removed bool
	err := s.mutate(true, func(record *domain.TrackingRecord) error {
		removed = fn(record)
		if !removed {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	return removed, err
}

var errUnchanged = errors.New("record unchanged")

func (s *LocalStore) mutate(push bool, fn func(record *domain.TrackingRecord) error) error {
	s.mu.Lock()
	record := s.read()
	if err := fn(&record); err != nil {
		s.mu.Unlock()
		return err
	}
	record.Normalize()
	if err := s.write(record); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := record.Clone()
	s.mu.Unlock()

	if push && s.sync != nil {
		s.sync.Schedule(snapshot)
	}
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
	return nil
}

func (s *LocalStore) read() domain.TrackingRecord {
	raw, ok, err := s.kv.Get(s.opts.RecordKey)
	if err != nil {
		s.logger.Error("record read failed, using empty record", zap.Error(err))
		return domain.NewTrackingRecord()
	}
	if !ok || raw == "" {
		return domain.NewTrackingRecord()
	}
	var record domain.TrackingRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		s.logger.Error("record corrupt, using empty record", zap.Error(err))
		return domain.NewTrackingRecord()
	}
	record.Normalize()
	return record
}

func (s *LocalStore) write(record domain.TrackingRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.kv.Put(s.opts.RecordKey, string(data)); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}
