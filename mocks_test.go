package tempgroup_test

import (
	"context"
	"sync"

	tempgroup "github.com/goliatone/go-tempgroup"
	"github.com/stretchr/testify/mock"
)

// MockDirectory implements tempgroup.GroupDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) CurrentGroup(ctx context.Context, subject string) (string, error) {
	args := m.Called(ctx, subject)
	return args.String(0), args.Error(1)
}

func (m *MockDirectory) SetGroup(ctx context.Context, subject, group string) error {
	args := m.Called(ctx, subject, group)
	return args.Error(0)
}

// capturingSink records activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []tempgroup.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt tempgroup.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Events() []tempgroup.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tempgroup.ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

// failingStore keeps the in-memory mapping current but fails durable writes,
// mimicking a file store on a full or read-only disk.
type failingStore struct {
	mu       sync.Mutex
	entries  tempgroup.TimerSnapshot
	writeErr error
}

func newFailingStore() *failingStore {
	return &failingStore{entries: tempgroup.TimerSnapshot{}}
}

func (s *failingStore) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *failingStore) Load() (tempgroup.TimerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Clone(), nil
}

func (s *failingStore) Save(snapshot tempgroup.TimerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = snapshot.Clone()
	return s.writeErr
}

func (s *failingStore) Set(subject string, entry tempgroup.GroupTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[subject] = entry
	return s.writeErr
}

func (s *failingStore) Remove(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, subject)
	return s.writeErr
}

func (s *failingStore) Get(subject string) (tempgroup.GroupTimer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[subject]
	return entry, ok
}

func (s *failingStore) Snapshot() tempgroup.TimerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Clone()
}

func (s *failingStore) Path() string {
	return "failing-store"
}

// silentLogger keeps test output clean.
type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
