package tempgroup

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Scheduler owns the pending reversions: one armed deferred action per
// subject, backed by the TimerStore and fired against the GroupDirectory.
// Request path (Assign/Cancel) and fire path share a single lock, so a
// read-modify-persist sequence is never interleaved.
type Scheduler struct {
	mu        sync.Mutex
	timers    map[string]*armedTimer
	store     TimerStore
	directory GroupDirectory
	logger    Logger
	now       func() time.Time
	sink      ActivitySink
}

// armedTimer is the cancellation handle for one deferred revert. The fire
// callback re-checks, under the scheduler lock, that it is still the handle
// registered for its subject; a cancelled or replaced handle never mutates
// state.
type armedTimer struct {
	timer     *time.Timer
	entry     GroupTimer
	cancelled bool
}

// SchedulerOption customizes scheduler construction.
type SchedulerOption func(*Scheduler)

// WithLogger overrides the default stdout logger.
func WithLogger(logger Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish timer events.
func WithActivitySink(sink ActivitySink) SchedulerOption {
	return func(s *Scheduler) {
		s.sink = normalizeActivitySink(sink)
	}
}

// NewScheduler creates a Scheduler over the given store and directory.
func NewScheduler(store TimerStore, directory GroupDirectory, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		timers:    map[string]*armedTimer{},
		store:     store,
		directory: directory,
		logger:    defLogger{},
		now:       time.Now,
		sink:      noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Assign gives subject a temporary group for the given duration ("10m",
// "2d"), arming a reversion to the subject's prior group. If a timer is
// already pending for the subject, the deadline and target group are
// replaced but the recorded baseline is preserved: it represents the true
// pre-elevation group, not the intermediate one.
func (s *Scheduler) Assign(ctx context.Context, actor ActorRef, subject, group, duration string) (GroupTimer, error) {
	d, err := ParseDuration(duration)
	if err != nil {
		return GroupTimer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	baseline := ""
	if existing, ok := s.store.Get(subject); ok {
		baseline = existing.OriginalGroup
	} else {
		current, err := s.directory.CurrentGroup(ctx, subject)
		if err != nil {
			return GroupTimer{}, s.subjectErr(err, subject)
		}
		baseline = current
	}

	if err := s.directory.SetGroup(ctx, subject, group); err != nil {
		return GroupTimer{}, s.subjectErr(err, subject)
	}

	entry := GroupTimer{
		ExpiryTime:    s.now().Add(d).UTC(),
		OriginalGroup: baseline,
	}

	if err := s.store.Set(subject, entry); err != nil {
		// In-memory effect is kept; durability resumes on the next save.
		s.logger.Warn("timer for %q applied but not persisted: %v", subject, err)
	}

	s.armLocked(subject, entry)

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventGroupAssigned,
		Actor:     actor,
		Subject:   subject,
		FromGroup: baseline,
		ToGroup:   group,
		ExpiresAt: entry.ExpiryTime,
	})

	return entry, nil
}

// Arm schedules (or re-schedules) the deferred revert for subject. Any
// previously armed action for the subject is cancelled first.
func (s *Scheduler) Arm(subject string, entry GroupTimer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(subject, entry)
}

// Resume restores scheduling from the durable image. Entries already past
// their deadline revert synchronously before Resume returns; the rest are
// armed with their remaining delay. A corrupt or unreadable image is logged
// and treated as empty rather than blocking startup.
func (s *Scheduler) Resume(ctx context.Context) {
	entries, err := s.store.Load()
	if err != nil {
		s.logger.Error("could not load timer state, starting empty: %v", err)
		entries = TimerSnapshot{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for subject, entry := range entries {
		if entry.Expired(now) {
			if err := s.revertLocked(ctx, ActorRef{Type: "scheduler"}, subject, entry); err != nil {
				s.logger.Error("revert on resume failed for %q: %v", subject, err)
			}
			continue
		}
		s.armLocked(subject, entry)
	}
}

// Cancel removes a pending reversion without touching the subject's current
// group. The armed action is disarmed and the entry is dropped from the
// durable image.
func (s *Scheduler) Cancel(ctx context.Context, actor ActorRef, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.store.Get(subject)
	if !ok {
		return ErrNoPendingTimer.WithMetadata(map[string]any{
			"subject": subject,
		})
	}

	s.disarmLocked(subject)

	if err := s.store.Remove(subject); err != nil {
		s.logger.Warn("cancelled timer for %q but image not rewritten: %v", subject, err)
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventTimerCancelled,
		Actor:     actor,
		Subject:   subject,
		ToGroup:   entry.OriginalGroup,
		ExpiresAt: entry.ExpiryTime,
	})

	return nil
}

// Pending returns a copy of the pending reversions.
func (s *Scheduler) Pending() TimerSnapshot {
	return s.store.Snapshot()
}

// Remaining returns the delay left before subject reverts.
func (s *Scheduler) Remaining(subject string) (time.Duration, error) {
	entry, ok := s.store.Get(subject)
	if !ok {
		return 0, ErrNoPendingTimer.WithMetadata(map[string]any{
			"subject": subject,
		})
	}
	return entry.Remaining(s.now()), nil
}

// armLocked replaces any armed action for subject with a fresh one. Callers
// hold s.mu.
func (s *Scheduler) armLocked(subject string, entry GroupTimer) {
	s.disarmLocked(subject)

	handle := &armedTimer{entry: entry}
	handle.timer = time.AfterFunc(entry.Remaining(s.now()), func() {
		s.fire(subject, handle)
	})
	s.timers[subject] = handle
}

// disarmLocked tears down the armed action for subject, if any. Callers hold
// s.mu; the fire callback checks cancelled under the same lock, so a stopped
// handle can never mutate state even if its AfterFunc already started.
func (s *Scheduler) disarmLocked(subject string) {
	if handle, ok := s.timers[subject]; ok {
		handle.cancelled = true
		handle.timer.Stop()
		delete(s.timers, subject)
	}
}

func (s *Scheduler) fire(subject string, handle *armedTimer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.timers[subject]
	if !ok || current != handle || handle.cancelled {
		return
	}
	delete(s.timers, subject)

	if err := s.revertLocked(context.Background(), ActorRef{Type: "scheduler"}, subject, handle.entry); err != nil {
		s.logger.Error("revert failed for %q: %v", subject, err)
	}
}

// revertLocked restores the subject's original group. On success the entry is
// removed from memory and the durable image; on failure it is retained so the
// next resumption retries (at-least-once). Callers hold s.mu.
func (s *Scheduler) revertLocked(ctx context.Context, actor ActorRef, subject string, entry GroupTimer) error {
	if err := s.directory.SetGroup(ctx, subject, entry.OriginalGroup); err != nil {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventGroupRevertFailed,
			Actor:     actor,
			Subject:   subject,
			ToGroup:   entry.OriginalGroup,
			ExpiresAt: entry.ExpiryTime,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return revertFailure(subject, entry.OriginalGroup, err)
	}

	if err := s.store.Remove(subject); err != nil {
		s.logger.Warn("reverted %q but image not rewritten: %v", subject, err)
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventGroupReverted,
		Actor:     actor,
		Subject:   subject,
		ToGroup:   entry.OriginalGroup,
		ExpiresAt: entry.ExpiryTime,
	})

	return nil
}

func (s *Scheduler) subjectErr(err error, subject string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}

	return goerrors.Wrap(err, goerrors.CategoryOperation, "group directory call failed").
		WithMetadata(map[string]any{
			"subject": subject,
		})
}

func (s *Scheduler) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.sink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("scheduler activity sink error: %v", err)
	}
}
