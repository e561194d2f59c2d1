package tempgroup

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultStateFile is the durable image name inside the host data directory.
const DefaultStateFile = "tempgroup_timers.json"

// TimerStore is the durable record of pending reversions. Save is a whole
// snapshot overwrite, never incremental. Implementations serialize access:
// the request path and the scheduler fire path mutate the same mapping.
type TimerStore interface {
	// Load reads the durable image, seeding the in-memory mapping. An absent
	// image yields an empty snapshot; a malformed one fails with
	// ErrCorruptState.
	Load() (TimerSnapshot, error)
	Save(snapshot TimerSnapshot) error
	Set(subject string, entry GroupTimer) error
	Remove(subject string) error
	// Get returns the in-memory entry for subject, if any.
	Get(subject string) (GroupTimer, bool)
	Snapshot() TimerSnapshot
	// Path returns the backing file location, for operator messaging.
	Path() string
}

type fileStore struct {
	mu      sync.Mutex
	path    string
	entries TimerSnapshot
	logger  Logger
}

var _ TimerStore = (*fileStore)(nil)

// FileStoreOption configures a file-backed TimerStore.
type FileStoreOption func(*fileStore)

// WithStoreLogger overrides the logger used for persistence warnings.
func WithStoreLogger(logger Logger) FileStoreOption {
	return func(s *fileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore creates a TimerStore backed by a single JSON file at path.
// Writes go to a temporary sibling file and are renamed into place so a crash
// mid-write never leaves a half-written image.
func NewFileStore(path string, opts ...FileStoreOption) TimerStore {
	s := &fileStore{
		path:    path,
		entries: TimerSnapshot{},
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *fileStore) Path() string {
	return s.path
}

func (s *fileStore) Load() (TimerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.entries = TimerSnapshot{}
			return s.entries.Clone(), nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not read timer state image").
			WithTextCode(textCodePersistence).
			WithMetadata(map[string]any{
				"path": s.path,
			})
	}

	entries := TimerSnapshot{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "timer state image is corrupt").
			WithTextCode(textCodeCorruptState).
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{
				"path": s.path,
			})
	}

	s.entries = entries
	return s.entries.Clone(), nil
}

func (s *fileStore) Save(snapshot TimerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = snapshot.Clone()
	return s.persist()
}

func (s *fileStore) Set(subject string, entry GroupTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[subject] = entry
	return s.persist()
}

func (s *fileStore) Remove(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[subject]; !ok {
		return nil
	}

	delete(s.entries, subject)
	return s.persist()
}

func (s *fileStore) Get(subject string) (GroupTimer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[subject]
	return entry, ok
}

func (s *fileStore) Snapshot() TimerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entries.Clone()
}

// persist rewrites the whole image. Callers hold s.mu.
func (s *fileStore) persist() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not encode timer state").
			WithTextCode(textCodePersistence)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create state directory").
			WithTextCode(textCodePersistence).
			WithMetadata(map[string]any{
				"path": s.path,
			})
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tempgroup-*.json")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not stage timer state").
			WithTextCode(textCodePersistence)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not write timer state").
			WithTextCode(textCodePersistence)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not flush timer state").
			WithTextCode(textCodePersistence)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not replace timer state image").
			WithTextCode(textCodePersistence).
			WithMetadata(map[string]any{
				"path": s.path,
			})
	}

	return nil
}
