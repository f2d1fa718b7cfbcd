package authkit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-errors"
)

// fileState is the on-disk layout. The keys mirror the storage keys the
// console uses in the browser.
type fileState struct {
	Token        string `json:"token,omitempty"`
	User         *User  `json:"auth_user,omitempty"`
	Impersonated *User  `json:"login_as_user,omitempty"`
}

// FileStore is a TokenStore persisted to a JSON file shared by every console
// instance pointed at the same path. It watches the file so a mutation made
// by another instance (another tab logging out) is surfaced to listeners as
// an external change.
//
// Writes re-read the file before merging, so a concurrent external clear is
// never clobbered by a stale in-memory snapshot.
type FileStore struct {
	path   string
	logger Logger

	mu          sync.Mutex
	state       fileState
	lastWritten []byte

	watcher *fsnotify.Watcher
	done    chan struct{}

	listenerID int
	listeners  map[int]func(Change)
}

var _ TokenStore = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "unable to create storage directory")
	}

	s := &FileStore{
		path:      path,
		logger:    defLogger{},
		listeners: map[int]func(Change){},
		done:      make(chan struct{}),
	}

	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &s.state); err != nil {
			s.logger.Warn("Discarding unreadable storage file", "path", path, "error", err)
			s.state = fileState{}
		}
		s.lastWritten = raw
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "unable to create storage watcher")
	}
	// Watch the directory: atomic rename-into-place writes do not deliver
	// reliable events for the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, errors.CategoryOperation, "unable to watch storage directory")
	}
	s.watcher = watcher

	go s.watch()

	return s, nil
}

// NewStoreFromConfig builds the store the configuration asks for: a FileStore
// when a storage path is set, otherwise a tab-scoped MemoryStore.
func NewStoreFromConfig(cfg Config) (TokenStore, error) {
	if path := cfg.GetStoragePath(); path != "" {
		return NewFileStore(path)
	}
	return NewMemoryStore(), nil
}

func (s *FileStore) WithLogger(logger Logger) *FileStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Close stops the external-change watcher. The store remains usable for
// local reads and writes.
func (s *FileStore) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	return s.watcher.Close()
}

func (s *FileStore) Identity() (string, *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token, s.state.User.Clone()
}

func (s *FileStore) SetIdentity(token string, user *User) error {
	s.mu.Lock()
	s.reloadLocked()
	s.state.Token = token
	s.state.User = user.Clone()
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(Change{Slot: SlotPrimary})
	return nil
}

func (s *FileStore) ClearIdentity() {
	s.mu.Lock()
	s.reloadLocked()
	empty := s.state.Token == "" && s.state.User == nil
	hadImpersonation := s.state.Impersonated != nil
	s.state = fileState{}
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Unable to persist cleared identity", "error", err)
	}
	if hadImpersonation {
		s.notify(Change{Slot: SlotImpersonation})
	}
	if !empty {
		s.notify(Change{Slot: SlotPrimary})
	}
}

func (s *FileStore) Impersonated() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Impersonated.Clone()
}

func (s *FileStore) SetImpersonated(user *User) error {
	s.mu.Lock()
	s.reloadLocked()
	if s.state.Token == "" {
		s.mu.Unlock()
		return ErrNoPrimaryCredential
	}
	s.state.Impersonated = user.Clone()
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(Change{Slot: SlotImpersonation})
	return nil
}

func (s *FileStore) ClearImpersonated() {
	s.mu.Lock()
	s.reloadLocked()
	had := s.state.Impersonated != nil
	s.state.Impersonated = nil
	var err error
	if had {
		err = s.persistLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Unable to persist impersonation clear", "error", err)
	}
	if had {
		s.notify(Change{Slot: SlotImpersonation})
	}
}

func (s *FileStore) Clear() {
	s.ClearIdentity()
}

func (s *FileStore) OnChange(fn func(Change)) func() {
	s.mu.Lock()
	s.listenerID++
	id := s.listenerID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// reloadLocked adopts whatever is on disk as the base state for the next
// mutation. External notifications are the watcher's job, not the writer's.
func (s *FileStore) reloadLocked() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Unable to re-read storage file", "path", s.path, "error", err)
		}
		return
	}

	var onDisk fileState
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		s.logger.Warn("Ignoring unreadable storage file", "path", s.path, "error", err)
		return
	}
	s.state = onDisk
}

func (s *FileStore) persistLocked() error {
	raw, err := json.Marshal(s.state)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "unable to encode storage state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "unable to write storage file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "unable to replace storage file")
	}

	s.lastWritten = raw
	return nil
}

func (s *FileStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			s.handleExternalEvent()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Storage watcher error", "error", err)
		}
	}
}

func (s *FileStore) handleExternalEvent() {
	s.mu.Lock()

	raw, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		s.mu.Unlock()
		s.logger.Warn("Unable to read storage file after change", "error", err)
		return
	}

	if string(raw) == string(s.lastWritten) {
		// our own write echoed back by the watcher
		s.mu.Unlock()
		return
	}

	var onDisk fileState
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &onDisk); err != nil {
			s.mu.Unlock()
			s.logger.Warn("Ignoring unreadable external change", "error", err)
			return
		}
	}

	prev := s.state
	s.state = onDisk
	s.lastWritten = raw
	s.mu.Unlock()

	if prev.Token != onDisk.Token || !userEqual(prev.User, onDisk.User) {
		s.notify(Change{Slot: SlotPrimary, External: true})
	}
	if !userEqual(prev.Impersonated, onDisk.Impersonated) {
		s.notify(Change{Slot: SlotImpersonation, External: true})
	}
}

func (s *FileStore) notify(change Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func userEqual(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
