package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/pointer"
)

// WriteHook is invoked before a write is applied, while no lock is held. It
// may mutate the store to simulate a concurrent writer, or return an error to
// fail the write.
type WriteHook func(ctx context.Context, s *Store, name string, attempt int) error

type entry struct {
	items   []string
	version uint64
}

// Store is an in memory document.Store
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	last    uint64

	hookMu    sync.Mutex
	writeHook WriteHook
	writes    map[string]int
	reads     map[string]int
	readErr   error
}

// New returns a new in memory document.Store
func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
		writes:  make(map[string]int),
		reads:   make(map[string]int),
	}
}

// Read implements document.Store.Read
func (s *Store) Read(_ context.Context, name string) (*document.Document, error) {
	s.hookMu.Lock()
	s.reads[name]++
	readErr := s.readErr
	s.hookMu.Unlock()

	if readErr != nil {
		return nil, document.NewStoreError("read", name, readErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &document.Document{
		Name:  name,
		Items: []string{},
	}

	item, ok := s.entries[name]
	if !ok {
		return res, nil
	}

	res.Items = append(res.Items, item.items...)
	res.Version = pointer.String(strconv.FormatUint(item.version, 10))
	return res, nil
}

// Write implements document.Store.Write
func (s *Store) Write(ctx context.Context, name string, items []string, expectedVersion *string, _ string) (string, error) {
	s.hookMu.Lock()
	s.writes[name]++
	attempt := s.writes[name]
	hook := s.writeHook
	s.hookMu.Unlock()

	if hook != nil {
		if err := hook(ctx, s, name, attempt); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[name]
	switch {
	case expectedVersion == nil && ok,
		expectedVersion != nil && !ok,
		expectedVersion != nil && *expectedVersion != strconv.FormatUint(existing.version, 10):
		return "", &document.ConflictError{Name: name, ExpectedVersion: expectedVersion}
	}

	s.last++

	cloned := make([]string, len(items))
	copy(cloned, items)
	s.entries[name] = &entry{
		items:   cloned,
		version: s.last,
	}

	return strconv.FormatUint(s.last, 10), nil
}

// SetWriteHook installs a hook that runs ahead of every write. A nil hook
// clears it.
func (s *Store) SetWriteHook(hook WriteHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.writeHook = hook
}

// SetReadError makes every subsequent read fail with err. A nil err clears it.
func (s *Store) SetReadError(err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.readErr = err
}

// WriteCount returns the number of write attempts made against a document
func (s *Store) WriteCount(name string) int {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	return s.writes[name]
}

// ReadCount returns the number of reads made against a document
func (s *Store) ReadCount(name string) int {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	return s.reads[name]
}

// AlwaysConflict is a WriteHook that rejects every write as a conflict
func AlwaysConflict(_ context.Context, _ *Store, name string, _ int) error {
	return &document.ConflictError{Name: name}
}

// ConcurrentAppend is a WriteHook that, ahead of the given write attempts,
// simulates another writer appending items to the document
func ConcurrentAppend(items []string, attempts ...int) WriteHook {
	return func(ctx context.Context, s *Store, name string, attempt int) error {
		for _, target := range attempts {
			if target == attempt {
				s.appendDirect(name, items...)
			}
		}
		return nil
	}
}

func (s *Store) appendDirect(name string, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++

	existing, ok := s.entries[name]
	if !ok {
		existing = &entry{}
		s.entries[name] = existing
	}
	existing.items = append(existing.items, items...)
	existing.version = s.last
}

func (s *Store) reset() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.last = 0
	s.mu.Unlock()

	s.hookMu.Lock()
	s.writeHook = nil
	s.readErr = nil
	s.writes = make(map[string]int)
	s.reads = make(map[string]int)
	s.hookMu.Unlock()
}
