package journal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type commitRecord struct {
	sha     string
	message string
	when    time.Time
	paths   []string
}

// fakeStore is an in-memory Store with scriptable failures.
type fakeStore struct {
	mu      sync.Mutex
	staged  []string
	commits []commitRecord
	notes   map[string][]byte

	stageErrs  []error
	// ignore lists paths Stage treats as matched by .gitignore.
	ignore map[string]bool
	commitErrs []error
	noteErrs   []error

	// When set, Commit signals entered and then blocks until gate is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{notes: make(map[string][]byte)}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (s *fakeStore) Stage(ctx context.Context, paths []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := pop(&s.stageErrs); err != nil {
		return 0, err
	}
	staged := 0
	for _, path := range paths {
		if s.ignore[path] {
			continue
		}
		s.staged = append(s.staged, path)
		staged++
	}
	return staged, nil
}

func (s *fakeStore) Commit(ctx context.Context, message string, when time.Time) (string, error) {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := pop(&s.commitErrs); err != nil {
		return "", err
	}

	sha := fmt.Sprintf("sha%d", len(s.commits)+1)
	s.commits = append(s.commits, commitRecord{sha: sha, message: message, when: when, paths: s.staged})
	s.staged = nil
	return sha, nil
}

func (s *fakeStore) AddNote(ctx context.Context, sha string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := pop(&s.noteErrs); err != nil {
		return err
	}
	s.notes[sha] = append([]byte(nil), payload...)
	return nil
}

func (s *fakeStore) Commits() []commitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commitRecord(nil), s.commits...)
}

func (s *fakeStore) Note(sha string) (Note, bool) {
	s.mu.Lock()
	payload, ok := s.notes[sha]
	s.mu.Unlock()

	if !ok {
		return Note{}, false
	}
	note, err := DecodeNote(payload)
	if err != nil {
		return Note{}, false
	}
	return note, true
}

func (s *fakeStore) NoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}
