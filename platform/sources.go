package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// evaluatedSourceSet records which script sources have already been
// evaluated, preventing redundant re-execution of idempotency-sensitive
// bootstrap scripts. Append-only for the platform's lifetime.
//
// It is guarded by its own mutex, deliberately separate from the
// filter-engine construction lock: a caller blocked on construction
// must not also block unrelated source evaluation.
type evaluatedSourceSet struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	inflight map[string]chan struct{}
}

func newEvaluatedSourceSet() *evaluatedSourceSet {
	return &evaluatedSourceSet{
		seen:     make(map[string]struct{}),
		inflight: make(map[string]chan struct{}),
	}
}

// sourceID derives a stable identifier for a script source from its
// name and a digest of its content.
func sourceID(name, source string) string {
	sum := sha256.Sum256([]byte(source))
	return name + "#" + hex.EncodeToString(sum[:6])
}

// evaluateOnce runs evaluate for the identified source unless it has
// already been evaluated. The identifier is recorded only after a
// successful evaluation, so a failed script can be retried.
//
// evaluate runs outside the set's mutex, but never twice concurrently
// for the same identifier: racers on an unrecorded source wait for the
// in-flight evaluation and then either observe its success or take
// their own turn after a failure.
func (s *evaluatedSourceSet) evaluateOnce(id string, evaluate func() error) error {
	for {
		s.mu.Lock()
		if _, done := s.seen[id]; done {
			s.mu.Unlock()
			return nil
		}
		if ch, ok := s.inflight[id]; ok {
			s.mu.Unlock()
			<-ch
			continue
		}
		ch := make(chan struct{})
		s.inflight[id] = ch
		s.mu.Unlock()

		err := evaluate()

		s.mu.Lock()
		if err == nil {
			s.seen[id] = struct{}{}
		}
		delete(s.inflight, id)
		s.mu.Unlock()
		close(ch)
		return err
	}
}

// record marks an identifier as evaluated without running anything.
func (s *evaluatedSourceSet) record(id string) {
	s.mu.Lock()
	s.seen[id] = struct{}{}
	s.mu.Unlock()
}

// size returns how many identifiers have been recorded.
func (s *evaluatedSourceSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
