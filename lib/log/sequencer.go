package log

import (
	"fmt"
	"sync"
)

// Sequencer buffers per-revision log lines and releases them strictly in
// revision order: a line for revision N is printed only once every lower
// revision has been closed. Commit production is out of order across
// branches, so without this buffer the last lines written would not be
// the causative ones when the run aborts.
type Sequencer struct {
	mu       sync.Mutex
	next     int
	buffered map[int][]string
	closed   map[int]bool
	emit     func(string)
}

// NewSequencer returns a Sequencer that starts releasing at firstRev.
// emit defaults to the package logger's info level.
func NewSequencer(firstRev int, emit func(string)) *Sequencer {
	if emit == nil {
		emit = func(line string) { logger.Info(line) }
	}
	return &Sequencer{
		next:     firstRev,
		buffered: map[int][]string{},
		closed:   map[int]bool{},
		emit:     emit,
	}
}

// Printf records a line against rev. If rev is already the lowest open
// revision the line still waits for Close, keeping output atomic per
// revision.
func (s *Sequencer) Printf(rev int, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffered[rev] = append(s.buffered[rev], sanitize(fmt.Sprintf(format, args...)))
}

// Close marks rev complete. Every consecutively closed revision from the
// current release point is flushed, in order.
func (s *Sequencer) Close(rev int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed[rev] = true
	for s.closed[s.next] {
		for _, line := range s.buffered[s.next] {
			s.emit(line)
		}
		delete(s.buffered, s.next)
		delete(s.closed, s.next)
		s.next++
	}
}

// Drain flushes everything still buffered regardless of ordering; called
// on fatal errors so context isn't lost with the process.
func (s *Sequencer) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	revs := make([]int, 0, len(s.buffered))
	for rev := range s.buffered {
		revs = append(revs, rev)
	}
	sortInts(revs)
	for _, rev := range revs {
		for _, line := range s.buffered[rev] {
			s.emit(line)
		}
		delete(s.buffered, rev)
	}
}

func sortInts(v []int) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}
