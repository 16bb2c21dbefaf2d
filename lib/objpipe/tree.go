package objpipe

import "sync"

// StageEntry is one pending index mutation for a branch's working tree,
// queued by the History Builder before the tree is written.
type StageEntry struct {
	Path   string
	Mode   FileMode
	Sha    string
	Remove bool
}

// branchQueue serializes every Stage/WriteTree call for a single branch
// onto one goroutine, so index mutations for that branch are never
// interleaved with another revision's (per-branch serialization).
type branchQueue struct {
	helper *Helper[func()]
	once   sync.Once
}

func newBranchQueue() *branchQueue {
	return &branchQueue{helper: NewHelper(64, func(job func()) { job() })}
}

func (q *branchQueue) submit(job func()) {
	q.helper.Queue(job)
}

func (q *branchQueue) close() {
	q.once.Do(q.helper.CloseWait)
}

// TreeStage applies staged entries to a branch's index and writes trees,
// one branch-goroutine per refname (cross-branch parallelism) funneling
// through a single global write-tree lock (per-call serialization of the
// underlying Sink, which the spec requires even though index mutation
// itself is branch-local).
type TreeStage struct {
	sink Sink

	mu      sync.Mutex
	queues  map[string]*branchQueue
	writeMu sync.Mutex // serializes every WriteTree call across all branches
}

// NewTreeStage returns a TreeStage backed by sink.
func NewTreeStage(sink Sink) *TreeStage {
	return &TreeStage{sink: sink, queues: map[string]*branchQueue{}}
}

func (t *TreeStage) queueFor(branch string) *branchQueue {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[branch]
	if !ok {
		q = newBranchQueue()
		t.queues[branch] = q
	}
	return q
}

// Apply stages entries onto branch's index, serialized against any other
// pending Apply/WriteTree for the same branch, and returns the resulting
// tree sha once every entry is staged and the tree is written.
func (t *TreeStage) Apply(branch string, entries []StageEntry) (string, error) {
	type result struct {
		sha string
		err error
	}
	done := make(chan result, 1)
	t.queueFor(branch).submit(func() {
		for _, e := range entries {
			if err := t.sink.Stage(branch, e.Path, e.Mode, e.Sha, e.Remove); err != nil {
				done <- result{err: err}
				return
			}
		}
		t.writeMu.Lock()
		sha, err := t.sink.WriteTree(branch)
		t.writeMu.Unlock()
		done <- result{sha: sha, err: err}
	})
	r := <-done
	return r.sha, r.err
}

// Close shuts down every branch goroutine. Call once no further Apply
// calls will be issued.
func (t *TreeStage) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, q := range t.queues {
		q.close()
	}
}
