package objpipe

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// CommitRequest describes one pending commit, possibly waiting on
// parents that are still in flight (a merge parent from another branch
// that hasn't committed yet).
type CommitRequest struct {
	Branch        string
	Tree          string
	Parents       []*CommitHandle
	Author        Identity
	Committer     Identity
	AuthorTime    time.Time
	CommitterTime time.Time
	Message       string
	// AddChangeID appends a Gerrit Change-Id trailer derived from
	// (parents, author, timestamp, message); computed here rather than
	// by the History Builder because the parent shas aren't known until
	// their handles resolve.
	AddChangeID bool
}

// changeID derives the Gerrit Change-Id for a commit about to be
// created. Deterministic across runs: every input is itself stable.
func changeID(parents []string, author Identity, when time.Time, message string) string {
	src := fmt.Sprintf("%s\n%s <%s>\n%d\n%s",
		strings.Join(parents, " "), author.Name, author.Email, when.Unix(), message)
	return "I" + sha1Hex([]byte(src))
}

// CommitHandle is a future for a commit sha. The History Builder hands
// one out the moment it decides a revision produces a commit on a
// branch, before the commit object itself necessarily exists yet, so
// that a merge edge naming "branch B's commit for revision R" can be
// wired into another branch's CommitRequest.Parents before R's commit
// stage has run; a merge edge is only emitted once the source commit
// is known.
type CommitHandle struct {
	done chan struct{}
	sha  string
	err  error
}

// NewCommitHandle returns an unresolved handle.
func NewCommitHandle() *CommitHandle {
	return &CommitHandle{done: make(chan struct{})}
}

// Resolve binds the handle to its final sha (or error) and wakes every
// waiter. Calling Resolve more than once panics; each handle represents
// exactly one commit.
func (h *CommitHandle) Resolve(sha string, err error) {
	h.sha, h.err = sha, err
	close(h.done)
}

// Wait blocks until the handle is resolved and returns its sha.
func (h *CommitHandle) Wait() (string, error) {
	<-h.done
	return h.sha, h.err
}

// CommitStage serializes commit creation per branch (so a branch's
// commit history is built in revision order) while letting independent
// branches commit concurrently.
type CommitStage struct {
	sink   Sink
	mu     sync.Mutex
	queues map[string]*branchQueue
	wg     sync.WaitGroup
}

// NewCommitStage returns a CommitStage backed by sink.
func NewCommitStage(sink Sink) *CommitStage {
	return &CommitStage{sink: sink, queues: map[string]*branchQueue{}}
}

func (c *CommitStage) queueFor(branch string) *branchQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[branch]
	if !ok {
		q = newBranchQueue()
		c.queues[branch] = q
	}
	return q
}

// Submit resolves req's parent handles (blocking until every one of them
// is known), creates the commit, and resolves handle with the result.
// The blocking parent-wait happens off the branch's own queue goroutine
// so a branch never deadlocks waiting on itself.
func (c *CommitStage) Submit(req CommitRequest, handle *CommitHandle) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		parents := make([]string, len(req.Parents))
		for i, p := range req.Parents {
			sha, err := p.Wait()
			if err != nil {
				handle.Resolve("", err)
				return
			}
			parents[i] = sha
		}

		message := req.Message
		if req.AddChangeID {
			message = message + "\n\nChange-Id: " + changeID(parents, req.Author, req.AuthorTime, message)
		}

		type result struct {
			sha string
			err error
		}
		done := make(chan result, 1)
		c.queueFor(req.Branch).submit(func() {
			sha, err := c.sink.Commit(req.Tree, parents, req.Author, req.Committer, req.AuthorTime, req.CommitterTime, message)
			done <- result{sha: sha, err: err}
		})
		r := <-done
		handle.Resolve(r.sha, r.err)
	}()
}

// Close waits for every submitted commit to finish, then shuts down the
// branch goroutines. Safe to call only once no further Submits will be
// issued.
func (c *CommitStage) Close() {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.queues {
		q.close()
	}
}
