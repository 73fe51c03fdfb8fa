package engine

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// scheduledItem is one pending action invocation. Ephemeral: owned by the
// scheduler queue and discarded once dispatched.
type scheduledItem struct {
	executionID string
	actionIndex int
	executeAt   time.Time
	scheduledAt time.Time
	seq         uint64
}

// itemHeap orders by executeAt, then by insertion sequence so that items
// scheduled for the same instant dispatch FIFO.
type itemHeap []*scheduledItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].executeAt.Equal(h[j].executeAt) {
		return h[i].seq < h[j].seq
	}

	return h[i].executeAt.Before(h[j].executeAt)
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*scheduledItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return item
}

// DispatchFunc receives a due item. The scheduler invokes it synchronously
// within the dispatch loop so per-execution ordering holds.
type DispatchFunc func(ctx context.Context, executionID string, actionIndex int)

// Scheduler is the time-ordered delay queue of pending action invocations,
// drained by a single background dispatcher loop.
type Scheduler struct {
	mu           sync.Mutex
	items        itemHeap
	seq          uint64
	dispatch     DispatchFunc
	pollInterval time.Duration
	logger       *slog.Logger

	now func() time.Time
}

// NewScheduler creates an action scheduler. Bind must be called before Start.
func NewScheduler(logger *slog.Logger, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Scheduler{
		items:        itemHeap{},
		pollInterval: pollInterval,
		logger:       logger.With("module", "action_scheduler"),
		now:          time.Now,
	}
}

// Bind wires the dispatch callback. Kept separate from the constructor
// because the execution manager and the scheduler reference each other.
func (s *Scheduler) Bind(dispatch DispatchFunc) {
	s.dispatch = dispatch
}

// Schedule enqueues an action invocation for the given instant.
func (s *Scheduler) Schedule(executionID string, actionIndex int, executeAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++

	heap.Push(&s.items, &scheduledItem{
		executionID: executionID,
		actionIndex: actionIndex,
		executeAt:   executeAt,
		scheduledAt: s.now(),
		seq:         s.seq,
	})

	s.logger.Debug("Action scheduled",
		"execution_id", executionID,
		"action_index", actionIndex,
		"execute_at", executeAt)
}

// Remove drops every pending item belonging to the execution. Called on
// terminal transitions so a far-future item for a dead execution does not
// sit in the heap until its executeAt. The dispatch-time status re-check
// remains the backstop for items already popped.
func (s *Scheduler) Remove(executionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]

	for _, item := range s.items {
		if item.executionID != executionID {
			kept = append(kept, item)
		}
	}

	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = nil
	}

	s.items = kept
	heap.Init(&s.items)
}

// Len reports how many items are pending.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.items.Len()
}

// Start runs the dispatcher loop until the context is cancelled. Intended to
// be launched in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.InfoContext(ctx, "Dispatcher loop started", "poll_interval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Dispatcher loop stopped")

			return
		case <-ticker.C:
			s.DispatchDue(ctx)
		}
	}
}

// DispatchDue pops every item whose executeAt has passed and hands each to
// the dispatch callback, sequentially. Exported so tests and the dispatcher
// loop share one code path.
func (s *Scheduler) DispatchDue(ctx context.Context) {
	for {
		item := s.popDue()
		if item == nil {
			return
		}

		s.run(ctx, item)
	}
}

func (s *Scheduler) popDue() *scheduledItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items.Len() == 0 || s.items[0].executeAt.After(s.now()) {
		return nil
	}

	return heap.Pop(&s.items).(*scheduledItem)
}

// run invokes the dispatch callback for one item. A panicking action must
// never take down the dispatcher loop.
func (s *Scheduler) run(ctx context.Context, item *scheduledItem) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Dispatch panicked",
				"execution_id", item.executionID,
				"action_index", item.actionIndex,
				"panic", r)
		}
	}()

	s.dispatch(ctx, item.executionID, item.actionIndex)
}
