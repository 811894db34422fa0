package engine

import (
	"sync"

	"github.com/seantiz/taskroute/internal/model"
)

// subscriberBufferSize is the channel buffer for each status subscriber.
// When a subscriber falls this far behind, its oldest pending snapshot is
// dropped so the newest state is always delivered.
const subscriberBufferSize = 64

// StatusBroker fans out workflow snapshots to per-workflow subscribers.
// It is safe for concurrent use.
type StatusBroker struct {
	mu     sync.Mutex
	topics map[string]*statusTopic
}

type statusTopic struct {
	subs   map[int]chan *model.WorkflowExecution
	nextID int
}

// NewStatusBroker creates a new status broker.
func NewStatusBroker() *StatusBroker {
	return &StatusBroker{
		topics: make(map[string]*statusTopic),
	}
}

// Subscribe returns a channel that receives snapshots for the given workflow
// and an unsubscribe function. If initial is non-nil it is queued before any
// later snapshot.
func (b *StatusBroker) Subscribe(workflowID string, initial *model.WorkflowExecution) (<-chan *model.WorkflowExecution, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[workflowID]
	if !ok {
		t = &statusTopic{subs: make(map[int]chan *model.WorkflowExecution)}
		b.topics[workflowID] = t
	}

	ch := make(chan *model.WorkflowExecution, subscriberBufferSize)
	if initial != nil {
		ch <- initial
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
}

// Publish sends a snapshot to all subscribers of the given workflow. The
// snapshot is shared between subscribers and must not be mutated.
func (b *StatusBroker) Publish(workflowID string, snap *model.WorkflowExecution) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[workflowID]
	if !ok {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Buffer full: drop the oldest snapshot and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close signals that no more snapshots will be published for the workflow.
// All subscriber channels are closed and the topic is removed.
func (b *StatusBroker) Close(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[workflowID]
	if !ok {
		return
	}
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	delete(b.topics, workflowID)
}

// Subscribers returns the number of live subscribers for a workflow.
func (b *StatusBroker) Subscribers(workflowID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[workflowID]; ok {
		return len(t.subs)
	}
	return 0
}
