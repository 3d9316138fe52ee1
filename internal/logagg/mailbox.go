package logagg

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one log record travelling from a producer to the aggregator.
type Event struct {
	Time    time.Time
	Level   logrus.Level
	Source  string
	Message string
	Fields  logrus.Fields

	sentinel bool
}

// mailbox is an unbounded multi-producer single-consumer queue.
// put never blocks; the consumer is woken through notify.
type mailbox struct {
	mu      sync.Mutex
	queue   []Event
	closed  bool
	dropped int64
	notify  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// put enqueues an event. Events arriving after the sentinel are dropped.
func (m *mailbox) put(ev Event) bool {
	m.mu.Lock()
	if m.closed {
		m.dropped++
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, ev)
	if ev.sentinel {
		m.closed = true
	}
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// take blocks until at least one event is queued and returns everything queued so far.
func (m *mailbox) take() []Event {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			batch := m.queue
			m.queue = nil
			m.mu.Unlock()
			return batch
		}
		m.mu.Unlock()
		<-m.notify
	}
}

func (m *mailbox) droppedCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
