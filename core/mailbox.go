package orchestration

import (
	"context"
	"sync"
)

// mailbox is an unbounded queue feeding the session event loop. Post never
// blocks, so callbacks from any goroutine can hand work to the loop.
type mailbox struct {
	mu           sync.Mutex
	messages     []any
	closed       bool
	updateSignal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{updateSignal: make(chan struct{}, 1)}
}

// Post appends message and reports whether the mailbox still accepts
// messages.
func (m *mailbox) Post(message any) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.messages = append(m.messages, message)
	m.mu.Unlock()

	m.signalUpdate()
	return true
}

// Messages yields posted messages in order until ctx is done or the mailbox
// is closed.
func (m *mailbox) Messages(ctx context.Context) func(yield func(any) bool) {
	return func(yield func(any) bool) {
		for {
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			if len(m.messages) > 0 {
				message := m.messages[0]
				m.messages[0] = nil
				m.messages = m.messages[1:]
				m.mu.Unlock()

				if !yield(message) {
					return
				}
				continue
			}
			m.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-m.updateSignal:
			}
		}
	}
}

func (m *mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.messages = nil
	m.mu.Unlock()
	m.signalUpdate()
}

func (m *mailbox) signalUpdate() {
	select {
	case m.updateSignal <- struct{}{}:
	default:
	}
}
