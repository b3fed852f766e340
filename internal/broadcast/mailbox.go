package broadcast

import "sync"

// mailbox is a bounded FIFO of encoded messages that evicts the oldest entry
// when full. ready holds at most one pending wake-up.
type mailbox struct {
	mu    sync.Mutex
	items [][]byte
	size  int
	ready chan struct{}
}

func newMailbox(size int) *mailbox {
	if size < 1 {
		size = 1
	}
	return &mailbox{
		items: make([][]byte, 0, size),
		size:  size,
		ready: make(chan struct{}, 1),
	}
}

// push appends msg and reports whether an older message was evicted.
func (m *mailbox) push(msg []byte) (dropped bool) {
	m.mu.Lock()
	if len(m.items) == m.size {
		copy(m.items, m.items[1:])
		m.items = m.items[:m.size-1]
		dropped = true
	}
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return dropped
}

// drain removes and returns everything queued, oldest first.
func (m *mailbox) drain() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil
	}
	out := m.items
	m.items = make([][]byte, 0, m.size)
	return out
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
