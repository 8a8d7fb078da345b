package audit

import (
	"sync"

	"github.com/bollustrado/mortimmy/internal/core"
)

var _ core.Auditor = (*InMemoryAuditor)(nil)

const DefaultMemoryCapacity = 1000

// InMemoryAuditor is an auditor that keeps the newest audit entries in memory.
type InMemoryAuditor struct {
	mu       sync.Mutex
	entries  []core.AuditEntry
	capacity int
}

// NewInMemoryAuditor creates an auditor holding at most capacity entries.
// A capacity <= 0 selects DefaultMemoryCapacity.
func NewInMemoryAuditor(capacity int) *InMemoryAuditor {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &InMemoryAuditor{
		entries:  make([]core.AuditEntry, 0),
		capacity: capacity,
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if over := len(i.entries) - i.capacity; over > 0 {
		i.entries = append([]core.AuditEntry(nil), i.entries[over:]...)
	}
	return nil
}

func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	return i.Find(func(core.AuditEntry) bool { return true }, limit)
}

func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return newest(i.entries, filter, limit), nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}

// newest returns the last limit entries matching filter in their original order.
func newest(entries []core.AuditEntry, filter func(entry core.AuditEntry) bool, limit int) []core.AuditEntry {
	matches := make([]core.AuditEntry, 0)
	for _, entry := range entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}
