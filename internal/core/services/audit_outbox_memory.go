package services

import (
	"context"
	"sort"
	"sync"
)

// MemoryAuditOutbox keeps pending audit entries in process memory. They are
// lost on restart; configure Redis for a durable outbox.
type MemoryAuditOutbox struct {
	mu      sync.Mutex
	entries map[string]*PendingAudit
	order   []string
}

// NewMemoryAuditOutbox creates an empty outbox
func NewMemoryAuditOutbox() *MemoryAuditOutbox {
	return &MemoryAuditOutbox{entries: map[string]*PendingAudit{}}
}

func (o *MemoryAuditOutbox) Push(_ context.Context, p *PendingAudit) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := p.Entry.CorrelationID
	if _, ok := o.entries[id]; !ok {
		o.order = append(o.order, id)
	}
	cp := *p
	o.entries[id] = &cp
	return nil
}

func (o *MemoryAuditOutbox) Pending(_ context.Context) ([]*PendingAudit, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*PendingAudit, 0, len(o.order))
	for _, id := range o.order {
		cp := *o.entries[id]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Entry.CreatedAt.Before(out[j].Entry.CreatedAt) })
	return out, nil
}

func (o *MemoryAuditOutbox) Update(_ context.Context, p *PendingAudit) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[p.Entry.CorrelationID]; !ok {
		return ErrOutboxEntryNotFound
	}
	cp := *p
	o.entries[p.Entry.CorrelationID] = &cp
	return nil
}

func (o *MemoryAuditOutbox) Remove(_ context.Context, correlationID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[correlationID]; !ok {
		return nil
	}
	delete(o.entries, correlationID)
	for i, id := range o.order {
		if id == correlationID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return nil
}
