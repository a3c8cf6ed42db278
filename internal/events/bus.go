// Package events carries change notifications out of the lifecycle
// layer. It replaces implicit reactive re-evaluation: lifecycle
// operations publish, query caches or live views decide what to re-run.
package events

import (
	"sync"

	"github.com/google/uuid"
)

type Kind string

const (
	ListCreated Kind = "list.created"
	ListUpdated Kind = "list.updated"
	ListDeleted Kind = "list.deleted"

	TaskCreated Kind = "task.created"
	TaskUpdated Kind = "task.updated"
	TaskDeleted Kind = "task.deleted"

	BackupImported Kind = "backup.imported"
)

// Event identifies the entity a change happened to. BackupImported
// carries a zero ID.
type Event struct {
	Kind Kind
	ID   uuid.UUID
}

type Handler func(Event)

// Bus fans events out to subscribers synchronously, in subscription
// order. Handlers must not call back into lifecycle mutations.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}
