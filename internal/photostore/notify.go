package photostore

import "github.com/starford/geocam/internal/models"

// EventKind names a photo lifecycle change.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event is emitted after a mutation has been persisted.
type Event struct {
	Kind  EventKind
	Photo models.Photo
}

// Notifier receives lifecycle events. Notify must not block.
type Notifier interface {
	Notify(e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(e Event)

// Notify calls f.
func (f NotifierFunc) Notify(e Event) { f(e) }
