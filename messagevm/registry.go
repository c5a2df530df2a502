// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/google/uuid"
)

var (
	// ErrEmptyText is returned when a write carries no text.
	ErrEmptyText = &ValidationError{Field: "text", Reason: "must not be empty"}

	_ Observer = ObserverFunc(nil)
)

// ValidationError is returned when a write is rejected because of its input.
// A rejected write never changes the record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Record is the message held by the registry.
type Record struct {
	Text     string      `serialize:"true" json:"text"`
	Author   ids.ShortID `serialize:"true" json:"author"`
	Revision uint64      `serialize:"true" json:"revision"`
}

// Next returns the record that results from [caller] writing [text] on top
// of [r]. [r] is not modified.
func (r Record) Next(text string, caller ids.ShortID) (Record, error) {
	if len(text) == 0 {
		return r, ErrEmptyText
	}
	return Record{
		Text:     text,
		Author:   caller,
		Revision: r.Revision + 1,
	}, nil
}

// Event is delivered to observers after every accepted write.
type Event struct {
	Author    ids.ShortID `json:"author"`
	Text      string      `json:"text"`
	Revision  uint64      `json:"revision"`
	Timestamp time.Time   `json:"timestamp"`
}

// Observer is notified of accepted writes.
// Observers run synchronously on the writing goroutine and must not write to
// the registry they are subscribed to.
type Observer interface {
	MessageChanged(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) MessageChanged(e Event) { f(e) }

type subscription struct {
	id       uuid.UUID
	observer Observer
}

// Registry holds a single mutable message record.
type Registry struct {
	lock   sync.RWMutex
	record Record

	// writeLock is held across a write and its notification so that events
	// are delivered in revision order. [lock] is never held while observers
	// run, so observers may Read.
	writeLock sync.Mutex

	subscriptions []subscription
	subsLock      sync.Mutex
}

// NewRegistry creates a registry holding [initialText] written by [creator]
// at revision 1. [initialText] is trusted and not validated.
func NewRegistry(initialText string, creator ids.ShortID) *Registry {
	return &Registry{
		record: Record{
			Text:     initialText,
			Author:   creator,
			Revision: 1,
		},
	}
}

// restoreRegistry creates a registry from a previously persisted record.
func restoreRegistry(record Record) *Registry {
	return &Registry{record: record}
}

// Write replaces the message with [text] written by [caller] and notifies
// observers. An empty [text] returns ErrEmptyText and leaves the record as is.
func (r *Registry) Write(text string, caller ids.ShortID, timestamp time.Time) (Record, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	r.lock.Lock()
	next, err := r.record.Next(text, caller)
	if err == nil {
		r.record = next
	}
	current := r.record
	r.lock.Unlock()
	if err != nil {
		return current, err
	}

	r.notify(Event{
		Author:    caller,
		Text:      text,
		Revision:  next.Revision,
		Timestamp: timestamp,
	})
	return next, nil
}

// Read returns the current record.
func (r *Registry) Read() Record {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.record
}

// Subscribe adds [observer] to the end of the observer list and returns the
// ID to unsubscribe it with.
func (r *Registry) Subscribe(observer Observer) uuid.UUID {
	r.subsLock.Lock()
	defer r.subsLock.Unlock()

	id := uuid.New()
	r.subscriptions = append(r.subscriptions, subscription{id: id, observer: observer})
	return id
}

// Unsubscribe removes the observer registered under [id]. Returns false if
// there was no such observer.
func (r *Registry) Unsubscribe(id uuid.UUID) bool {
	r.subsLock.Lock()
	defer r.subsLock.Unlock()

	for i, sub := range r.subscriptions {
		if sub.id != id {
			continue
		}
		r.subscriptions = append(r.subscriptions[:i:i], r.subscriptions[i+1:]...)
		return true
	}
	return false
}

// Subscribers returns the number of registered observers.
func (r *Registry) Subscribers() int {
	r.subsLock.Lock()
	defer r.subsLock.Unlock()

	return len(r.subscriptions)
}

func (r *Registry) notify(event Event) {
	r.subsLock.Lock()
	subs := make([]subscription, len(r.subscriptions))
	copy(subs, r.subscriptions)
	r.subsLock.Unlock()

	for _, sub := range subs {
		sub.observer.MessageChanged(event)
	}
}
