package hooks

import (
	"context"
	"sync"

	"github.com/BradenHooton/warden/internal/models"
)

// Observer is invoked synchronously with the account under evaluation. A non-nil
// error aborts the in-flight operation and is returned to its caller unchanged.
// Observers may mutate the account but must not touch session state.
type Observer func(ctx context.Context, account *models.Account) error

// Handle identifies a registration so it can be removed later.
type Handle struct {
	event models.AuthEvent
	id    uint64
}

// Event returns the event the handle was registered for.
func (h Handle) Event() models.AuthEvent {
	return h.event
}

type registration struct {
	id       uint64
	observer Observer
}

// Dispatcher runs observers per event in registration order.
type Dispatcher struct {
	mu        sync.RWMutex
	nextID    uint64
	observers map[models.AuthEvent][]registration
}

// NewDispatcher creates an empty Dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		observers: make(map[models.AuthEvent][]registration),
	}
}

// Register appends observer to the list for event.
func (d *Dispatcher) Register(event models.AuthEvent, observer Observer) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.observers[event] = append(d.observers[event], registration{id: d.nextID, observer: observer})

	return Handle{event: event, id: d.nextID}
}

// Unregister removes the observer behind h. It returns false if h was already removed.
func (d *Dispatcher) Unregister(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.observers[h.event]
	for i, reg := range regs {
		if reg.id == h.id {
			// copy so a concurrent Fire iterating the old slice is unaffected
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			d.observers[h.event] = next
			return true
		}
	}
	return false
}

// Fire dispatches event to its observers and stops at the first error.
func (d *Dispatcher) Fire(ctx context.Context, event models.AuthEvent, account *models.Account) error {
	d.mu.RLock()
	regs := d.observers[event]
	d.mu.RUnlock()

	for _, reg := range regs {
		if err := reg.observer(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of observers registered for event.
func (d *Dispatcher) Len(event models.AuthEvent) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers[event])
}
