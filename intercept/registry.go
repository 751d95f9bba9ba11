package intercept

import (
	"sync"

	"gitlab.com/xhrwatcher/xhrw"
)

// Registry is an append only, order preserving list of observers
type Registry struct {
	lock      *sync.RWMutex
	observers []xhrw.Observer
}

// NewRegistry of observers
func NewRegistry() *Registry {
	return &Registry{
		lock:      &sync.RWMutex{},
		observers: make([]xhrw.Observer, 0),
	}
}

// Register appends observers in the order given. The same observer may be
// registered more than once and will then be notified once per registration.
func (r *Registry) Register(observers ...xhrw.Observer) {
	r.lock.Lock()
	for _, obs := range observers {
		if obs == nil {
			continue
		}
		r.observers = append(r.observers, obs)
	}
	r.lock.Unlock()
}

// Len of the registry
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.observers)
}

// Snapshot returns the observers registered so far. Later registrations do not
// show up in a snapshot already taken.
func (r *Registry) Snapshot() []xhrw.Observer {
	r.lock.RLock()
	// append only, so the prefix we hand out is never written again
	observers := r.observers[:len(r.observers):len(r.observers)]
	r.lock.RUnlock()
	return observers
}
