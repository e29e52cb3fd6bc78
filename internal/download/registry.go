package download

import (
	"sync"
	"sync/atomic"
)

// registry tracks the cancellation flag of every in-flight task. Flags are
// read on the hot path of the stream loops, so they are plain atomics behind
// a map guarded only for registration.
type registry struct {
	mu    sync.Mutex
	flags map[string]*atomic.Bool
}

func newRegistry() *registry {
	return &registry{flags: make(map[string]*atomic.Bool)}
}

func (r *registry) register(id string) *atomic.Bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	flag := &atomic.Bool{}
	r.flags[id] = flag
	return flag
}

// cancel flips the flag of a running task. Unknown ids are ignored.
func (r *registry) cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	flag, ok := r.flags[id]
	if !ok {
		return false
	}
	flag.Store(true)
	return true
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flags, id)
}
