package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Gmabatah93/Project2Article/internal/pipeline"
)

// runEntry tracks one run: its latest state, the events published so far,
// and the live subscribers.
type runEntry struct {
	id     string
	cancel context.CancelFunc

	mu     sync.Mutex
	state  pipeline.State
	events []pipeline.ProgressEvent
	subs   map[chan pipeline.ProgressEvent]struct{}
	result *pipeline.Result
	err    error

	started     chan struct{} // closed once extraction has finished or failed
	startedOnce sync.Once
	done        chan struct{}
}

func newRunEntry(id string, st pipeline.State, cancel context.CancelFunc) *runEntry {
	return &runEntry{
		id:      id,
		cancel:  cancel,
		state:   st,
		subs:    make(map[chan pipeline.ProgressEvent]struct{}),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// observe records a state transition.
func (e *runEntry) observe(st pipeline.State) {
	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	if st.Stage != pipeline.StageStart {
		e.startedOnce.Do(func() { close(e.started) })
	}
}

// publish appends ev to the backlog and fans it out. Slow subscribers
// miss events rather than stall the run.
func (e *runEntry) publish(ev pipeline.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe returns the events so far and a channel of later ones. The
// channel closes when the run finishes or cancel is called.
func (e *runEntry) subscribe() ([]pipeline.ProgressEvent, <-chan pipeline.ProgressEvent, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	backlog := append([]pipeline.ProgressEvent(nil), e.events...)
	ch := make(chan pipeline.ProgressEvent, 64)
	select {
	case <-e.done:
		close(ch)
		return backlog, ch, func() {}
	default:
	}
	e.subs[ch] = struct{}{}
	var once sync.Once
	return backlog, ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.subs[ch]; ok {
				delete(e.subs, ch)
				close(ch)
			}
		})
	}
}

// finish records the outcome and closes every subscriber.
func (e *runEntry) finish(res *pipeline.Result, err error) {
	e.startedOnce.Do(func() { close(e.started) })
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result, e.err = res, err
	if res != nil {
		e.state = res.State
	}
	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
	close(e.done)
}

// snapshot returns the latest state and outcome.
func (e *runEntry) snapshot() (pipeline.State, *pipeline.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.result, e.err
}

// ErrRegistryFull is returned when every registered run is still in flight.
var ErrRegistryFull = errors.New("server: run registry full of active runs")

// Registry keeps recent runs in memory. When full it evicts the least
// recently used finished run; in-flight runs are never evicted.
type Registry struct {
	mu    sync.Mutex
	size  int
	cache *lru.Cache[string, *runEntry]
}

// NewRegistry returns a registry holding up to size runs.
func NewRegistry(size int) (*Registry, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, *runEntry](size)
	if err != nil {
		return nil, fmt.Errorf("server: run registry: %w", err)
	}
	return &Registry{size: size, cache: cache}, nil
}

func (r *Registry) create(e *runEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache.Contains(e.id) {
		return fmt.Errorf("run %q already exists", e.id)
	}
	if r.cache.Len() >= r.size && !r.evictFinished() {
		return ErrRegistryFull
	}
	r.cache.Add(e.id, e)
	return nil
}

// evictFinished removes the least recently used finished run. Peek keeps
// the scan from touching recency.
func (r *Registry) evictFinished() bool {
	for _, id := range r.cache.Keys() {
		e, ok := r.cache.Peek(id)
		if !ok {
			continue
		}
		select {
		case <-e.done:
			r.cache.Remove(id)
			return true
		default:
		}
	}
	return false
}

func (r *Registry) get(id string) (*runEntry, bool) {
	return r.cache.Get(id)
}

// IDs returns the registered run ids, oldest first.
func (r *Registry) IDs() []string {
	return r.cache.Keys()
}
