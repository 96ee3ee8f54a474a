package watchdog

import (
	"bytes"
	"log"
	"runtime"
	"strconv"
	"sync"
)

// worker executes submitted tasks one at a time on a dedicated goroutine.
// A panicking task is logged and the worker moves on to the next task, so
// one failing capability cannot wedge the goroutine for good.
type worker struct {
	name  string
	tasks chan func()
	done  chan struct{}
}

func newWorker(name string, queueSize int) *worker {
	w := &worker{
		name:  name,
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	id := currentUnitID()
	libraryUnits.add(id)
	defer libraryUnits.remove(id)
	defer close(w.done)
	for task := range w.tasks {
		w.runTask(task)
	}
}

func (w *worker) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] recovered panic in task: %v", w.name, r)
		}
	}()
	task()
}

// submit queues task for execution. It never blocks; when the queue is
// full it reports false and the task is discarded.
func (w *worker) submit(task func()) bool {
	select {
	case w.tasks <- task:
		return true
	default:
		return false
	}
}

// close stops the worker after the queued tasks have drained and waits
// for the goroutine to exit. Must be called at most once.
func (w *worker) close() {
	close(w.tasks)
	<-w.done
}

// unitRegistry records the goroutine ids of workers owned by this
// package. LibraryUnitFilter consults it so that stall reports do not
// include the detector's own inspector and reporter goroutines.
type unitRegistry struct {
	mu  sync.RWMutex
	ids map[uint64]struct{}
}

var libraryUnits = &unitRegistry{ids: make(map[uint64]struct{})}

func (r *unitRegistry) add(id uint64) {
	r.mu.Lock()
	r.ids[id] = struct{}{}
	r.mu.Unlock()
}

func (r *unitRegistry) remove(id uint64) {
	r.mu.Lock()
	delete(r.ids, id)
	r.mu.Unlock()
}

func (r *unitRegistry) contains(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// LibraryUnitFilter returns a filter that excludes the detector's own
// background goroutines from stall reports.
func LibraryUnitFilter() UnitFilter {
	return UnitFilterFunc(func(u Unit) bool {
		return !libraryUnits.contains(u.ID())
	})
}

// currentUnitID returns the id of the calling goroutine, extracted from
// the "goroutine N [status]:" header of its stack dump. The runtime has
// no direct accessor for this.
func currentUnitID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		if id, err := strconv.ParseUint(string(header[:i]), 10, 64); err == nil {
			return id
		}
	}
	return 0
}
