package recorder

import (
	"sync"

	"drift-control-core/closed_loop/drift"
	"drift-control-core/utils"
)

// RunRecorder writes one session's ticks and events into a Store. It is a
// drift.Observer, so writes happen on the loop goroutine; a failed write is
// logged and remembered but never stops the loop.
type RunRecorder struct {
	store *Store
	run   Run
	log   *utils.Logger

	mu      sync.Mutex
	err     error
	dropped int
}

func NewRunRecorder(store *Store, run Run, log *utils.Logger) (*RunRecorder, error) {
	if log == nil {
		log = utils.Discard()
	}
	run, err := store.StartRun(run)
	if err != nil {
		return nil, err
	}
	log.Info("Recording run %s (law=%s)", run.ID, run.Law)
	return &RunRecorder{store: store, run: run, log: log}, nil
}

func (r *RunRecorder) Run() Run { return r.run }

func (r *RunRecorder) ObserveTick(t drift.TickRecord) {
	r.keep(r.store.InsertTick(r.run.ID, t))
}

func (r *RunRecorder) ObserveEvent(e drift.Event) {
	r.keep(r.store.InsertEvent(r.run.ID, e))
}

func (r *RunRecorder) keep(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
	if r.err == nil {
		r.err = err
		r.log.Error("Recorder write failed, continuing without it: %v", err)
	}
}

// Dropped returns how many writes failed and the first failure.
func (r *RunRecorder) Dropped() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped, r.err
}
