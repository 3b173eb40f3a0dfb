package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when a sync is requested while one is running.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// Runner lets at most one run of a Pipeline execute at a time within the
// process.
type Runner struct {
	p *Pipeline

	mu      sync.Mutex
	running string // run id, "" when idle
	last    *Result
	done    chan struct{}
}

// Status is a snapshot of the runner.
type Status struct {
	Running bool    `json:"running"`
	RunID   string  `json:"run_id,omitempty"`
	Last    *Result `json:"last,omitempty"`
}

func NewRunner(p *Pipeline) *Runner {
	return &Runner{p: p}
}

// Start begins a run in the background and returns its id. The run is
// detached from ctx's cancellation so it outlives the request that asked
// for it.
func (r *Runner) Start(ctx context.Context) (string, error) {
	id, done, err := r.claim()
	if err != nil {
		return "", err
	}
	go r.execute(context.WithoutCancel(ctx), id, done)
	return id, nil
}

// RunNow runs synchronously and returns the result.
func (r *Runner) RunNow(ctx context.Context) (*Result, error) {
	id, done, err := r.claim()
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, id, done)
}

// Wait blocks until the current run, if any, has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Running: r.running != "", RunID: r.running, Last: r.last}
}

// Every starts a run each interval until ctx is done. Ticks that land on a
// run still in progress are skipped.
func (r *Runner) Every(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log.Printf("[runner] scheduled sync every %s", interval)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.RunNow(ctx); errors.Is(err, ErrRunInProgress) {
				log.Printf("[runner] scheduled sync skipped: %v", err)
			}
		}
	}
}

func (r *Runner) claim() (string, chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running != "" {
		return "", nil, ErrRunInProgress
	}
	r.running = uuid.NewString()
	r.done = make(chan struct{})
	return r.running, r.done, nil
}

func (r *Runner) execute(ctx context.Context, id string, done chan struct{}) (*Result, error) {
	res, err := r.p.run(ctx, id, false)

	r.mu.Lock()
	r.running = ""
	r.last = res
	r.mu.Unlock()
	close(done)

	return res, err
}
