package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/store"
)

// Engine error vocabulary. These exact phrases are a contract: the caller-side
// classifier matches on them, so changing the wording silently reclassifies
// failures as generic.
var (
	ErrTimeout  = errors.New("task timed out")
	ErrFailed   = errors.New("task failed")
	ErrNotFound = errors.New("task not found")
	ErrCanceled = errors.New("task canceled")
	ErrPanicked = errors.New("task panicked")
)

// Runnable is one unit of executable work.
type Runnable interface {
	Run(ctx context.Context) (any, error)
}

// RunnableFunc adapts a function to the Runnable interface.
type RunnableFunc func(ctx context.Context) (any, error)

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) (any, error) {
	return f(ctx)
}

// Result is the recorded outcome of a finished task.
type Result struct {
	ID       string
	Value    any
	Err      error
	Start    time.Time
	Duration time.Duration
}

// Snapshot describes a task at a point in time. Duration and Err are only
// meaningful once Finished is true.
type Snapshot struct {
	ID       string
	Status   model.Status
	Finished bool
	Duration time.Duration
	Err      error
}

// Stats holds the task distribution across statuses.
type Stats struct {
	Deferred  int `json:"deferred"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
	Total     int `json:"total"`
}

// task is the in-memory record of one submitted task. status and res are
// guarded by the engine mutex; done is closed exactly once when the task
// reaches a terminal state.
type task struct {
	id      string
	name    string
	mode    string
	status  model.Status
	created time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	res     Result

	// deferred work, consumed on promotion
	runnable  Runnable
	submitCtx context.Context
	started   bool
}

// Engine runs submitted work on a bounded worker pool and tracks task
// lifecycle until pruned. All methods are safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	tasks    map[string]*task
	sem      chan struct{}
	logger   *slog.Logger
	store    store.Store
	broker   *Broker
	wg       sync.WaitGroup
	shutdown bool
}

// New creates an engine. By default the worker pool is sized from GOMAXPROCS
// and nothing is persisted.
func New(opts ...Option) *Engine {
	e := &Engine{
		tasks:  make(map[string]*task),
		broker: NewBroker(),
	}
	limit := runtime.GOMAXPROCS(0) * 24

	cfg := options{workerLimit: limit}
	for _, opt := range opts {
		opt(&cfg)
	}

	e.sem = make(chan struct{}, cfg.workerLimit)
	e.logger = cfg.logger
	e.store = cfg.store
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return e
}

// Broker returns the engine's status-event broker for SSE subscription.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// Run executes the runnable synchronously on the calling goroutine and
// returns its task id once finished. Awaiting the id afterwards resolves
// immediately from the recorded result.
func (e *Engine) Run(ctx context.Context, name string, r Runnable) string {
	t := e.register(name, model.ModeRun, model.StatusPending)
	if bornCanceled(t) {
		return t.id
	}

	taskCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	t.cancel = cancel
	e.mu.Unlock()

	e.execute(t, taskCtx, r)
	return t.id
}

// Async launches the runnable on the worker pool and returns its task id.
// It blocks only while the pool is full; if ctx is done before a slot frees
// up, the task is recorded as canceled.
func (e *Engine) Async(ctx context.Context, name string, r Runnable) string {
	t := e.register(name, model.ModeAsync, model.StatusPending)
	if bornCanceled(t) {
		return t.id
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		e.finish(t, nil, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err()), time.Time{})
		return t.id
	}

	taskCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	t.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer func() { <-e.sem }()
		defer e.wg.Done()
		e.execute(t, taskCtx, r)
	}()

	return t.id
}

// Defer registers the runnable without starting it. Execution begins on the
// first await of the returned id.
func (e *Engine) Defer(ctx context.Context, name string, r Runnable) string {
	t := e.register(name, model.ModeDeferred, model.StatusDeferred)
	if bornCanceled(t) {
		return t.id
	}

	e.mu.Lock()
	t.runnable = r
	t.submitCtx = ctx
	e.mu.Unlock()

	return t.id
}

// register creates and stores the task record. During shutdown the task is
// born canceled.
func (e *Engine) register(name, mode string, status model.Status) *task {
	t := &task{
		id:      model.NewID(),
		name:    name,
		mode:    mode,
		status:  status,
		created: time.Now().UTC(),
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	if e.shutdown {
		t.status = model.StatusCanceled
		t.res = Result{ID: t.id, Err: ErrCanceled}
		close(t.done)
	}
	e.tasks[t.id] = t
	e.mu.Unlock()

	tasksSubmitted.WithLabelValues(mode).Inc()
	e.broker.Publish(t.id, Event{Status: t.status, At: time.Now().UTC()})
	e.logger.Debug("task registered", "task_id", t.id, "name", name, "mode", mode)
	return t
}

// bornCanceled reports whether register finished the task immediately
// (submission during shutdown). The done channel is the race-free signal.
func bornCanceled(t *task) bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// execute runs the task lifecycle on the current goroutine:
// pending→running→terminal, with panic recovery.
func (e *Engine) execute(t *task, ctx context.Context, r Runnable) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			e.finish(t, nil, fmt.Errorf("%w: %v", ErrPanicked, rec), start)
		}
	}()

	e.setStatus(t, model.StatusRunning)
	tasksActive.Inc()
	defer tasksActive.Dec()

	value, err := r.Run(ctx)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}

	e.finish(t, value, err, start)
}

// finish records the terminal result exactly once, publishes the transition,
// and persists the record when a store is configured.
func (e *Engine) finish(t *task, value any, err error, start time.Time) {
	e.mu.Lock()
	select {
	case <-t.done:
		e.mu.Unlock()
		return
	default:
	}

	var duration time.Duration
	if !start.IsZero() {
		duration = time.Since(start)
	}

	status := model.StatusCompleted
	switch {
	case t.status == model.StatusCanceled:
		// Cancel won the race; keep the canceled outcome.
		status = model.StatusCanceled
		if err == nil {
			err = ErrCanceled
		} else if !errors.Is(err, ErrCanceled) {
			err = fmt.Errorf("%w: %v", ErrCanceled, err)
		}
	case err != nil:
		status = model.StatusFailed
		// Normalize the terminal error to carry its category phrase, so the
		// same text classifies correctly from Await, Info, and the store.
		if !errors.Is(err, ErrFailed) && !errors.Is(err, ErrPanicked) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrFailed, err)
		}
	}

	t.status = status
	t.res = Result{
		ID:       t.id,
		Value:    value,
		Err:      err,
		Start:    start,
		Duration: duration,
	}
	close(t.done)
	e.mu.Unlock()

	tasksFinished.WithLabelValues(status.String()).Inc()
	taskDuration.Observe(duration.Seconds())
	e.broker.Publish(t.id, Event{Status: status, At: time.Now().UTC()})
	e.broker.Close(t.id)
	e.logger.Debug("task finished", "task_id", t.id, "status", status.String(), "duration_ms", duration.Milliseconds())

	e.persist(t)
}

// persist writes the terminal record so history survives pruning. Failures
// are logged, never surfaced: persistence is best-effort bookkeeping.
func (e *Engine) persist(t *task) {
	if e.store == nil {
		return
	}

	rec := snapshotRecord(t)
	if err := e.store.SaveTask(context.Background(), rec); err != nil {
		e.logger.Error("failed to persist task", "task_id", t.id, "error", err)
	}
}

// setStatus applies a non-terminal transition and publishes it.
func (e *Engine) setStatus(t *task, s model.Status) {
	e.mu.Lock()
	if !model.ValidTransition(t.status, s) {
		e.mu.Unlock()
		return
	}
	t.status = s
	e.mu.Unlock()

	e.broker.Publish(t.id, Event{Status: s, At: time.Now().UTC()})
}

// get looks up a live task.
func (e *Engine) get(id string) *task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks[id]
}

// promote starts a deferred task in place on the worker pool. The submission
// context bounds execution; the awaiting caller's context only bounds the
// wait.
func (e *Engine) promote(t *task) {
	e.mu.Lock()
	if t.started || t.runnable == nil {
		e.mu.Unlock()
		return
	}
	t.started = true
	r := t.runnable
	ctx := t.submitCtx
	t.runnable = nil
	if t.status == model.StatusDeferred {
		t.status = model.StatusPending
	}
	e.mu.Unlock()

	e.broker.Publish(t.id, Event{Status: model.StatusPending, At: time.Now().UTC()})

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		e.finish(t, nil, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err()), time.Time{})
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	t.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer func() { <-e.sem }()
		defer e.wg.Done()
		e.execute(t, taskCtx, r)
	}()
}

// Await blocks until the task reaches a terminal state or ctx is done. A
// deferred task is promoted on first await. Awaiting a finished task returns
// the cached result; multiple awaits are idempotent. When ctx expires first,
// the task itself is canceled: the timeout is a hard ceiling.
func (e *Engine) Await(ctx context.Context, id string) (Result, error) {
	t := e.get(id)
	if t == nil {
		return Result{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	e.promote(t)

	select {
	case <-t.done:
		if t.res.Err != nil {
			return t.res, fmt.Errorf("task %s: %w", id, t.res.Err)
		}
		return t.res, nil
	case <-ctx.Done():
		e.Cancel(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("task %s: %w", id, ErrTimeout)
		}
		return Result{}, fmt.Errorf("task %s: %w: %v", id, ErrCanceled, ctx.Err())
	}
}

// AwaitAll waits for every task in ids under one shared budget and returns a
// map from id to result. A per-task failure is reported inside its map entry;
// only an unknown id or the shared budget expiring is a hard error.
func (e *Engine) AwaitAll(ctx context.Context, ids []string) (map[string]Result, error) {
	results := make(map[string]Result, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	for _, id := range ids {
		if e.get(id) == nil {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	wg.Add(len(ids))
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()

			res, err := e.Await(ctx, id)
			if err != nil {
				res = Result{ID: id, Err: err}
			}

			mu.Lock()
			results[id] = res
			mu.Unlock()
		}(id)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		for _, id := range ids {
			e.Cancel(id)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}
}

// AwaitAny returns the first task among ids to reach a terminal state,
// canceling the rest. The first failure also wins and cancels the rest.
func (e *Engine) AwaitAny(ctx context.Context, ids []string) (Result, error) {
	if len(ids) == 0 {
		return Result{}, nil
	}

	for _, id := range ids {
		if e.get(id) == nil {
			return Result{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
	}

	resCh := make(chan Result, len(ids))
	errCh := make(chan error, len(ids))
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, id := range ids {
		go func(id string) {
			res, err := e.Await(waitCtx, id)
			if err != nil {
				errCh <- err
				return
			}
			resCh <- res
		}(id)
	}

	cancelRest := func(winner string) {
		for _, id := range ids {
			if id != winner {
				e.Cancel(id)
			}
		}
	}

	select {
	case res := <-resCh:
		cancelRest(res.ID)
		return res, nil
	case err := <-errCh:
		cancelRest("")
		return Result{}, err
	case <-ctx.Done():
		cancelRest("")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("%w", ErrTimeout)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}
}

// Cancel requests cancellation of a task. It reports whether the task is
// known; canceling an already finished task is an accepted no-op. The task
// record stays in memory until pruned so that repeat cancels stay idempotent.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	t, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return false
	}

	cancel := t.cancel
	finished := false
	select {
	case <-t.done:
		finished = true
	default:
	}
	if !finished {
		t.status = model.StatusCanceled
	}
	pending := !finished && cancel == nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pending {
		// Never started (deferred or still queued): finish it here, the
		// absent goroutine cannot.
		e.finish(t, nil, ErrCanceled, time.Time{})
	}

	e.logger.Debug("task canceled", "task_id", id)
	return true
}

// Status returns the current status of a task.
func (e *Engine) Status(id string) (model.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return model.StatusUnknown, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t.status, nil
}

// Info returns a point-in-time snapshot of a task, falling back to the store
// for tasks already pruned from memory.
func (e *Engine) Info(ctx context.Context, id string) (Snapshot, error) {
	e.mu.Lock()
	t, ok := e.tasks[id]
	if ok {
		snap := Snapshot{ID: id, Status: t.status}
		select {
		case <-t.done:
			snap.Finished = true
			snap.Duration = t.res.Duration
			snap.Err = t.res.Err
		default:
		}
		e.mu.Unlock()
		return snap, nil
	}
	e.mu.Unlock()

	if e.store != nil {
		rec, err := e.store.GetTask(ctx, id)
		if err == nil {
			snap := Snapshot{ID: id, Status: rec.Status, Finished: true}
			if rec.DurationMS != nil {
				snap.Duration = time.Duration(*rec.DurationMS) * time.Millisecond
			}
			if rec.Error != "" {
				snap.Err = errors.New(rec.Error)
			}
			return snap, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Error("task history lookup failed", "task_id", id, "error", err)
		}
	}

	return Snapshot{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
}

// Result returns the recorded result of a finished task without waiting.
func (e *Engine) Result(id string) (Result, bool) {
	t := e.get(id)
	if t == nil {
		return Result{}, false
	}
	select {
	case <-t.done:
		return t.res, true
	default:
		return Result{}, false
	}
}

// Stats returns the current task distribution across statuses.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var s Stats
	for _, t := range e.tasks {
		s.Total++
		switch t.status {
		case model.StatusDeferred:
			s.Deferred++
		case model.StatusPending:
			s.Pending++
		case model.StatusRunning:
			s.Running++
		case model.StatusCompleted:
			s.Completed++
		case model.StatusFailed:
			s.Failed++
		case model.StatusCanceled:
			s.Canceled++
		}
	}
	return s
}

// Prune drops terminal tasks from memory. With ttl > 0 only tasks finished
// longer than ttl ago are dropped. Returns the number pruned. Pruned tasks
// remain queryable through the store.
func (e *Engine) Prune(ttl time.Duration) int {
	now := time.Now()

	e.mu.Lock()
	var dropped []string
	for id, t := range e.tasks {
		if !t.status.Terminal() {
			continue
		}
		select {
		case <-t.done:
		default:
			continue
		}
		if ttl > 0 && !t.res.Start.IsZero() && now.Sub(t.res.Start.Add(t.res.Duration)) < ttl {
			continue
		}
		delete(e.tasks, id)
		dropped = append(dropped, id)
	}
	e.mu.Unlock()

	for _, id := range dropped {
		e.broker.Drop(id)
	}
	return len(dropped)
}

// Shutdown cancels all tasks and waits for workers to drain, returning early
// if ctx is done first. New submissions after Shutdown are born canceled.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	e.shutdown = true
	ids := make([]string, 0, len(e.tasks))
	for id := range e.tasks {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.Cancel(id)
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}

	e.logger.Info("engine stopped")
}

// snapshotRecord converts a finished task to its persistent form.
func snapshotRecord(t *task) *model.Task {
	rec := &model.Task{
		ID:        t.id,
		Name:      t.name,
		Mode:      t.mode,
		Status:    t.status,
		CreatedAt: t.created,
	}

	ms := t.res.Duration.Milliseconds()
	rec.DurationMS = &ms

	if !t.res.Start.IsZero() {
		start := t.res.Start.UTC()
		rec.StartedAt = &start
		finished := start.Add(t.res.Duration)
		rec.FinishedAt = &finished
	}
	if t.res.Err != nil {
		rec.Error = t.res.Err.Error()
	}
	if t.res.Value != nil {
		rec.Result = EncodeValue(t.res.Value)
	}
	return rec
}
