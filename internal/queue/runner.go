package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"slidesmith/internal/config"
	"slidesmith/internal/logging"
)

const tracerName = "slidesmith/internal/queue"

var errEmptyOutput = errors.New("renderer returned empty output")

// Options controls retry policy and timing.
type Options struct {
	MaxRetries    int
	InterJobDelay time.Duration
	BackoffStep   time.Duration
	BackoffMax    time.Duration
	Placeholder   PlaceholderFunc
	Logger        *slog.Logger
	Tracer        trace.Tracer
}

// OptionsFromConfig reads the [queue] section.
func OptionsFromConfig(cfg *config.Config) Options {
	interJob, step, maxBackoff := cfg.QueueTiming()
	return Options{
		MaxRetries:    cfg.Queue.MaxRetries,
		InterJobDelay: interJob,
		BackoffStep:   step,
		BackoffMax:    maxBackoff,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.InterJobDelay <= 0 {
		o.InterJobDelay = 100 * time.Millisecond
	}
	if o.BackoffStep <= 0 {
		o.BackoffStep = 100 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.Placeholder == nil {
		o.Placeholder = DefaultPlaceholder
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	return o
}

// Runner renders the jobs of one run sequentially.
type Runner struct {
	renderer Renderer
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	lifetime context.Context
	shutdown context.CancelFunc
	regenWG  sync.WaitGroup
	loops    sync.WaitGroup

	mu            sync.Mutex
	jobs          []Job
	rc            *RunContext
	status        RunStatus
	stopRequested bool
	cost          float64
	updatedAt     time.Time
	version       uint64
	stopLoop      context.CancelFunc
	loopDone      chan struct{}
	lastDone      chan struct{}
	regen         map[string]context.CancelFunc
	closed        bool

	subMu     sync.Mutex
	subs      []subscription
	nextSub   int
	published uint64
}

// NewRunner constructs an idle runner.
func NewRunner(renderer Renderer, opts Options) *Runner {
	opts = opts.withDefaults()
	lifetime, shutdown := context.WithCancel(context.Background())
	return &Runner{
		renderer: renderer,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "render-queue"),
		tracer:   opts.Tracer,
		now:      time.Now,
		lifetime: lifetime,
		shutdown: shutdown,
		status:   RunIdle,
		regen:    make(map[string]context.CancelFunc),
	}
}

// Start installs a new run and begins rendering. Any previous run is stopped
// first. Jobs without an id get one; jobs left rendering are reset to pending.
func (r *Runner) Start(ctx context.Context, jobs []Job, rc RunContext) error {
	if err := r.stopAndWait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrNoRun
	}
	r.jobs = prepareJobs(jobs, r.opts.MaxRetries)
	runCtx := rc
	r.rc = &runCtx
	r.cost = 0
	r.startLocked(ctx)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("render run started",
		logging.Int("jobs", len(snap.Jobs)),
		logging.String("provider", rc.Provider),
		logging.String("model", rc.Model),
	)
	r.publish(snap)
	return nil
}

func prepareJobs(jobs []Job, maxRetries int) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		job = job.Clone()
		if strings.TrimSpace(job.ID) == "" {
			job.ID = uuid.NewString()
		}
		job.Regenerating = false
		switch job.State {
		case StateRendered:
			if !job.HasOutput() {
				job.State = StatePending
			}
		case StateFailed:
		default:
			job.State = StatePending
		}
		if job.RetryCount > maxRetries {
			job.RetryCount = maxRetries
		}
		if job.RetryCount < 0 {
			job.RetryCount = 0
		}
		out = append(out, job)
	}
	return out
}

// startLocked launches the loop goroutine. Callers hold r.mu and have made
// sure no loop is active. A loop that already settled the run may still be
// winding down; it no longer touches run state.
func (r *Runner) startLocked(parent context.Context) {
	loopCtx, cancel := context.WithCancel(r.lifetime)
	done := make(chan struct{})
	r.stopLoop = cancel
	r.loopDone = done
	r.lastDone = done
	r.loops.Add(1)
	r.stopRequested = false
	r.status = RunRendering
	r.touchLocked()
	link := trace.LinkFromContext(parent)
	go r.loop(loopCtx, cancel, done, link)
}

func (r *Runner) loop(ctx context.Context, cancel context.CancelFunc, done chan struct{}, link trace.Link) {
	ctx, span := r.tracer.Start(ctx, "render.run", trace.WithLinks(link))
	defer r.loops.Done()
	defer func() {
		cancel()
		r.mu.Lock()
		var (
			snap    Snapshot
			publish bool
		)
		if r.loopDone == done {
			r.loopDone = nil
			r.stopLoop = nil
			if r.status == RunRendering {
				r.status = RunPaused
				r.stopRequested = true
				r.touchLocked()
				snap = r.snapshotLocked()
				publish = true
			}
		}
		span.SetAttributes(
			attribute.String("run.status", string(r.status)),
			attribute.Float64("run.cost", r.cost),
		)
		r.mu.Unlock()
		if publish {
			r.publish(snap)
		}
		span.End()
		close(done)
	}()

	for {
		delay, more := r.step(ctx)
		if !more {
			return
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// step renders the first eligible job. It reports the delay before the next
// step and whether the loop should continue.
func (r *Runner) step(ctx context.Context) (time.Duration, bool) {
	r.mu.Lock()
	if ctx.Err() != nil || r.stopRequested || r.rc == nil {
		r.mu.Unlock()
		return 0, false
	}
	idx := r.nextEligibleLocked()
	if idx < 0 {
		// The loop retires under the lock that settles the run; any restart
		// from here on starts a new loop.
		r.loopDone = nil
		r.stopLoop = nil
		if r.regeneratingPendingLocked() {
			// RegenerateOne restarts the loop once the slide settles.
			r.mu.Unlock()
			r.logger.Debug("render loop waiting on slide regeneration")
			return 0, false
		}
		r.status = RunComplete
		r.touchLocked()
		snap := r.snapshotLocked()
		r.mu.Unlock()
		counts := snap.Counts()
		r.logger.Info("render run complete",
			logging.Int("rendered", counts[StateRendered]),
			logging.Int("failed", counts[StateFailed]),
			logging.Float64("cost", snap.AccumulatedCost),
		)
		r.publish(snap)
		return 0, false
	}

	job := &r.jobs[idx]
	job.State = StateRendering
	job.Error = ""
	r.status = RunRendering
	req := RenderRequest{
		Job:     job.Clone(),
		Page:    idx + 1,
		Total:   len(r.jobs),
		Context: *r.rc,
	}
	jobID := job.ID
	retry := job.RetryCount
	r.touchLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)

	attemptCtx, span := r.tracer.Start(ctx, "render.slide", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("job.page", req.Page),
		attribute.Int("job.total", req.Total),
		attribute.Int("job.retry", retry),
	))
	defer span.End()

	started := r.now()
	result, err := r.renderer.Render(attemptCtx, req)
	output := strings.TrimSpace(result.HTML)
	if err == nil && output == "" {
		err = errEmptyOutput
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldJobID, jobID),
		logging.Int("page", req.Page),
		logging.Duration("elapsed", r.now().Sub(started)),
	}

	r.mu.Lock()
	idx = r.indexLocked(jobID)
	if idx < 0 {
		r.mu.Unlock()
		return 0, false
	}
	job = &r.jobs[idx]

	var (
		delay time.Duration
		more  = true
	)
	switch {
	case ctx.Err() != nil:
		job.State = StatePending
		job.Error = ""
		more = false
		span.SetAttributes(attribute.Bool("job.cancelled", true))
		r.logger.Debug("render attempt aborted", logging.Args(attrs...)...)
	case err == nil:
		job.State = StateRendered
		job.Output = output
		job.RetryCount = 0
		job.Error = ""
		r.cost += result.Cost
		delay = r.opts.InterJobDelay
		span.SetAttributes(
			attribute.Float64("job.cost", result.Cost),
			attribute.String("llm.model", result.Model),
		)
		r.logger.Info("slide rendered", logging.Args(append(attrs, logging.Float64("cost", result.Cost))...)...)
	default:
		job.RetryCount++
		job.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if job.RetryCount >= r.opts.MaxRetries {
			job.RetryCount = r.opts.MaxRetries
			job.State = StateFailed
			job.Output = r.opts.Placeholder(job.Clone(), r.opts.MaxRetries, err)
			delay = r.opts.InterJobDelay
			logging.WarnWithContext(r.logger, "slide failed", "render_failed", "placeholder stored, run continues",
				append(attrs, logging.Int("attempts", job.RetryCount), logging.Error(err))...)
		} else {
			job.State = StatePending
			delay = r.backoff(job.RetryCount)
			r.logger.Info("slide render attempt failed",
				logging.Args(append(attrs, logging.Int("retry", job.RetryCount), logging.Duration("backoff", delay), logging.Error(err))...)...)
		}
	}
	r.touchLocked()
	snap = r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)
	return delay, more
}

func (r *Runner) backoff(retry int) time.Duration {
	d := r.opts.BackoffStep * time.Duration(retry)
	if d > r.opts.BackoffMax {
		return r.opts.BackoffMax
	}
	return d
}

func (r *Runner) nextEligibleLocked() int {
	for i := range r.jobs {
		if r.jobs[i].State == StatePending && !r.jobs[i].Regenerating {
			return i
		}
	}
	return -1
}

// regeneratingPendingLocked reports whether a job that has never rendered is
// being regenerated. The run is not complete until it settles.
func (r *Runner) regeneratingPendingLocked() bool {
	for i := range r.jobs {
		if r.jobs[i].State == StatePending && r.jobs[i].Regenerating {
			return true
		}
	}
	return false
}

func (r *Runner) indexLocked(id string) int {
	for i := range r.jobs {
		if r.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Runner) touchLocked() {
	r.version++
	r.updatedAt = r.now().UTC()
}

func (r *Runner) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:         r.version,
		Status:          r.status,
		StopRequested:   r.stopRequested,
		AccumulatedCost: r.cost,
		UpdatedAt:       r.updatedAt,
		Jobs:            cloneJobs(r.jobs),
	}
	if r.rc != nil {
		rc := *r.rc
		snap.Context = &rc
	}
	return snap
}

// stopAndWait aborts the running loop, if any, and waits for it to exit.
func (r *Runner) stopAndWait(ctx context.Context) error {
	r.mu.Lock()
	done := r.loopDone
	if done != nil {
		r.stopRequested = true
		if r.stopLoop != nil {
			r.stopLoop()
		}
	}
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
