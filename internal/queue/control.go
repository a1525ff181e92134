package queue

import (
	"context"

	"slidesmith/internal/logging"
)

// Pause stops the loop after aborting the in-flight attempt. The aborted job
// returns to pending with its retry count intact. Calling Pause on a paused
// run, or on one that already settled, changes nothing.
func (r *Runner) Pause() {
	r.mu.Lock()
	if r.rc == nil || (r.status != RunRendering && (r.stopRequested || r.loopDone == nil)) {
		r.mu.Unlock()
		return
	}
	r.stopRequested = true
	if r.stopLoop != nil {
		r.stopLoop()
	}
	if r.status == RunRendering {
		r.status = RunPaused
	}
	r.touchLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("render run paused")
	r.publish(snap)
}

// Resume restarts the loop. It does nothing without a run, and waits for a
// stopping loop to exit so two loops never overlap.
func (r *Runner) Resume(ctx context.Context) error {
	err := r.restart(ctx, nil)
	if err == ErrNoRun {
		return nil
	}
	return err
}

// Cancel stops the run like Pause and marks it cancelled. Retry counts of
// jobs that have not failed are cleared.
func (r *Runner) Cancel() {
	r.mu.Lock()
	if r.rc == nil {
		r.mu.Unlock()
		return
	}
	r.stopRequested = true
	if r.stopLoop != nil {
		r.stopLoop()
	}
	r.status = RunCancelled
	for i := range r.jobs {
		if r.jobs[i].State != StateFailed {
			r.jobs[i].RetryCount = 0
		}
	}
	r.touchLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("render run cancelled")
	r.publish(snap)
}

// RetryFailed returns every failed job to pending with cleared output and
// retry count, then restarts the loop.
func (r *Runner) RetryFailed(ctx context.Context) error {
	reset := 0
	err := r.restart(ctx, func() {
		for i := range r.jobs {
			job := &r.jobs[i]
			if job.State != StateFailed {
				continue
			}
			job.State = StatePending
			job.Output = ""
			job.Error = ""
			job.RetryCount = 0
			reset++
		}
	})
	if err != nil {
		return err
	}
	r.logger.Info("retrying failed slides", logging.Int("count", reset))
	return nil
}

// restart applies prepare under the lock and makes sure a loop is running.
func (r *Runner) restart(ctx context.Context, prepare func()) error {
	for {
		r.mu.Lock()
		if r.rc == nil || r.closed {
			r.mu.Unlock()
			return ErrNoRun
		}
		if done := r.loopDone; done != nil {
			if !r.stopRequested {
				if prepare != nil {
					prepare()
					r.touchLocked()
					snap := r.snapshotLocked()
					r.mu.Unlock()
					r.publish(snap)
					return nil
				}
				r.mu.Unlock()
				return nil
			}
			r.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if prepare != nil {
			prepare()
		}
		r.startLocked(ctx)
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.publish(snap)
		return nil
	}
}

// UpdateJob applies a user edit. Jobs rendering in the main loop are refused.
func (r *Runner) UpdateJob(jobID string, edit JobEdit) (Job, error) {
	r.mu.Lock()
	idx := r.indexLocked(jobID)
	if idx < 0 {
		r.mu.Unlock()
		return Job{}, ErrJobNotFound
	}
	job := &r.jobs[idx]
	if job.State == StateRendering {
		r.mu.Unlock()
		return Job{}, ErrJobBusy
	}
	edit.Apply(job)
	updated := job.Clone()
	r.touchLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.publish(snap)
	return updated, nil
}

// Restore installs a previously captured run without starting it. A run that
// was rendering comes back paused.
func (r *Runner) Restore(ctx context.Context, snap Snapshot) error {
	if err := r.stopAndWait(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.jobs = prepareJobs(snap.Jobs, r.opts.MaxRetries)
	if snap.Context != nil {
		rc := *snap.Context
		r.rc = &rc
	} else {
		r.rc = &RunContext{}
	}
	r.cost = snap.AccumulatedCost
	r.status = snap.Status
	switch r.status {
	case RunRendering:
		r.status = RunPaused
		r.stopRequested = true
	case "":
		r.status = RunIdle
	default:
		r.stopRequested = snap.StopRequested
	}
	r.touchLocked()
	out := r.snapshotLocked()
	r.mu.Unlock()

	r.publish(out)
	return nil
}

// Reset stops everything and discards the run.
func (r *Runner) Reset(ctx context.Context) error {
	r.cancelRegenerations()
	if err := r.stopAndWait(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.jobs = nil
	r.rc = nil
	r.cost = 0
	r.status = RunIdle
	r.stopRequested = false
	r.touchLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.publish(snap)
	return nil
}

// Wait blocks until the most recent loop goroutine exits, following loops
// started while it waits. It returns immediately when no loop is running. A
// run whose last pending slides are being regenerated stays rendering after
// Wait returns.
func (r *Runner) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		done := r.lastDone
		r.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		latest := r.lastDone
		r.mu.Unlock()
		if latest == done {
			return nil
		}
	}
}

// Close aborts all work and waits for goroutines to exit. The runner cannot
// be restarted afterwards.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.shutdown()
	r.cancelRegenerations()
	r.loops.Wait()
	r.regenWG.Wait()
}

// Snapshot returns a copy of the current run state.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}
