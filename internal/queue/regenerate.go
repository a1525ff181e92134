package queue

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"slidesmith/internal/logging"
)

// RegenerateOne renders a single job outside the main loop, optionally with a
// custom instruction and progressive output. It is allowed while the run is
// paused. On success the job becomes rendered with a fresh retry budget; on
// failure the job is left as it was and the error is returned. A run whose
// loop waited on this slide resumes once it settles.
func (r *Runner) RegenerateOne(ctx context.Context, jobID, instruction string, onPartial func(string)) (Job, error) {
	r.mu.Lock()
	if r.rc == nil || r.closed {
		r.mu.Unlock()
		return Job{}, ErrNoRun
	}
	idx := r.indexLocked(jobID)
	if idx < 0 {
		r.mu.Unlock()
		return Job{}, ErrJobNotFound
	}
	job := &r.jobs[idx]
	if job.State == StateRendering || job.Regenerating {
		r.mu.Unlock()
		return Job{}, ErrJobBusy
	}
	job.Regenerating = true
	regenCtx, cancel := context.WithCancel(ctx)
	r.regen[jobID] = cancel
	r.regenWG.Add(1)
	req := RenderRequest{
		Job:         job.Clone(),
		Page:        idx + 1,
		Total:       len(r.jobs),
		Context:     *r.rc,
		Instruction: strings.TrimSpace(instruction),
		OnPartial:   onPartial,
	}
	r.touchLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)

	defer r.regenWG.Done()
	defer cancel()

	regenCtx, span := r.tracer.Start(regenCtx, "render.regenerate", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("job.page", req.Page),
		attribute.Bool("job.instruction", req.Instruction != ""),
	))
	defer span.End()

	result, err := r.renderer.Render(regenCtx, req)
	output := strings.TrimSpace(result.HTML)
	if err == nil && output == "" {
		err = errEmptyOutput
	}

	r.mu.Lock()
	delete(r.regen, jobID)
	idx = r.indexLocked(jobID)
	if idx < 0 {
		r.mu.Unlock()
		if err == nil {
			err = ErrJobNotFound
		}
		return Job{}, err
	}
	job = &r.jobs[idx]
	job.Regenerating = false
	if err == nil {
		job.Output = output
		job.State = StateRendered
		job.RetryCount = 0
		job.Error = ""
		r.cost += result.Cost
		span.SetAttributes(attribute.Float64("job.cost", result.Cost))
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	updated := job.Clone()
	if r.loopDone == nil && r.status == RunRendering && !r.stopRequested && !r.closed {
		// The loop parked on this slide; let it pick up what is left.
		r.startLocked(ctx)
	}
	r.touchLocked()
	snap = r.snapshotLocked()
	r.mu.Unlock()
	r.publish(snap)

	if err != nil {
		r.logger.Info("slide regeneration failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
		return updated, err
	}
	r.logger.Info("slide regenerated",
		logging.String(logging.FieldJobID, jobID),
		logging.Float64("cost", result.Cost),
	)
	return updated, nil
}

// CancelRegenerate aborts an in-flight regeneration. It reports whether one
// was running.
func (r *Runner) CancelRegenerate(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.regen[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) cancelRegenerations() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.regen))
	for _, cancel := range r.regen {
		cancels = append(cancels, cancel)
	}
	r.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
