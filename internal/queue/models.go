package queue

import (
	"fmt"
	"strings"
	"time"

	"slidesmith/internal/palette"
	"slidesmith/internal/services"
)

// State is the lifecycle position of a single job.
type State string

const (
	StatePending   State = "pending"
	StateRendering State = "rendering"
	StateRendered  State = "rendered"
	StateFailed    State = "failed"
)

// RunStatus describes the run as a whole.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRendering RunStatus = "rendering"
	RunPaused    RunStatus = "paused"
	RunComplete  RunStatus = "complete"
	RunCancelled RunStatus = "cancelled"
)

var (
	// ErrJobBusy is returned when a job is rendering in the main loop or
	// already being regenerated.
	ErrJobBusy = fmt.Errorf("job is busy: %w", services.ErrConflict)
	// ErrNoRun is returned by operations that need an active run.
	ErrNoRun = fmt.Errorf("no active render run: %w", services.ErrConflict)
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = fmt.Errorf("job not found: %w", services.ErrNotFound)
)

// Job is one slide to render.
type Job struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ContentPoints []string `json:"content_points"`
	LayoutHint    string   `json:"layout_hint,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Output        string   `json:"output,omitempty"`
	State         State    `json:"state"`
	RetryCount    int      `json:"retry_count"`
	Error         string   `json:"error,omitempty"`
	Regenerating  bool     `json:"regenerating,omitempty"`
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	j.ContentPoints = append([]string(nil), j.ContentPoints...)
	if j.ContentPoints == nil {
		j.ContentPoints = []string{}
	}
	return j
}

// HasOutput reports whether the job carries rendered HTML.
func (j Job) HasOutput() bool {
	return strings.TrimSpace(j.Output) != ""
}

// JobEdit carries optional user edits; nil fields are left unchanged.
type JobEdit struct {
	Title         *string   `json:"title,omitempty"`
	ContentPoints *[]string `json:"content_points,omitempty"`
	LayoutHint    *string   `json:"layout_hint,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	Output        *string   `json:"output,omitempty"`
}

// Apply copies the set fields onto j. A non-empty Output marks the job rendered.
func (e JobEdit) Apply(j *Job) {
	if e.Title != nil {
		j.Title = strings.TrimSpace(*e.Title)
	}
	if e.ContentPoints != nil {
		j.ContentPoints = append([]string{}, (*e.ContentPoints)...)
	}
	if e.LayoutHint != nil {
		j.LayoutHint = strings.TrimSpace(*e.LayoutHint)
	}
	if e.Notes != nil {
		j.Notes = *e.Notes
	}
	if e.Output != nil {
		j.Output = *e.Output
		if strings.TrimSpace(j.Output) != "" {
			j.State = StateRendered
			j.Error = ""
			j.RetryCount = 0
		}
	}
}

// RunContext carries the settings shared by every job of a run.
type RunContext struct {
	Palette  palette.Palette `json:"palette"`
	Audience string          `json:"audience,omitempty"`
	Topic    string          `json:"topic,omitempty"`
	Provider string          `json:"provider,omitempty"`
	Model    string          `json:"model,omitempty"`
}

// Snapshot is a consistent copy of the run state.
type Snapshot struct {
	Version         uint64      `json:"version"`
	Status          RunStatus   `json:"status"`
	StopRequested   bool        `json:"stop_requested"`
	AccumulatedCost float64     `json:"accumulated_cost"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Context         *RunContext `json:"context,omitempty"`
	Jobs            []Job       `json:"jobs"`
}

// Counts tallies jobs by state.
func (s Snapshot) Counts() map[State]int {
	counts := map[State]int{}
	for _, job := range s.Jobs {
		counts[job.State]++
	}
	return counts
}

// Job returns the job with id from the snapshot.
func (s Snapshot) Job(id string) (Job, bool) {
	for _, job := range s.Jobs {
		if job.ID == id {
			return job, true
		}
	}
	return Job{}, false
}

// Settled reports whether no job is pending or rendering.
func (s Snapshot) Settled() bool {
	for _, job := range s.Jobs {
		if job.State == StatePending || job.State == StateRendering {
			return false
		}
	}
	return true
}

func cloneJobs(jobs []Job) []Job {
	out := make([]Job, len(jobs))
	for i, job := range jobs {
		out[i] = job.Clone()
	}
	return out
}
