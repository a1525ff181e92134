// Package queue drives slide rendering for one deck at a time.
//
// A Runner owns an ordered list of Jobs and renders them strictly in
// presentation order through an injected Renderer, one request in flight at
// a time. Failed attempts are retried up to a cap with a linear backoff;
// jobs that exhaust their retries settle as failed with placeholder output
// and the run moves on. Pause, Cancel and shutdown abort the in-flight
// attempt without charging it against the job's retry budget.
//
// All state lives behind the Runner's mutex. Observers registered with
// Subscribe receive copies of the whole run after every change and are
// invoked outside the lock; each Snapshot carries a Version so late
// deliveries can be discarded.
//
// A single job may be regenerated out of band (with a custom instruction
// and progressive output) while the main loop is paused or working on a
// different job.
package queue
