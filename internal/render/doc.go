// Package render builds per-slide prompts and turns provider responses into
// slide HTML for the render queue. It also writes speaker notes for rendered
// slides in a separate pass.
package render
