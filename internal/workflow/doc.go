// Package workflow coordinates one editing session: outline generation,
// outline review, the render run, speaker notes, and moving decks between the
// session, the deck store and exported project files.
//
// The Manager owns the queue.Runner and derives the session status from the
// runner's snapshots (rendering, complete) plus its own phases (idle,
// outlining, outline_review). Every state change schedules a debounced write
// to the autosave repository; the snapshot is loaded once by Open and cleared
// by Reset. Run completion triggers a notification.
package workflow
