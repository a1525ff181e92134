// Package notifications pushes session milestones to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. The
// [notifications] toggles gate individual event kinds.
package notifications
