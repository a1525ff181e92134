// Package main hosts the slidesmith CLI.
//
// `slidesmith serve` runs the HTTP daemon that owns the editing session and
// the deck database. `session` and `logs` talk to that daemon over its API;
// `outline` and `render` drive the pipeline headless in-process; `deck` and
// `project` work on the SQLite store directly.
package main
