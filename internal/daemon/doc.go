// Package daemon runs the long-lived slidesmith process behind the HTTP API.
//
// It wires configuration, the deck store, the editing session and the in-memory
// log hub into a single lifecycle, with flock-based locking to prevent a second
// instance from opening the same data directory. Routes use Go 1.22 method
// patterns; every failure is answered with a JSON {"error": message} body whose
// status comes from the services error markers.
//
// Keep request plumbing here. Session semantics live in workflow and
// persistence in deckstore.
package daemon
