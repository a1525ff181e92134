// Package api defines wire-format types and converters for the daemon HTTP
// API. It translates deck store records, workflow sessions and render jobs
// into transport-friendly DTOs that the browser front end and the CLI can
// consume without coupling to internal types.
//
// # Key Types
//
// Session/Job: the editing session with its render run and per-slide state.
//
// Deck/DeckSummary/Slide: persisted decks as returned by /api/decks.
//
// DeckVersion/SlideVersion: append-only history rows.
//
// DaemonStatus: runtime information plus preflight results.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Converters
//
// FromSession, FromDeck, FromDeckSummaries, FromDeckVersions and
// FromSlideVersions map internal models to DTOs. DeckService wraps the deck
// store and returns DTOs directly; Client calls a running daemon.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (job states, session status) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds.
package api
