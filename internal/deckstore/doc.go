// Package deckstore persists decks, slides, and their version history in
// SQLite.
//
// Decks own an ordered set of slides keyed by position. Every save appends a
// deck_versions row holding a JSON snapshot, and every slide write that carries
// HTML appends a slide_versions row; neither history table is ever updated in
// place. Restoring a version reads the snapshot and returns it to the caller,
// who decides whether to save it as the new current state.
//
// The store shares connection handling with the rest of the repository: WAL
// journaling, foreign keys, a busy timeout, and a short retry loop for
// SQLITE_BUSY. Schema changes bump schemaVersion; users delete the database to
// adopt a new schema.
package deckstore
