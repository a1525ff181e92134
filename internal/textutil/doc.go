// Package textutil provides small text helpers shared by the export and
// placeholder code: filename sanitization and rune-safe truncation.
package textutil
