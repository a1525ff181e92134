// Package logs reads daemon logs for the CLI.
//
// Follow polls the daemon's /api/logs hub and hands each event to a callback,
// tracking the sequence cursor between polls. When no daemon is running,
// Tail reads the last lines of slidesmith.log and can keep following the file
// as it grows.
package logs
