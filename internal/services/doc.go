// Package services defines shared utilities consumed by the render queue,
// outline generator, HTTP handlers, and LLM integrations.
//
// Key responsibilities:
//   - Context helpers that stamp deck IDs, job IDs, operations, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation vs transient vs upstream) without string matching.
//   - HTTPStatus, which maps those markers onto API response codes.
package services
