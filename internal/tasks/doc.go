// Package tasks runs background work with bounded concurrency and real-time progress reporting.
//
// # Worker Pool
//
// [Pool] runs a [Handler] on a fixed number of goroutines. [Pool.Submit] returns a [Future]
// that resolves with exactly one result per job. A pool with zero workers runs jobs inline,
// which keeps tests deterministic.
//
// # Bulk Extraction
//
// [BulkExtract] resolves dominant colors for many entities with a worker pool and a rate limiter:
//
//  1. Requests are queued, spaced by the rate limit
//  2. Workers call the [ColorExtractor] for each request
//  3. Outcomes are collected in input order, partial failures included
//  4. An optional JSON report is written
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
