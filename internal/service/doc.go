// Package service implements the crawl engine of identigraph.
//
// # Services
//
// CrawlService expands a seed target into the identity graph. It works in
// synchronous rounds: every target of the current frontier is handed to each
// fetcher that reports it can fetch it, all fetches of the round run
// concurrently, and the targets they return that have not been seen in this
// crawl form the next frontier. The crawl stops when a round yields nothing
// new or when a safety valve (max rounds, max visited targets, wall-clock
// timeout) trips. A trip never interrupts the round in flight.
//
// Fetchers persist facts themselves; the engine only routes targets and
// records outcomes in a CrawlReport. A failing fetcher marks its target
// partially failed and never affects sibling fetches.
//
// RefreshScheduler re-runs crawls for configured seeds on a cron schedule.
//
// # Event System
//
// CrawlService publishes progress via EventBus: crawl start, round start,
// target dispatch and completion, and crawl finish. Slow subscribers miss
// events rather than block the crawl.
package service
