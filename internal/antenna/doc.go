// Package antenna implements the subscription-matching and fan-out engine.
//
// An antenna is a saved, named filter owned by one user. For every newly
// created note the engine decides which antennas it satisfies and pushes the
// note id into each matching antenna's bounded feed, then emits a delivery
// notification per antenna.
//
// The package is organized around the dispatch pipeline:
//
//   - Registry keeps an eventually consistent in-memory view of all active
//     antennas, fed by created/updated/deleted events on the bus.
//   - VisibilityFilter resolves whether a note is visible to an antenna's
//     owner (blocks, mutes, followers/specified audiences).
//   - Evaluator is the pure antenna×note×author predicate.
//   - LimitResolver resolves per-owner feed limits, batched and best-effort.
//   - Dispatcher orchestrates one dispatch per note: snapshot, concurrent
//     evaluation, batched limits, a single pipelined feed flush, and
//     per-antenna delivery events.
//
// Collaborators (membership lookups, policy source, the authoritative
// antenna snapshot) are consumed through small interfaces; persistent
// storage and API surfaces live elsewhere.
package antenna
