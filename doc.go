// Package tempgroup grants a subject a temporary permission group for a
// bounded duration and automatically reverts it to the prior group when the
// duration elapses, surviving process restarts.
//
// Timer lifecycle:
//   - Assign captures the subject's current group once (the baseline), applies
//     the new group through the GroupDirectory, persists a GroupTimer to the
//     TimerStore, and arms a cancellable deferred revert. Re-assigning while a
//     timer is pending replaces the deadline but keeps the original baseline.
//   - Resume is called once at startup after the store loads: past-due entries
//     revert immediately, the rest are re-armed with their remaining delay.
//   - A revert that fails is logged and the entry is kept in the store, so the
//     next restart retries it (at-least-once semantics).
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing assignment,
//     reversion, and revert-failure events. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking the
//     scheduler.
//
// Collaborators:
//   - GroupDirectory resolves and mutates a subject's group and must be safe
//     to call for offline subjects. The directory sub-package ships a
//     Bun-backed implementation; bring your own for LDAP or game servers.
package tempgroup
