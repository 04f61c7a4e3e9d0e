// Package model defines the data the registration engine reasons about.
//
// Three kinds of record live here:
//
//   - Mode: fixed for one orchestration instance, persisted under its own key
//   - PersistedState: durable, survives restarts, cleared on completion or exit
//   - InMemoryState: volatile, rebuilt once per launch from durable and
//     collaborator snapshots
//
// Pathway and Step are closed sum types (interface + unexported marker
// method). A Pathway is derived from state and never stored; a Step is the
// single UI-agnostic directive the engine returns for each evaluation.
//
// All records are treated as values. Callers copy with Clone before
// mutating, which lets the engine diff before/after records for logging.
package model
