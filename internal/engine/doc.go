// Package engine implements the registration orchestrator.
//
// The engine decides, from durable and in-memory state, what the caller
// should show next, and performs the remote calls needed to get there.
//
// ARCHITECTURE:
//
// Single-Writer Runner:
// Inputs are applied one at a time. A Runner drains a FIFO queue in a
// single goroutine so that:
// - No two state mutations interleave
// - A new input waits until the previous evaluation produced a step
// - Pending inputs are answered, not dropped, when the runner stops
//
// Evaluation Flow:
// 1. restore() loads mode and state once per launch and snapshots collaborators
// 2. Resolve() picks exactly one pathway by fixed priority
// 3. The pathway handler returns a step, or mutates state and loops
// 4. Every mutation goes through withPersisted/withInMemory and is logged as a diff
//
// The loop is bounded: at most Config.MaxResolutions iterations per call,
// and re-entering a pathway with an identical state fingerprint is an error.
//
// CRITICAL PATTERNS:
//
// Remote results are values. Only store failures and invariant violations
// are returned as errors; everything a server can say becomes a step or a
// state change.
//
// A failed automatic call raises an error sheet and blocks further
// automatic calls until the user dismisses it or submits new input, so
// re-polling never repeats a call.
package engine
