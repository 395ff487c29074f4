// Package sandbox defines the resource and access policy a plugin runs under.
//
// A Config bundles resource limits (memory, instructions, wall-clock timeout)
// with access allow-lists (filesystem paths, network hosts, interpreter
// modules). The policy is a pure evaluator: it answers allow/deny queries and
// knows nothing about any specific backend. Enforcement belongs to the
// backend runtime that owns the interpreter instance.
//
// All access checks are fail-closed: an empty allow-list denies everything.
// Network checks additionally require AllowNetwork to be set.
//
// Three presets cover the common trust levels:
//
//	cfg := sandbox.Default()     // conservative, for unknown plugins
//	cfg := sandbox.Permissive()  // for trusted plugins
//	cfg := sandbox.Restrictive() // maximum isolation
//
// Violations of the policy are recorded for audit through a Recorder rather
// than being errors by themselves; whether a violation also aborts the
// current call is a backend decision.
package sandbox
